// Package transcode rewrites HTTP response bodies behind their
// content-encoding. The upstream body is decoded, handed to a Transform as
// text, and encoded again with the same codec before it reaches the client,
// so the client keeps receiving the encoding it was told to expect.
package transcode

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Sink is where the response body finally goes. Close finalizes it.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
}

// Outcome is how a response left the pipeline.
type Outcome int

const (
	Completed Outcome = iota
	// Recovered: the compressed body was truncated, the decoded prefix was used.
	Recovered
	// Aborted: the sink was finalized without a body.
	Aborted
	// Unsupported: the content-encoding is unknown and nothing was intercepted.
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Recovered:
		return "recovered"
	case Aborted:
		return "aborted"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

// EncodingSource tells the pipeline which content-encoding the body has.
// It is either a Token, a Header, or the result of FromResponse.
type EncodingSource interface {
	contentEncoding() string
}

// Token is a literal content-encoding such as "gzip" or "br".
type Token string

func (t Token) contentEncoding() string { return string(t) }

// Header reads Content-Encoding from a header map. Content-Length is
// removed since the rewritten body has a different size.
type Header http.Header

func (h Header) contentEncoding() string {
	hdr := http.Header(h)
	hdr.Del("Content-Length")
	return hdr.Get("Content-Encoding")
}

type responseSource struct {
	resp *http.Response
}

// FromResponse is a Header source that also clears resp.ContentLength.
func FromResponse(resp *http.Response) EncodingSource {
	return responseSource{resp: resp}
}

func (s responseSource) contentEncoding() string {
	s.resp.ContentLength = -1
	if s.resp.Header == nil {
		return ""
	}
	return Header(s.resp.Header).contentEncoding()
}

type options struct {
	ctx     context.Context
	log     log.FieldLogger
	observe func(Outcome)
}

// Option configures ModifyResponse.
type Option func(*options)

// WithContext aborts the response when ctx is done before the transform
// has produced its result.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithLogger sets the logger for diagnostics, logrus' standard logger by default.
func WithLogger(l log.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithObserver is called once per response with its outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(o *options) {
		o.observe = fn
	}
}

// ModifyResponse intercepts sink. The caller writes the upstream body into
// the returned Sink and closes it when the upstream body ends; fn then sees
// the decoded body and its result is encoded back into sink, which is
// closed exactly once. A nil fn leaves the body unchanged.
//
// For an unsupported content-encoding nothing is intercepted: a warning is
// logged and sink itself is returned, so the body passes through untouched.
func ModifyResponse(sink Sink, src EncodingSource, fn Transform, opts ...Option) Sink {
	o := &options{
		ctx: context.Background(),
		log: log.WithField("in", "transcode"),
	}
	for _, opt := range opts {
		opt(o)
	}

	token := ""
	if src != nil {
		token = src.contentEncoding()
	}
	codec, err := Lookup(token)
	if err != nil {
		o.log.Warnf("not modifying response: %v", err)
		if o.observe != nil {
			o.observe(Unsupported)
		}
		return sink
	}
	return newInterceptor(sink, codec, fn, o)
}
