package proxy

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/retutils/gomodifyresponse/transcode"
	uuid "github.com/satori/go.uuid"
)

// flow http request
type Request struct {
	Method string
	URL    *url.URL
	Proto  string
	Header http.Header

	raw *http.Request
}

// NewRequest wraps a server request. Its URL is made absolute from the Host
// header so addons can match on scheme and host.
func NewRequest(req *http.Request) *Request {
	u := req.URL
	if u != nil && u.Host == "" {
		abs := *u
		abs.Host = req.Host
		abs.Scheme = "http"
		if req.TLS != nil {
			abs.Scheme = "https"
		}
		u = &abs
	}
	return &Request{
		Method: req.Method,
		URL:    u,
		Proto:  req.Proto,
		Header: req.Header,
		raw:    req,
	}
}

func (r *Request) Raw() *http.Request {
	return r.raw
}

// flow http response
type Response struct {
	StatusCode int
	Header     http.Header

	// set once the body has been delivered
	Outcome transcode.Outcome
	Size    int64

	transforms []transcode.Transform
}

// Modify queues fn to rewrite the decoded response body. Transforms run in
// the order they were queued. Only effective from Responseheaders.
func (r *Response) Modify(fn transcode.Transform) {
	if fn != nil {
		r.transforms = append(r.transforms, fn)
	}
}

// Transform chains the queued transforms, nil when there are none.
func (r *Response) Transform() transcode.Transform {
	return transcode.Chain(r.transforms...)
}

func (r *Response) Modified() bool {
	return len(r.transforms) > 0
}

func (r *Response) IsTextContentType() bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if ct == "" {
		return false
	}
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "javascript")
}

// flow
type Flow struct {
	Id        uuid.UUID
	Request   *Request
	Response  *Response
	StartTime time.Time

	// Metadata to pass data between addons.
	Metadata map[string]interface{}

	done chan struct{}
}

func NewFlow() *Flow {
	return &Flow{
		Id:        uuid.NewV4(),
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
		done:      make(chan struct{}),
	}
}

func (f *Flow) Done() <-chan struct{} {
	return f.done
}

func (f *Flow) Finish() {
	close(f.done)
}
