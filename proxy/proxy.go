package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/retutils/gomodifyresponse/transcode"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const Version = "0.3.0"

type Options struct {
	Debug        int
	Addr         string
	Target       string // upstream base url, every request is forwarded there
	SslInsecure  bool
	LogFilePath  string
	InstanceName string
}

type Proxy struct {
	Opts    *Options
	Version string

	target *url.URL
	client *http.Client
	server *http.Server
	addons []Addon
	logger *InstanceLogger

	flows       atomic.Uint64
	completed   atomic.Uint64
	recovered   atomic.Uint64
	aborted     atomic.Uint64
	unsupported atomic.Uint64
}

// Stats counts flows and the outcome of every rewritten body.
type Stats struct {
	Flows       uint64
	Completed   uint64
	Recovered   uint64
	Aborted     uint64
	Unsupported uint64
}

func NewProxy(opts *Options) (*Proxy, error) {
	if opts.Target == "" {
		return nil, errors.New("proxy: no target")
	}
	target, err := url.Parse(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse target: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("proxy: invalid target scheme %q", target.Scheme)
	}

	p := &Proxy{
		Opts:    opts,
		Version: Version,
		target:  target,
		logger:  NewInstanceLoggerWithFile(opts.Addr, opts.InstanceName, opts.LogFilePath),
	}

	p.client = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			// keep the upstream body exactly as encoded
			DisableCompression: true,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: opts.SslInsecure,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	p.server = &http.Server{
		Addr:    opts.Addr,
		Handler: p,
	}

	return p, nil
}

func (p *Proxy) AddAddon(addon Addon) {
	p.addons = append(p.addons, addon)
}

func (p *Proxy) Start() error {
	p.logger.Infof("proxy listening on %v, forwarding to %v", p.Opts.Addr, p.target)
	return p.server.ListenAndServe()
}

func (p *Proxy) Shutdown(ctx context.Context) error {
	defer p.logger.Close()
	return p.server.Shutdown(ctx)
}

func (p *Proxy) Stats() Stats {
	return Stats{
		Flows:       p.flows.Load(),
		Completed:   p.completed.Load(),
		Recovered:   p.recovered.Load(),
		Aborted:     p.aborted.Load(),
		Unsupported: p.unsupported.Load(),
	}
}

func (p *Proxy) count(o transcode.Outcome) {
	switch o {
	case transcode.Completed:
		p.completed.Inc()
	case transcode.Recovered:
		p.recovered.Inc()
	case transcode.Aborted:
		p.aborted.Inc()
	case transcode.Unsupported:
		p.unsupported.Inc()
	}
}

func (p *Proxy) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if isUpgrade(req.Header) {
		httpError(res, "protocol upgrade is not supported", http.StatusNotImplemented)
		return
	}

	p.flows.Inc()
	f := NewFlow()
	f.Request = NewRequest(req)
	defer f.Finish()

	entry := p.logger.WithFields(log.Fields{
		"flow":   f.Id.String(),
		"method": req.Method,
		"url":    req.URL.String(),
	})

	for _, addon := range p.addons {
		addon.Requestheaders(f)
	}

	proxyRes, err := p.client.Do(p.outgoing(req))
	if err != nil {
		logErr(entry, err)
		httpError(res, "bad gateway", http.StatusBadGateway)
		return
	}
	defer proxyRes.Body.Close()

	f.Response = &Response{
		StatusCode: proxyRes.StatusCode,
		Header:     proxyRes.Header,
	}
	for _, addon := range p.addons {
		addon.Responseheaders(f)
	}

	removeHopHeaders(proxyRes.Header)

	sink := newResponseSink(res)
	var out transcode.Sink = sink
	if f.Response.Modified() && bodyAllowed(req.Method, proxyRes.StatusCode) {
		// must run before the headers go out: it drops Content-Length
		out = transcode.ModifyResponse(sink, transcode.FromResponse(proxyRes),
			f.Response.Transform(),
			transcode.WithContext(req.Context()),
			transcode.WithLogger(entry),
			transcode.WithObserver(func(o transcode.Outcome) {
				f.Response.Outcome = o
				p.count(o)
			}),
		)
	}

	copyHeader(res.Header(), proxyRes.Header)
	res.WriteHeader(proxyRes.StatusCode)

	if _, err := io.Copy(out, proxyRes.Body); err != nil {
		logErr(entry, err)
	}
	if err := out.Close(); err != nil {
		logErr(entry, err)
	}
	f.Response.Size = sink.written

	for _, addon := range p.addons {
		addon.Response(f)
	}
}

// outgoing rewrites the client request for the target.
func (p *Proxy) outgoing(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	out.RequestURI = ""
	out.Host = ""
	out.URL.Scheme = p.target.Scheme
	out.URL.Host = p.target.Host
	out.URL.Path = joinPath(p.target.Path, req.URL.Path)
	out.URL.RawPath = ""
	if p.target.RawQuery != "" && out.URL.RawQuery != "" {
		out.URL.RawQuery = p.target.RawQuery + "&" + out.URL.RawQuery
	} else if p.target.RawQuery != "" {
		out.URL.RawQuery = p.target.RawQuery
	}
	if req.ContentLength == 0 {
		out.Body = nil
	}
	removeHopHeaders(out.Header)
	return out
}

func joinPath(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return strings.TrimSuffix(a, "/") + "/" + strings.TrimPrefix(b, "/")
}
