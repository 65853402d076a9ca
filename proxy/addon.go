package proxy

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type Addon interface {
	// HTTP request headers were successfully read. The request body is not read yet.
	Requestheaders(*Flow)

	// HTTP response headers were successfully read. Call f.Response.Modify here
	// to rewrite the body.
	Responseheaders(*Flow)

	// The response body has been delivered to the client.
	Response(*Flow)
}

// BaseAddon do nothing
type BaseAddon struct{}

func (addon *BaseAddon) Requestheaders(*Flow)  {}
func (addon *BaseAddon) Responseheaders(*Flow) {}
func (addon *BaseAddon) Response(*Flow)        {}

// LogAddon log http request and response
type LogAddon struct {
	BaseAddon
}

func (addon *LogAddon) Requestheaders(f *Flow) {
	log.Debugf("%v %v", f.Request.Method, f.Request.URL.String())
}

func (addon *LogAddon) Response(f *Flow) {
	var statusCode int
	var size int64
	outcome := "-"
	if f.Response != nil {
		statusCode = f.Response.StatusCode
		size = f.Response.Size
		if f.Response.Modified() {
			outcome = f.Response.Outcome.String()
		}
	}
	log.Infof("%v %v %v %v %v - %v ms", f.Request.Method, f.Request.URL.String(), statusCode, size, outcome, time.Since(f.StartTime).Milliseconds())
}
