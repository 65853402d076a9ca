package addon

import (
	"github.com/retutils/gomodifyresponse/proxy"
	"github.com/retutils/gomodifyresponse/transcode"
)

// DecodedBodyKey is the Flow.Metadata key Decoder stores the body under.
const DecodedBodyKey = "decoded_body"

// Decoder keeps the decoded text body of every response in Flow.Metadata,
// for addons that look at it in Response. The body sent to the client is
// not changed. Add it after the addons that rewrite to see their result.
type Decoder struct {
	proxy.BaseAddon
}

func (d *Decoder) Responseheaders(f *proxy.Flow) {
	if !f.Response.IsTextContentType() {
		return
	}
	f.Response.Modify(transcode.Func(func(body string) string {
		f.Metadata[DecodedBodyKey] = body
		return body
	}))
}
