package addon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/retutils/gomodifyresponse/proxy"
	"github.com/retutils/gomodifyresponse/transcode"
	log "github.com/sirupsen/logrus"
)

// proxyTransform runs the transforms queued on f the way the proxy would.
func proxyTransform(t *testing.T, f *proxy.Flow, body string) string {
	t.Helper()
	fn := f.Response.Transform()
	if fn == nil {
		return body
	}
	out, err := fn(body).Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return out
}

type captureAddon struct {
	proxy.BaseAddon
	mu   sync.Mutex
	body string
}

func (c *captureAddon) Response(f *proxy.Flow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := f.Metadata[DecodedBodyKey].(string); ok {
		c.body = s
	}
}

type addonProxy struct {
	server  *httptest.Server
	capture *captureAddon
}

// newAddonProxy starts an upstream serving body with the given encoding and
// content type, and a proxy in front of it running addons.
func newAddonProxy(t *testing.T, enc, contentType, body string, addons ...proxy.Addon) *addonProxy {
	t.Helper()
	log.SetLevel(log.PanicLevel)

	codec, err := transcode.Lookup(enc)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte(body)
	if codec != nil {
		if payload, err = codec.Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		if codec != nil {
			w.Header().Set("Content-Encoding", enc)
		}
		w.Write(payload)
	}))
	t.Cleanup(upstream.Close)

	p, err := proxy.NewProxy(&proxy.Options{Target: upstream.URL})
	if err != nil {
		t.Fatal(err)
	}
	h := &addonProxy{}
	for _, a := range addons {
		if c, ok := a.(*captureAddon); ok {
			h.capture = c
		}
		p.AddAddon(a)
	}
	h.server = httptest.NewServer(p)
	t.Cleanup(h.server.Close)
	return h
}

// get fetches path through the proxy and returns the decoded body.
func (h *addonProxy) get(t *testing.T, path string) string {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Get(h.server.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	codec, err := transcode.Lookup(resp.Header.Get("Content-Encoding"))
	if err != nil {
		t.Fatal(err)
	}
	if codec == nil {
		return string(raw)
	}
	out, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("decode %v: %v", codec.Name, err)
	}
	return string(out)
}

func (h *addonProxy) captured() string {
	if h.capture == nil {
		return ""
	}
	h.capture.mu.Lock()
	defer h.capture.mu.Unlock()
	return h.capture.body
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func newTestRewrite(items ...*rewriteItem) *Rewrite {
	return &Rewrite{Enable: true, Items: items}
}

func jsonItem() *rewriteItem {
	return &rewriteItem{
		Enable: true,
		From:   &MapFrom{Path: "/api/*"},
		Actions: []*rewriteAction{
			{Op: opDelete, Path: "version"},
			{Op: opSet, Path: "name", Value: []byte(`"x"`)},
			{Op: opSet, Path: "age", Value: []byte("2")},
		},
	}
}

func TestRewrite_JSON(t *testing.T) {
	body := `{"name":"node-http-proxy-json","age":1,"version":"1.0.0"}`
	for _, enc := range []string{"", "gzip", "deflate", "br"} {
		t.Run("enc="+enc, func(t *testing.T) {
			h := newAddonProxy(t, enc, "application/json", body, newTestRewrite(jsonItem()))
			got := h.get(t, "/api/info")
			if got != `{"name":"x","age":2}` {
				t.Errorf("got %s", got)
			}
		})
	}
}

func TestRewrite_NoMatch(t *testing.T) {
	body := `{"name":"a"}`
	h := newAddonProxy(t, "gzip", "application/json", body, newTestRewrite(jsonItem()))
	if got := h.get(t, "/other"); got != body {
		t.Errorf("got %s", got)
	}
}

func TestRewrite_Replace(t *testing.T) {
	item := &rewriteItem{
		Enable: true,
		From:   &MapFrom{},
		Actions: []*rewriteAction{
			{Op: opReplace, Pairs: map[string]string{"Hello": "Goodbye", "world": "moon"}},
		},
	}
	h := newAddonProxy(t, "br", "text/html; charset=utf-8", "<p>Hello world, hello World</p>", newTestRewrite(item))
	if got := h.get(t, "/"); got != "<p>Goodbye moon, hello World</p>" {
		t.Errorf("got %s", got)
	}
}

func TestRewrite_SkipsNonJSONBody(t *testing.T) {
	item := jsonItem()
	got := item.apply("http://example.com/api/x", "not json")
	if got != "not json" {
		t.Errorf("got %q", got)
	}
}

func TestRewrite_DeleteMissingPath(t *testing.T) {
	a := &rewriteAction{Op: opDelete, Path: "missing"}
	got, err := a.applyJSON(`{"a":1}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"a":1}` {
		t.Errorf("got %s", got)
	}
}

func TestRewrite_SkipsBinaryContentType(t *testing.T) {
	r := newTestRewrite(&rewriteItem{
		Enable:  true,
		From:    &MapFrom{},
		Actions: []*rewriteAction{{Op: opDelete, Path: "a"}},
	})

	f := proxy.NewFlow()
	f.Request = &proxy.Request{Method: "GET", URL: mustURL(t, "http://example.com/img.png")}
	f.Response = &proxy.Response{StatusCode: 200, Header: http.Header{"Content-Type": {"image/png"}}}
	r.Responseheaders(f)
	if f.Response.Modified() {
		t.Error("binary response queued for rewriting")
	}

	f2 := proxy.NewFlow()
	f2.Request = &proxy.Request{Method: "GET", URL: mustURL(t, "http://example.com/a.json")}
	f2.Response = &proxy.Response{StatusCode: 200, Header: http.Header{"Content-Type": {"application/json"}}}
	r.Responseheaders(f2)
	if !f2.Response.Modified() {
		t.Error("json response not queued")
	}
	if got := proxyTransform(t, f2, `{"a":1,"b":2}`); got != `{"b":2}` {
		t.Errorf("got %s", got)
	}

	rewritten, skipped := r.Stats()
	if rewritten != 1 || skipped != 1 {
		t.Errorf("stats = %d, %d", rewritten, skipped)
	}
}

func TestRewrite_Disabled(t *testing.T) {
	r := &Rewrite{Items: []*rewriteItem{jsonItem()}}
	f := proxy.NewFlow()
	f.Request = &proxy.Request{Method: "GET", URL: mustURL(t, "http://example.com/api/x")}
	f.Response = &proxy.Response{Header: http.Header{"Content-Type": {"application/json"}}}
	r.Responseheaders(f)
	if f.Response.Modified() {
		t.Error("disabled rewrite queued a transform")
	}
}

func TestRewrite_MatchCache(t *testing.T) {
	disabled := jsonItem()
	disabled.Enable = false
	r := newTestRewrite(jsonItem(), disabled)

	req := &proxy.Request{Method: "GET", URL: mustURL(t, "http://example.com/api/x")}
	first := r.match(req)
	if len(first) != 1 {
		t.Fatalf("matched %d items", len(first))
	}
	if r.cache.Len() != 1 {
		t.Errorf("cache len = %d", r.cache.Len())
	}
	second := r.match(req)
	if len(second) != 1 || second[0] != first[0] {
		t.Error("cached match differs")
	}

	other := &proxy.Request{Method: "GET", URL: mustURL(t, "http://example.com/x")}
	if got := r.match(other); len(got) != 0 {
		t.Errorf("matched %d items", len(got))
	}
	if r.cache.Len() != 2 {
		t.Errorf("cache len = %d", r.cache.Len())
	}
}

func TestRewrite_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    *rewriteItem
		wantErr bool
	}{
		{"valid", jsonItem(), false},
		{"no from", &rewriteItem{Actions: []*rewriteAction{{Op: opDelete, Path: "a"}}}, true},
		{"bad protocol", &rewriteItem{From: &MapFrom{Protocol: "ftp"}, Actions: []*rewriteAction{{Op: opDelete, Path: "a"}}}, true},
		{"no actions", &rewriteItem{From: &MapFrom{}}, true},
		{"set without path", &rewriteItem{From: &MapFrom{}, Actions: []*rewriteAction{{Op: opSet, Value: []byte("1")}}}, true},
		{"set invalid value", &rewriteItem{From: &MapFrom{}, Actions: []*rewriteAction{{Op: opSet, Path: "a", Value: []byte("{")}}}, true},
		{"delete without path", &rewriteItem{From: &MapFrom{}, Actions: []*rewriteAction{{Op: opDelete}}}, true},
		{"replace without pairs", &rewriteItem{From: &MapFrom{}, Actions: []*rewriteAction{{Op: opReplace}}}, true},
		{"replace empty pattern", &rewriteItem{From: &MapFrom{}, Actions: []*rewriteAction{{Op: opReplace, Pairs: map[string]string{"": "x"}}}}, true},
		{"unknown op", &rewriteItem{From: &MapFrom{}, Actions: []*rewriteAction{{Op: "move"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestRewrite(tt.item).validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTextReplacer(t *testing.T) {
	tests := []struct {
		name  string
		pairs map[string]string
		in    string
		want  string
	}{
		{"none", map[string]string{"zzz": "y"}, "abc", "abc"},
		{"single", map[string]string{"b": "B"}, "abcb", "aBcB"},
		{"many", map[string]string{"cat": "dog", "red": "blue"}, "red cat", "blue dog"},
		{"case sensitive", map[string]string{"a": "x"}, "aA", "xA"},
		{"adjacent", map[string]string{"ab": "1"}, "ababab", "111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTextReplacer(tt.pairs).replace(tt.in); got != tt.want {
				t.Errorf("replace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRewrite_When(t *testing.T) {
	item := jsonItem()
	item.When = `resp.code.eq:200 AND NOT req.query.cont:"raw"`
	r := newTestRewrite(item)

	tests := []struct {
		url    string
		status int
		want   bool
	}{
		{"http://example.com/api/x", 200, true},
		{"http://example.com/api/x", 404, false},
		{"http://example.com/api/x?raw=1", 200, false},
	}
	for _, tt := range tests {
		f := proxy.NewFlow()
		f.Request = &proxy.Request{Method: "GET", URL: mustURL(t, tt.url)}
		f.Response = &proxy.Response{StatusCode: tt.status, Header: http.Header{"Content-Type": {"application/json"}}}
		r.Responseheaders(f)
		if got := f.Response.Modified(); got != tt.want {
			t.Errorf("%v %d: modified = %v, want %v", tt.url, tt.status, got, tt.want)
		}
	}
}

func TestRewrite_InvalidWhen(t *testing.T) {
	item := jsonItem()
	item.When = `resp.body.cont:"x"`
	if err := newTestRewrite(item).validate(); err == nil {
		t.Error("expected error for invalid when")
	}

	// built without validate: the item is disabled instead
	r := newTestRewrite(item)
	f := proxy.NewFlow()
	f.Request = &proxy.Request{Method: "GET", URL: mustURL(t, "http://example.com/api/x")}
	f.Response = &proxy.Response{StatusCode: 200, Header: http.Header{"Content-Type": {"application/json"}}}
	r.Responseheaders(f)
	if f.Response.Modified() {
		t.Error("item with invalid when was applied")
	}
}
