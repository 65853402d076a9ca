package addon

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"github.com/retutils/gomodifyresponse/httpql"
	"github.com/retutils/gomodifyresponse/internal/helper"
	"github.com/retutils/gomodifyresponse/proxy"
	"github.com/retutils/gomodifyresponse/transcode"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/atomic"
)

const (
	opSet     = "set"
	opDelete  = "delete"
	opReplace = "replace"
)

const matchCacheSize = 1024

type rewriteAction struct {
	Op    string            `json:"op"`
	Path  string            `json:"path"`
	Value json.RawMessage   `json:"value"`
	Pairs map[string]string `json:"pairs"`

	replacer *textReplacer
}

type rewriteItem struct {
	Enable  bool             `json:"enable"`
	From    *MapFrom         `json:"from"`
	When    string           `json:"when"` // optional httpql filter, e.g. resp.code.eq:200
	Actions []*rewriteAction `json:"actions"`

	when *httpql.Query
}

// Rewrite edits text response bodies of matching flows. JSON bodies can have
// fields set or deleted by gjson path; any text body can have literal
// strings replaced.
type Rewrite struct {
	proxy.BaseAddon
	Items  []*rewriteItem `json:"items"`
	Enable bool           `json:"enable"`

	compileOnce sync.Once
	mu          sync.Mutex
	cache       *lru.Cache

	rewritten atomic.Uint64
	skipped   atomic.Uint64
}

func (r *Rewrite) Responseheaders(f *proxy.Flow) {
	if !r.Enable {
		return
	}
	r.compileOnce.Do(r.compile)
	items := lo.Filter(r.match(f.Request), func(item *rewriteItem, _ int) bool {
		return item.when.Eval(f)
	})
	if len(items) == 0 {
		return
	}
	if !f.Response.IsTextContentType() {
		log.Debugf("rewrite: skip %v, content-type %q", f.Request.URL, f.Response.Header.Get("Content-Type"))
		r.skipped.Inc()
		return
	}

	r.rewritten.Inc()
	url := f.Request.URL.String()
	f.Response.Modify(transcode.Func(func(body string) string {
		for _, item := range items {
			body = item.apply(url, body)
		}
		return body
	}))
}

// Stats returns how many responses were queued for rewriting and how many
// matched a rule but were skipped for their content type.
func (r *Rewrite) Stats() (rewritten, skipped uint64) {
	return r.rewritten.Load(), r.skipped.Load()
}

func (r *Rewrite) match(req *proxy.Request) []*rewriteItem {
	key := req.Method + " " + req.URL.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = lru.New(matchCacheSize)
	}
	if v, ok := r.cache.Get(key); ok {
		return v.([]*rewriteItem)
	}
	items := lo.Filter(r.Items, func(item *rewriteItem, _ int) bool {
		return item.Enable && item.From.Match(req)
	})
	r.cache.Add(key, items)
	return items
}

func (item *rewriteItem) apply(url, body string) string {
	isJSON := gjson.Valid(body)
	for _, a := range item.Actions {
		switch a.Op {
		case opSet, opDelete:
			if !isJSON {
				log.Debugf("rewrite: %v body is not json, skip %v %v", url, a.Op, a.Path)
				continue
			}
			out, err := a.applyJSON(body)
			if err != nil {
				log.Warnf("rewrite: %v %v %v: %v", url, a.Op, a.Path, err)
				continue
			}
			body = out
		case opReplace:
			body = a.replacer.replace(body)
		}
	}
	return body
}

func (a *rewriteAction) applyJSON(body string) (string, error) {
	if a.Op == opDelete {
		if !gjson.Get(body, a.Path).Exists() {
			return body, nil
		}
		return sjson.Delete(body, a.Path)
	}
	return sjson.SetRaw(body, a.Path, string(a.Value))
}

func (a *rewriteAction) validate() error {
	switch a.Op {
	case opSet:
		if a.Path == "" {
			return errors.New("set: no path")
		}
		if len(a.Value) == 0 || !json.Valid(a.Value) {
			return fmt.Errorf("set %v: invalid value", a.Path)
		}
	case opDelete:
		if a.Path == "" {
			return errors.New("delete: no path")
		}
	case opReplace:
		if len(a.Pairs) == 0 {
			return errors.New("replace: no pairs")
		}
		if _, ok := a.Pairs[""]; ok {
			return errors.New("replace: empty pattern")
		}
	default:
		return fmt.Errorf("unknown op %q", a.Op)
	}
	return nil
}

func (r *Rewrite) validate() error {
	for i, item := range r.Items {
		if item.From == nil {
			return fmt.Errorf("%v no item.From", i)
		}
		if err := item.From.Validate(); err != nil {
			return fmt.Errorf("%v %w", i, err)
		}
		if item.When != "" {
			if _, err := httpql.Parse(item.When); err != nil {
				return fmt.Errorf("%v when: %w", i, err)
			}
		}
		if len(item.Actions) == 0 {
			return fmt.Errorf("%v no item.Actions", i)
		}
		for j, a := range item.Actions {
			if err := a.validate(); err != nil {
				return fmt.Errorf("%v action %v: %w", i, j, err)
			}
		}
	}
	return nil
}

func (r *Rewrite) compile() {
	for _, item := range r.Items {
		if item.When != "" {
			q, err := httpql.Parse(item.When)
			if err != nil {
				log.Warnf("rewrite: disable item, when %q: %v", item.When, err)
				item.Enable = false
				continue
			}
			item.when = q
		}
		for _, a := range item.Actions {
			if a.Op == opReplace {
				a.replacer = newTextReplacer(a.Pairs)
			}
		}
	}
}

func NewRewriteFromFile(filename string) (*Rewrite, error) {
	var rewrite Rewrite
	if err := helper.NewStructFromFile(filename, &rewrite); err != nil {
		return nil, err
	}
	if err := rewrite.validate(); err != nil {
		return nil, err
	}
	return &rewrite, nil
}

// textReplacer replaces all patterns in a single scan of the body.
type textReplacer struct {
	ac   ahocorasick.AhoCorasick
	with []string
}

func newTextReplacer(pairs map[string]string) *textReplacer {
	patterns := lo.Keys(pairs)
	sort.Strings(patterns)
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: false,
		MatchOnlyWholeWords:  false,
	})
	return &textReplacer{
		ac: builder.Build(patterns),
		with: lo.Map(patterns, func(p string, _ int) string {
			return pairs[p]
		}),
	}
}

func (r *textReplacer) replace(s string) string {
	matches := r.ac.FindAll(s)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m.Start() < last {
			continue
		}
		b.WriteString(s[last:m.Start()])
		b.WriteString(r.with[m.Pattern()])
		last = m.End()
	}
	b.WriteString(s[last:])
	return b.String()
}
