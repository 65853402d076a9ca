package httpql

import (
	"strconv"
	"strings"

	"github.com/retutils/gomodifyresponse/proxy"
	"github.com/tidwall/match"
)

// Eval reports whether f matches. A nil query matches everything.
func (q *Query) Eval(f *proxy.Flow) bool {
	if q == nil {
		return true
	}
	switch {
	case q.And != nil:
		for _, sub := range q.And {
			if !sub.Eval(f) {
				return false
			}
		}
		return true
	case q.Or != nil:
		for _, sub := range q.Or {
			if sub.Eval(f) {
				return true
			}
		}
		return false
	case q.Not != nil:
		return !q.Not.Eval(f)
	case q.Req != nil:
		return q.Req.Eval(f)
	case q.Resp != nil:
		return q.Resp.Eval(f)
	}
	return true
}

func (r *RequestClause) Eval(f *proxy.Flow) bool {
	if f.Request == nil || f.Request.URL == nil {
		return false
	}
	u := f.Request.URL
	if r.Method != nil && !r.Method.Eval(f.Request.Method) {
		return false
	}
	if r.Host != nil && !r.Host.Eval(u.Hostname()) {
		return false
	}
	if r.Path != nil && !r.Path.Eval(u.Path) {
		return false
	}
	if r.Query != nil && !r.Query.Eval(u.RawQuery) {
		return false
	}
	if r.Port != nil {
		port, _ := strconv.Atoi(u.Port())
		if port == 0 {
			if u.Scheme == "https" {
				port = 443
			} else {
				port = 80
			}
		}
		if !r.Port.Eval(port) {
			return false
		}
	}
	if r.IsTLS != nil && !r.IsTLS.Eval(u.Scheme == "https") {
		return false
	}
	return true
}

func (r *ResponseClause) Eval(f *proxy.Flow) bool {
	if f.Response == nil {
		return false
	}
	if r.StatusCode != nil && !r.StatusCode.Eval(f.Response.StatusCode) {
		return false
	}
	if r.ContentType != nil && !r.ContentType.Eval(f.Response.Header.Get("Content-Type")) {
		return false
	}
	if r.Encoding != nil && !r.Encoding.Eval(f.Response.Header.Get("Content-Encoding")) {
		return false
	}
	return true
}

func (s *StringExpr) Eval(val string) bool {
	switch s.Operator {
	case OpEq:
		return val == s.Value
	case OpNe:
		return val != s.Value
	case OpCont:
		return strings.Contains(val, s.Value)
	case OpNCont:
		return !strings.Contains(val, s.Value)
	case OpLike:
		return match.Match(val, s.Value)
	case OpNLike:
		return !match.Match(val, s.Value)
	case OpRegex:
		return s.re != nil && s.re.MatchString(val)
	case OpNRegex:
		return s.re != nil && !s.re.MatchString(val)
	}
	return false
}

func (i *IntExpr) Eval(val int) bool {
	switch i.Operator {
	case OpIntEq:
		return val == i.Value
	case OpIntNe:
		return val != i.Value
	case OpIntGt:
		return val > i.Value
	case OpIntGte:
		return val >= i.Value
	case OpIntLt:
		return val < i.Value
	case OpIntLte:
		return val <= i.Value
	}
	return false
}

func (b *BoolExpr) Eval(val bool) bool {
	switch b.Operator {
	case OpBoolEq:
		return val == b.Value
	case OpBoolNe:
		return val != b.Value
	}
	return false
}
