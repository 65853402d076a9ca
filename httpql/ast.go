package httpql

import (
	"fmt"
	"regexp"
)

// Query is a filter over a flow whose response headers have arrived. Exactly
// one of the fields is set.
type Query struct {
	Req  *RequestClause
	Resp *ResponseClause
	And  []*Query
	Or   []*Query
	Not  *Query
}

func (q *Query) String() string {
	switch {
	case q.Req != nil:
		return q.Req.String()
	case q.Resp != nil:
		return q.Resp.String()
	case q.Not != nil:
		return "NOT " + q.Not.String()
	case len(q.And) == 2:
		return fmt.Sprintf("(%s AND %s)", q.And[0], q.And[1])
	case len(q.Or) == 2:
		return fmt.Sprintf("(%s OR %s)", q.Or[0], q.Or[1])
	}
	return ""
}

type RequestClause struct {
	Method *StringExpr
	Host   *StringExpr
	Path   *StringExpr
	Query  *StringExpr
	Port   *IntExpr
	IsTLS  *BoolExpr
}

func (r *RequestClause) String() string {
	switch {
	case r.Method != nil:
		return "req.method." + r.Method.String()
	case r.Host != nil:
		return "req.host." + r.Host.String()
	case r.Path != nil:
		return "req.path." + r.Path.String()
	case r.Query != nil:
		return "req.query." + r.Query.String()
	case r.Port != nil:
		return "req.port." + r.Port.String()
	case r.IsTLS != nil:
		return "req.tls." + r.IsTLS.String()
	}
	return ""
}

// ResponseClause only looks at what is known before the body streams.
type ResponseClause struct {
	StatusCode  *IntExpr
	ContentType *StringExpr
	Encoding    *StringExpr
}

func (r *ResponseClause) String() string {
	switch {
	case r.StatusCode != nil:
		return "resp.code." + r.StatusCode.String()
	case r.ContentType != nil:
		return "resp.type." + r.ContentType.String()
	case r.Encoding != nil:
		return "resp.enc." + r.Encoding.String()
	}
	return ""
}

type StringExpr struct {
	Value    string
	Operator StringOp

	re *regexp.Regexp // compiled for regex ops
}

func (s *StringExpr) String() string {
	return fmt.Sprintf("%s:%q", s.Operator, s.Value)
}

type StringOp string

const (
	OpEq     StringOp = "eq"
	OpNe     StringOp = "ne"
	OpCont   StringOp = "cont"
	OpNCont  StringOp = "ncont"
	OpLike   StringOp = "like"
	OpNLike  StringOp = "nlike"
	OpRegex  StringOp = "regex"
	OpNRegex StringOp = "nregex"
)

type IntExpr struct {
	Value    int
	Operator IntOp
}

func (i *IntExpr) String() string {
	return fmt.Sprintf("%s:%d", i.Operator, i.Value)
}

type IntOp string

const (
	OpIntEq  IntOp = "eq"
	OpIntNe  IntOp = "ne"
	OpIntGt  IntOp = "gt"
	OpIntGte IntOp = "gte"
	OpIntLt  IntOp = "lt"
	OpIntLte IntOp = "lte"
)

type BoolExpr struct {
	Value    bool
	Operator BoolOp
}

func (b *BoolExpr) String() string {
	return fmt.Sprintf("%s:%v", b.Operator, b.Value)
}

type BoolOp string

const (
	OpBoolEq BoolOp = "eq"
	OpBoolNe BoolOp = "ne"
)
