package httpql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parse compiles a filter such as
//
//	req.path.like:"/api/*" AND NOT resp.code.gte:400
func Parse(input string) (*Query, error) {
	p := NewParser(NewLexer(input))
	q, err := p.ParseQuery()
	if err != nil {
		return nil, err
	}
	if p.curTok.Type != TOKEN_EOF {
		return nil, fmt.Errorf("httpql: unexpected %q at %d", p.curTok.Literal, p.curTok.Pos)
	}
	return q, nil
}

type Parser struct {
	l       *Lexer
	curTok  Token
	peekTok Token
}

func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

// ParseQuery parses
//
//	Expr   = Term { OR Term }
//	Term   = Factor { AND Factor }
//	Factor = NOT Factor | "(" Expr ")" | Clause
func (p *Parser) ParseQuery() (*Query, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (*Query, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.curTok.Type == TOKEN_OR {
		p.nextToken()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Query{Or: []*Query{left, right}}
	}
	return left, nil
}

func (p *Parser) parseAnd() (*Query, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.curTok.Type == TOKEN_AND {
		p.nextToken()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &Query{And: []*Query{left, right}}
	}
	return left, nil
}

func (p *Parser) parseFactor() (*Query, error) {
	switch p.curTok.Type {
	case TOKEN_NOT:
		p.nextToken()
		q, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Query{Not: q}, nil
	case TOKEN_LPAREN:
		p.nextToken()
		q, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.curTok.Type != TOKEN_RPAREN {
			return nil, fmt.Errorf("expected ), got %q", p.curTok.Literal)
		}
		p.nextToken()
		return q, nil
	}
	return p.parseClause()
}

// parseClause reads namespace.field.op:value
func (p *Parser) parseClause() (*Query, error) {
	namespace := strings.ToLower(p.curTok.Literal)
	if p.curTok.Type != TOKEN_IDENT || (namespace != "req" && namespace != "resp") {
		return nil, fmt.Errorf("expected req/resp, got %q", p.curTok.Literal)
	}
	p.nextToken()

	if err := p.expect(TOKEN_DOT); err != nil {
		return nil, err
	}
	field := strings.ToLower(p.curTok.Literal)
	p.nextToken()

	if err := p.expect(TOKEN_DOT); err != nil {
		return nil, err
	}
	op := strings.ToLower(p.curTok.Literal)
	p.nextToken()

	if err := p.expect(TOKEN_COLON); err != nil {
		return nil, err
	}
	switch p.curTok.Type {
	case TOKEN_STRING, TOKEN_INT, TOKEN_IDENT:
	default:
		return nil, fmt.Errorf("expected value, got %q", p.curTok.Literal)
	}
	val := p.curTok.Literal
	p.nextToken()

	if namespace == "req" {
		return buildReqClause(field, op, val)
	}
	return buildRespClause(field, op, val)
}

func (p *Parser) expect(t TokenType) error {
	if p.curTok.Type != t {
		return fmt.Errorf("unexpected %q at %d", p.curTok.Literal, p.curTok.Pos)
	}
	p.nextToken()
	return nil
}

func buildReqClause(field, op, val string) (*Query, error) {
	clause := &RequestClause{}
	var err error
	switch field {
	case "method":
		clause.Method, err = newStringExpr(val, op)
	case "host":
		clause.Host, err = newStringExpr(val, op)
	case "path":
		clause.Path, err = newStringExpr(val, op)
	case "query":
		clause.Query, err = newStringExpr(val, op)
	case "port":
		clause.Port, err = newIntExpr(val, op)
	case "tls":
		clause.IsTLS, err = newBoolExpr(val, op)
	default:
		return nil, fmt.Errorf("unknown req field: %s", field)
	}
	if err != nil {
		return nil, err
	}
	return &Query{Req: clause}, nil
}

func buildRespClause(field, op, val string) (*Query, error) {
	clause := &ResponseClause{}
	var err error
	switch field {
	case "code":
		clause.StatusCode, err = newIntExpr(val, op)
	case "type":
		clause.ContentType, err = newStringExpr(val, op)
	case "enc":
		clause.Encoding, err = newStringExpr(val, op)
	default:
		return nil, fmt.Errorf("unknown resp field: %s", field)
	}
	if err != nil {
		return nil, err
	}
	return &Query{Resp: clause}, nil
}

func newStringExpr(val, op string) (*StringExpr, error) {
	e := &StringExpr{Value: val, Operator: StringOp(op)}
	switch e.Operator {
	case OpEq, OpNe, OpCont, OpNCont, OpLike, OpNLike:
	case OpRegex, OpNRegex:
		re, err := regexp.Compile(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.re = re
	default:
		return nil, fmt.Errorf("unknown string operator: %s", op)
	}
	return e, nil
}

func newIntExpr(val, op string) (*IntExpr, error) {
	switch IntOp(op) {
	case OpIntEq, OpIntNe, OpIntGt, OpIntGte, OpIntLt, OpIntLte:
	default:
		return nil, fmt.Errorf("unknown int operator: %s", op)
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &IntExpr{Value: v, Operator: IntOp(op)}, nil
}

func newBoolExpr(val, op string) (*BoolExpr, error) {
	switch BoolOp(op) {
	case OpBoolEq, OpBoolNe:
	default:
		return nil, fmt.Errorf("unknown bool operator: %s", op)
	}
	v, err := strconv.ParseBool(val)
	if err != nil {
		return nil, err
	}
	return &BoolExpr{Value: v, Operator: BoolOp(op)}, nil
}
