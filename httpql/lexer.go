package httpql

import (
	"strconv"
	"strings"
	"text/scanner"
)

type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_IDENT
	TOKEN_STRING
	TOKEN_INT
	TOKEN_DOT
	TOKEN_COLON
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_ILLEGAL
)

type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

type Lexer struct {
	s scanner.Scanner
}

func NewLexer(input string) *Lexer {
	l := &Lexer{}
	l.s.Init(strings.NewReader(input))
	l.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanInts
	l.s.Whitespace = 1<<'\t' | 1<<'\n' | 1<<'\r' | 1<<' '
	l.s.Error = func(*scanner.Scanner, string) {}
	return l
}

func (l *Lexer) NextToken() Token {
	tok := l.s.Scan()
	lit := l.s.TokenText()
	pos := l.s.Position.Offset

	switch tok {
	case scanner.EOF:
		return Token{Type: TOKEN_EOF, Pos: pos}
	case scanner.Ident:
		switch lower := strings.ToLower(lit); lower {
		case "and":
			return Token{Type: TOKEN_AND, Literal: lower, Pos: pos}
		case "or":
			return Token{Type: TOKEN_OR, Literal: lower, Pos: pos}
		case "not":
			return Token{Type: TOKEN_NOT, Literal: lower, Pos: pos}
		default:
			return Token{Type: TOKEN_IDENT, Literal: lit, Pos: pos}
		}
	case scanner.String:
		s, err := strconv.Unquote(lit)
		if err != nil {
			return Token{Type: TOKEN_ILLEGAL, Literal: lit, Pos: pos}
		}
		return Token{Type: TOKEN_STRING, Literal: s, Pos: pos}
	case scanner.RawString:
		return Token{Type: TOKEN_STRING, Literal: strings.Trim(lit, "`"), Pos: pos}
	case scanner.Int:
		return Token{Type: TOKEN_INT, Literal: lit, Pos: pos}
	case '.':
		return Token{Type: TOKEN_DOT, Literal: ".", Pos: pos}
	case ':':
		return Token{Type: TOKEN_COLON, Literal: ":", Pos: pos}
	case '(':
		return Token{Type: TOKEN_LPAREN, Literal: "(", Pos: pos}
	case ')':
		return Token{Type: TOKEN_RPAREN, Literal: ")", Pos: pos}
	}
	return Token{Type: TOKEN_ILLEGAL, Literal: lit, Pos: pos}
}
