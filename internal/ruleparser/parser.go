package ruleparser

import (
	"fmt"
	"strings"
)

// attrKeywords are the named attribute productions, each of which may
// appear at most once in a rule (enforced during lowering).
var attrKeywords = map[string]bool{
	"name":           true,
	"hash":           true,
	"parent-hash":    true,
	"serial":         true,
	"via-port":       true,
	"with-interface": true,
	"id":             true,
}

var operatorWords = map[string]bool{
	"equals":         true,
	"one-of":         true,
	"none-of":        true,
	"all-of":         true,
	"equals-ordered": true,
	"match-any":      true,
}

type parser struct {
	lex *lexer
	cur token
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expectWord(text string) error {
	if p.cur.kind != tokWord || p.cur.text != text {
		return newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected %q", errUnexpectedToken, text))
	}
	return p.advance()
}

// parseRuleAST parses one rule line (without its trailing newline; callers
// split a ruleset file into lines) into the tagged-variant AST.
func parseRuleAST(src string) (*ruleAST, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	if p.cur.kind != tokWord {
		return nil, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected target keyword", errUnexpectedToken))
	}
	targetTok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}

	ast := &ruleAST{target: targetTok}

	// Optional bare "VID:PID" device-id sugar immediately after the target.
	if p.cur.kind == tokWord && looksLikeDeviceID(p.cur.text) {
		v := valueNode{text: p.cur.text, line: p.cur.line, col: p.cur.column}
		ast.deviceID = &v
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	for p.cur.kind == tokWord && p.cur.text != "if" {
		name := p.cur.text
		if !attrKeywords[name] {
			return nil, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: %q", errUnexpectedToken, name))
		}
		nameTok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		attr, err := p.parseAttrValues(nameTok)
		if err != nil {
			return nil, err
		}
		ast.attrs = append(ast.attrs, attr)
	}

	if p.cur.kind == tokWord && p.cur.text == "if" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseConditionExpr()
		if err != nil {
			return nil, err
		}
		ast.condition = expr
	}

	if p.cur.kind != tokEOF {
		return nil, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: trailing input", errUnexpectedToken))
	}

	return ast, nil
}

func looksLikeDeviceID(s string) bool {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return false
	}
	return isHexQuadOrWildcard(parts[0]) && isHexQuadOrWildcard(parts[1])
}

func isHexQuadOrWildcard(s string) bool {
	if s == "*" {
		return true
	}
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if !isHexDigit(byte(c)) {
			return false
		}
	}
	return true
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// parseAttrValues parses the strset/ifset/idset production following an
// attribute name: either a bare value (implying EQUALS) or an operator
// keyword followed by a brace-delimited value list (match-any takes no
// list).
func (p *parser) parseAttrValues(nameTok token) (attrNode, error) {
	attr := attrNode{name: nameTok}

	if p.cur.kind == tokWord && operatorWords[p.cur.text] {
		opTok := p.cur
		attr.operator = &opTok
		if err := p.advance(); err != nil {
			return attrNode{}, err
		}
		if opTok.text == "match-any" {
			return attr, nil
		}
		if p.cur.kind != tokLBrace {
			return attrNode{}, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected %q", errUnexpectedToken, "{"))
		}
		if err := p.advance(); err != nil {
			return attrNode{}, err
		}
		for p.cur.kind != tokRBrace {
			v, err := p.parseValue(nameTok.text)
			if err != nil {
				return attrNode{}, err
			}
			attr.values = append(attr.values, v)
		}
		if len(attr.values) == 0 {
			return attrNode{}, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: empty value list", errUnexpectedToken))
		}
		if err := p.advance(); err != nil { // consume '}'
			return attrNode{}, err
		}
		return attr, nil
	}

	v, err := p.parseValue(nameTok.text)
	if err != nil {
		return attrNode{}, err
	}
	attr.values = []valueNode{v}
	return attr, nil
}

func (p *parser) parseValue(attrName string) (valueNode, error) {
	if attrName == "name" || attrName == "hash" || attrName == "parent-hash" || attrName == "serial" || attrName == "via-port" {
		if p.cur.kind != tokString {
			return valueNode{}, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected string value", errUnexpectedToken))
		}
		v := valueNode{text: p.cur.text, line: p.cur.line, col: p.cur.column}
		return v, p.advance()
	}
	// with-interface / id values are bare colon-separated tokens.
	if p.cur.kind != tokWord {
		return valueNode{}, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected value", errUnexpectedToken))
	}
	v := valueNode{text: p.cur.text, line: p.cur.line, col: p.cur.column}
	return v, p.advance()
}

// condition_expr := cond ( ("and"|"or") cond )*
func (p *parser) parseConditionExpr() (*exprNode, error) {
	left, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokWord && (p.cur.text == "and" || p.cur.text == "or") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		kind := exprAnd
		if op == "or" {
			kind = exprOr
		}
		left = &exprNode{kind: kind, left: left, right: right}
	}
	return left, nil
}

// cond := "!" cond | "(" condition_expr ")" | condition_name ("(" arg ")")?
func (p *parser) parseCond() (*exprNode, error) {
	switch {
	case p.cur.kind == tokBang:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: exprNot, child: inner}, nil

	case p.cur.kind == tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseConditionExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected %q", errUnexpectedToken, ")"))
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &exprNode{kind: exprGroup, child: inner}, nil

	case p.cur.kind == tokWord:
		nameTok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		leaf := &exprNode{kind: exprLeaf, name: nameTok}
		if p.cur.kind == tokLParen {
			arg, err := p.lex.captureArg()
			if err != nil {
				return nil, err
			}
			leaf.arg = arg
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return leaf, nil

	default:
		return nil, newParseError(p.cur.line, p.cur.column, fmt.Errorf("%w: expected condition", errUnexpectedToken))
	}
}

// captureArg reads raw source from just after an already-consumed '('
// token up to its matching ')', honoring nested parens, without
// re-tokenizing: a condition's arg is opaque text, not a nested
// condition_expr.
func (l *lexer) captureArg() (string, error) {
	start := l.pos
	depth := 1
	for {
		if l.pos >= len(l.src) {
			return "", newParseError(l.line, l.col, fmt.Errorf("%w: unterminated condition argument", errUnexpectedToken))
		}
		c := l.peekByte()
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				arg := l.src[start:l.pos]
				l.advance()
				return arg, nil
			}
		}
		l.advance()
	}
}
