// Package query implements Component H: the selector lexer/parser and
// planner that evaluate Prometheus-style label selectors against a
// labelindex.Index, plus the FILTER_BY_RANGE postfilter and the
// LABELNAMES/LABELVALUES/LABELSTATS enumeration helpers (§4.5, §4.6).
package query

import (
	"fmt"
	"strings"

	tserr "github.com/ledgerwatch/tscore/errors"
)

// MatcherOp is the comparison a single label matcher applies.
type MatcherOp int

const (
	OpEqual MatcherOp = iota
	OpNotEqual
	OpRegexMatch
	OpRegexNotMatch
)

// Matcher is one `name OP value` leaf of a selector (§4.5). List-form
// `name=(a,b,c)` is desugared to Values at parse time.
type Matcher struct {
	Name   string
	Op     MatcherOp
	Value  string
	Values []string // non-nil only for the desugared list form
}

// IsPositive reports whether this matcher can anchor a bounded base
// posting set on its own: equality (including list-equality) and
// non-empty regex-match are positive; != and =~"" are not, matching
// §4.5's "at least one positive matcher" rule. An empty-string equality
// (`name=`) is explicitly negative: it matches absence, which is
// unbounded without another anchor.
func (m Matcher) IsPositive() bool {
	switch m.Op {
	case OpEqual:
		return m.Value != "" || len(m.Values) > 0
	case OpRegexMatch:
		return m.Value != ""
	default:
		return false
	}
}

// Selector is a single `metric{...}` or bare `{...}` conjunction: one
// implicit __name__ matcher (if a metric name was given) AND every
// brace matcher.
type Selector struct {
	Matchers []Matcher
}

func (s Selector) HasPositiveMatcher() bool {
	for _, m := range s.Matchers {
		if m.IsPositive() {
			return true
		}
	}
	return false
}

// Expr is a boolean combination of selectors, built by Parse with `or`
// binding looser than `and` and De Morgan normalization already applied
// at the matcher level (every negation lives on a leaf's Op, never
// wrapping a subtree), per §4.5.
type Expr interface{ isExpr() }

type SelectorExpr struct{ Selector Selector }
type AndExpr struct{ Left, Right Expr }
type OrExpr struct{ Left, Right Expr }

func (SelectorExpr) isExpr() {}
func (AndExpr) isExpr()      {}
func (OrExpr) isExpr()       {}

// Parse parses a selector expression string into an Expr tree. Grammar:
//
//	expr   := term ("or" term)*
//	term   := atom ("and" atom)*
//	atom   := [metric] "{" matcher ("," matcher)* "}" | metric
//	matcher:= NAME ("=" | "!=" | "=~" | "!~") (STRING | "(" STRING ("," STRING)* ")")
func Parse(input string) (Expr, error) {
	p := &parser{lex: newLexer(input)}
	p.next()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, tserr.Arg("selector", "unexpected trailing input at %q", p.tok.text)
	}
	return expr, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) next() { p.tok = p.lex.next() }

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, "or") {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, "and") {
		p.next()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAtom() (Expr, error) {
	var sel Selector
	if p.tok.kind == tokIdent {
		sel.Matchers = append(sel.Matchers, Matcher{Name: "__name__", Op: OpEqual, Value: p.tok.text})
		p.next()
	}
	if p.tok.kind == tokLBrace {
		p.next()
		for p.tok.kind != tokRBrace {
			m, err := p.parseMatcher()
			if err != nil {
				return nil, err
			}
			sel.Matchers = append(sel.Matchers, m)
			if p.tok.kind == tokComma {
				p.next()
				continue
			}
			break
		}
		if p.tok.kind != tokRBrace {
			return nil, tserr.Arg("selector", "expected '}'")
		}
		p.next()
	}
	if len(sel.Matchers) == 0 {
		return nil, tserr.Arg("selector", "empty selector term")
	}
	return SelectorExpr{Selector: sel}, nil
}

func (p *parser) parseMatcher() (Matcher, error) {
	if p.tok.kind != tokIdent {
		return Matcher{}, tserr.Arg("selector", "expected label name")
	}
	name := p.tok.text
	p.next()

	var op MatcherOp
	switch p.tok.kind {
	case tokEq:
		op = OpEqual
	case tokNeq:
		op = OpNotEqual
	case tokReEq:
		op = OpRegexMatch
	case tokReNeq:
		op = OpRegexNotMatch
	default:
		return Matcher{}, tserr.Arg("selector", "expected an operator after %q", name)
	}
	p.next()

	if p.tok.kind == tokLParen {
		p.next()
		var values []string
		for p.tok.kind != tokRParen {
			if p.tok.kind != tokString {
				return Matcher{}, tserr.Arg("selector", "expected value in list")
			}
			values = append(values, p.tok.text)
			p.next()
			if p.tok.kind == tokComma {
				p.next()
				continue
			}
			break
		}
		if p.tok.kind != tokRParen {
			return Matcher{}, tserr.Arg("selector", "expected ')'")
		}
		p.next()
		if op != OpEqual {
			return Matcher{}, tserr.Arg("selector", "list form only supports '='")
		}
		return Matcher{Name: name, Op: op, Values: values}, nil
	}

	if p.tok.kind != tokString {
		return Matcher{}, tserr.Arg("selector", "expected a quoted value for %q", name)
	}
	value := p.tok.text
	p.next()
	return Matcher{Name: name, Op: op, Value: value}, nil
}

func (m Matcher) String() string {
	if len(m.Values) > 0 {
		return fmt.Sprintf("%s=(%s)", m.Name, strings.Join(m.Values, ","))
	}
	ops := map[MatcherOp]string{OpEqual: "=", OpNotEqual: "!=", OpRegexMatch: "=~", OpRegexNotMatch: "!~"}
	return fmt.Sprintf("%s%s%q", m.Name, ops[m.Op], m.Value)
}
