// Package clause splits directive clauses into keyword, operator and value and
// matches abbreviated keywords against declarative keyword tables.
package clause

import (
	"strings"
)

// Op is the operator found between keyword and value.
type Op uint8

// Operators.
const (
	OpNone   Op = iota // bare value, no '='
	OpAssign           // keyword=value
	OpAdd              // keyword+=value
	OpRemove           // keyword-=value
)

// String implements Stringer interface.
func (o Op) String() string {
	switch o {
	case OpAssign:
		return "="
	case OpAdd:
		return "+="
	case OpRemove:
		return "-="
	default:
		return ""
	}
}

// Token is a tokenized clause.
type Token struct {
	Raw     string
	Keyword string
	Value   string
	Op      Op
}

// HasValue returns true when the clause carried an '='.
func (t Token) HasValue() bool {
	return t.Op != OpNone
}

// Split returns the keyword, the index at which the value starts and the
// operator of a clause. The first '=' separates keyword and value, a '+' or
// '-' right before it is the operator flag. Without '=' the keyword is the
// whole clause, valueStart is 0 and op is OpNone.
func Split(clause string) (keyword string, valueStart int, op Op) {
	eq := strings.IndexByte(clause, '=')
	if eq < 0 {
		return clause, 0, OpNone
	}

	end := eq
	op = OpAssign

	if eq > 0 {
		switch clause[eq-1] {
		case '+':
			op, end = OpAdd, eq-1
		case '-':
			op, end = OpRemove, eq-1
		}
	}

	return clause[:end], eq + 1, op
}

// Tokenize splits a clause into a Token.
func Tokenize(clause string) Token {
	keyword, start, op := Split(clause)
	if op == OpNone {
		return Token{Raw: clause, Keyword: clause, Value: clause}
	}

	return Token{Raw: clause, Keyword: keyword, Value: clause[start:], Op: op}
}

// Keyword is a keyword table entry. Bare keywords match only clauses without
// a value and valued keywords only clauses with one.
type Keyword struct {
	Name   string
	MinLen int
	Bare   bool
}

// Matches returns true when word is an acceptable abbreviation of the keyword.
func (k Keyword) Matches(word string) bool {
	minLen := max(k.MinLen, 1)

	return len(word) >= minLen && len(word) <= len(k.Name) && strings.EqualFold(word, k.Name[:len(word)])
}

// Table is an ordered keyword table.
type Table []Keyword

// Match returns the name of the first keyword matching word. The bare flag
// tells whether the clause carried no value.
func (t Table) Match(word string, bare bool) (string, bool) {
	for _, k := range t {
		if k.Bare != bare {
			continue
		}

		if k.Matches(word) {
			return k.Name, true
		}
	}

	return "", false
}

// MatchToken matches the keyword of tok.
func (t Table) MatchToken(tok Token) (string, bool) {
	return t.Match(tok.Keyword, !tok.HasValue())
}
