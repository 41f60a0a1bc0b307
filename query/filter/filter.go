// Package filter parses textual filter expressions into criteria
// objects, so filters can travel as strings through CLIs and config.
//
// The language mirrors the criteria DSL: comparisons with =, !=, <>,
// >, >=, <, <=, membership with in/not in, boolean and/or with the
// usual precedence, parentheses, and string/number/bool/null literals.
//
//	status in (1, 2, 3) and (region = 'eu' or tier > 2)
package filter

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/carton-db/carton/query/criteria"
)

type filterExpr struct {
	Pos lexer.Position
	Or  []*andExpr `@@ ("or" @@)*`
}

type andExpr struct {
	Terms []*term `@@ ("and" @@)*`
}

type term struct {
	Comparison *comparison `  @@`
	Group      *filterExpr `| "(" @@ ")"`
}

type comparison struct {
	Field string    `@Ident`
	Rest  *compRest `@@`
}

type compRest struct {
	In    *inClause  `  @@`
	Binop *binClause `| @@`
}

type inClause struct {
	Not    bool       `@"not"? "in" "("`
	Values []*literal `@@ ("," @@)* ")"`
}

type binClause struct {
	Op    string   `@Op`
	Value *literal `@@`
}

type literal struct {
	Str   *string `  @String`
	Num   *string `| @Number`
	True  bool    `| @"true"`
	False bool    `| @"false"`
	Null  bool    `| @"null"`
}

var parser = participle.MustBuild[filterExpr](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse compiles a textual filter into a criteria object. Syntax errors
// carry the offending position.
func Parse(input string) (criteria.Criteria, error) {
	f, err := parser.ParseString("", input)
	if err != nil {
		return nil, err
	}
	return convertOr(f), nil
}

// MustParse is Parse, panicking on syntax errors.
func MustParse(input string) criteria.Criteria {
	c, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return c
}

func convertOr(f *filterExpr) criteria.Criteria {
	if len(f.Or) == 1 {
		return convertAnd(f.Or[0])
	}
	items := make([]criteria.Criteria, len(f.Or))
	for i, a := range f.Or {
		items[i] = convertAnd(a)
	}
	return criteria.Criteria{"or": items}
}

func convertAnd(a *andExpr) criteria.Criteria {
	if len(a.Terms) == 1 {
		return convertTerm(a.Terms[0])
	}
	items := make([]criteria.Criteria, len(a.Terms))
	for i, t := range a.Terms {
		items[i] = convertTerm(t)
	}
	return criteria.Criteria{"and": items}
}

func convertTerm(t *term) criteria.Criteria {
	if t.Group != nil {
		return convertOr(t.Group)
	}
	c := t.Comparison
	if c.Rest.In != nil {
		op := "in"
		if c.Rest.In.Not {
			op = "not in"
		}
		values := make([]interface{}, len(c.Rest.In.Values))
		for i, l := range c.Rest.In.Values {
			values[i] = literalValue(l)
		}
		return criteria.Criteria{c.Field: criteria.Criteria{op: values}}
	}
	value := literalValue(c.Rest.Binop.Value)
	if c.Rest.Binop.Op == "=" {
		return criteria.Criteria{c.Field: value}
	}
	return criteria.Criteria{c.Field: criteria.Criteria{c.Rest.Binop.Op: value}}
}

func literalValue(l *literal) interface{} {
	if l.Str != nil {
		return unquote(*l.Str)
	}
	if l.Num != nil {
		if strings.Contains(*l.Num, ".") {
			f, _ := strconv.ParseFloat(*l.Num, 64)
			return f
		}
		n, _ := strconv.ParseInt(*l.Num, 10, 64)
		return n
	}
	if l.True {
		return true
	}
	if l.False {
		return false
	}
	return nil
}

// unquote strips the outer quotes and collapses doubled apostrophes.
func unquote(s string) string {
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
}
