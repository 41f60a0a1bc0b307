// Package expr builds parameterized SQL expressions from literal text
// fragments interleaved with substituted values.
package expr

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carton-db/carton/query/dialect"
)

// Raw marks text to splice into the compiled statement verbatim, never
// parameterized or escaped. Use only with trusted input.
type Raw string

// Ident marks an identifier to embed quoted by the dialect's identifier
// rule rather than bound as a parameter.
type Ident string

// Expr is an ordered sequence of literal text fragments interleaved with
// substituted values. An expression with n values always carries n+1
// fragments; Compile rejects anything else.
//
// A value is one of: a scalar (bound as a parameter), a slice (expanded
// to a comma-joined placeholder list), a nested *Expr (compiled in place,
// parameter numbering continuing from the parent), Raw, or Ident.
type Expr struct {
	fragments []string
	values    []interface{}
}

// Param is one bound parameter of a compiled statement.
type Param struct {
	Name  string
	Value interface{}
}

// Statement is the executable form of an expression: query text with
// placeholders plus the parameters bound to them, in placeholder order.
type Statement struct {
	Text   string
	Params []Param
}

// Args returns the bound values in placeholder order, shaped for
// database/sql calls.
func (s *Statement) Args() []interface{} {
	args := make([]interface{}, len(s.Params))
	for i, p := range s.Params {
		args[i] = p.Value
	}
	return args
}

// New builds an expression from fragments and values. The fragment list
// must be exactly one longer than the value list; a mismatch is a
// programmer error and fails immediately.
func New(fragments []string, values ...interface{}) (*Expr, error) {
	if len(fragments) != len(values)+1 {
		return nil, fmt.Errorf("expr: %d fragments with %d values, want %d fragments", len(fragments), len(values), len(values)+1)
	}
	return &Expr{
		fragments: append([]string(nil), fragments...),
		values:    append([]interface{}(nil), values...),
	}, nil
}

// MustNew is New, panicking on a malformed fragment/value interleaving.
func MustNew(fragments []string, values ...interface{}) *Expr {
	e, err := New(fragments, values...)
	if err != nil {
		panic(err)
	}
	return e
}

// Text builds an expression holding only literal text.
func Text(text string) *Expr {
	return &Expr{fragments: []string{text}}
}

func (e *Expr) check() error {
	if len(e.fragments) != len(e.values)+1 {
		return fmt.Errorf("expr: %d fragments with %d values, want %d fragments", len(e.fragments), len(e.values), len(e.values)+1)
	}
	return nil
}

// Compile renders the expression for a dialect, numbering placeholders
// in left-to-right discovery order, continuing through nested
// expressions. Values past the dialect's parameter cap are written as
// quoted inline literals instead of placeholders; a slice straddling the
// cap inlines only the elements beyond it.
func (e *Expr) Compile(d dialect.Dialect) (*Statement, error) {
	var sb strings.Builder
	params := make([]Param, 0, len(e.values))
	if err := e.compileInto(&sb, &params, d); err != nil {
		return nil, err
	}
	return &Statement{Text: sb.String(), Params: params}, nil
}

func (e *Expr) compileInto(sb *strings.Builder, params *[]Param, d dialect.Dialect) error {
	if err := e.check(); err != nil {
		return err
	}
	sb.WriteString(e.fragments[0])
	for i, v := range e.values {
		if err := writeValue(sb, params, d, v); err != nil {
			return err
		}
		sb.WriteString(e.fragments[i+1])
	}
	return nil
}

func writeValue(sb *strings.Builder, params *[]Param, d dialect.Dialect, v interface{}) error {
	switch v := v.(type) {
	case Raw:
		sb.WriteString(string(v))
		return nil
	case Ident:
		sb.WriteString(d.QuoteIdent(string(v)))
		return nil
	case *Expr:
		if v == nil {
			bindOrInline(sb, params, d, nil)
			return nil
		}
		return v.compileInto(sb, params, d)
	}
	if seq, ok := sequenceOf(v); ok {
		for i, el := range seq {
			if i > 0 {
				sb.WriteString(", ")
			}
			bindOrInline(sb, params, d, el)
		}
		return nil
	}
	bindOrInline(sb, params, d, v)
	return nil
}

// bindOrInline writes one scalar: a placeholder while the statement has
// parameter room, a quoted literal once the dialect's cap is reached.
func bindOrInline(sb *strings.Builder, params *[]Param, d dialect.Dialect, v interface{}) {
	if len(*params) < d.MaxParams() {
		name := d.Placeholder(len(*params) + 1)
		sb.WriteString(name)
		*params = append(*params, Param{Name: name, Value: v})
		return
	}
	sb.WriteString(Literal(v))
}

// sequenceOf reports whether v expands to a comma-joined placeholder
// list. Byte slices stay scalar: drivers bind them directly.
func sequenceOf(v interface{}) ([]interface{}, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return v, true
	case []byte, string, time.Time, Raw, Ident:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// String renders the expression with every value inlined as a quoted
// literal, for logs and error messages only. The result must never be
// executed. Identifiers render with the SQL Server bracket rule.
func (e *Expr) String() string {
	var sb strings.Builder
	if err := e.stringInto(&sb); err != nil {
		return fmt.Sprintf("<invalid expr: %v>", err)
	}
	return sb.String()
}

func (e *Expr) stringInto(sb *strings.Builder) error {
	if err := e.check(); err != nil {
		return err
	}
	sb.WriteString(e.fragments[0])
	for i, v := range e.values {
		if err := stringValue(sb, v); err != nil {
			return err
		}
		sb.WriteString(e.fragments[i+1])
	}
	return nil
}

func stringValue(sb *strings.Builder, v interface{}) error {
	switch v := v.(type) {
	case Raw:
		sb.WriteString(string(v))
		return nil
	case Ident:
		sb.WriteString(dialect.SQLServer.QuoteIdent(string(v)))
		return nil
	case *Expr:
		if v == nil {
			sb.WriteString("NULL")
			return nil
		}
		return v.stringInto(sb)
	}
	if seq, ok := sequenceOf(v); ok {
		for i, el := range seq {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Literal(el))
		}
		return nil
	}
	sb.WriteString(Literal(v))
	return nil
}

// Literal renders one scalar as a SQL literal: strings quoted with
// internal apostrophes doubled, numbers as decimal text, nil as NULL.
// For logging and cap degradation, never for general execution paths.
func Literal(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return quoteString(v.Format("2006-01-02 15:04:05.999"))
	case []byte:
		return "0x" + hex.EncodeToString(v)
	case Raw:
		return string(v)
	default:
		return quoteString(fmt.Sprint(v))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
