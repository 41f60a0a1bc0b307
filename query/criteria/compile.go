package criteria

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/carton-db/carton/query/expr"
)

// Compile produces a single parenthesized boolean expression for c.
// Field names embed as dialect-quoted identifiers, field values bind as
// parameters after passing through enc. A nil Encoder passes values
// through unchanged.
//
// Compilation is all-or-nothing: any unknown operator key or
// directive/field mix fails without partial output. Keys compile in
// sorted order, so equal criteria always produce equal statements.
func Compile(c Criteria, enc Encoder) (*expr.Expr, error) {
	p, err := compileObject(c, enc)
	if err != nil {
		return nil, err
	}
	if p.wrapped {
		return p.e, nil
	}
	return expr.NewBuilder().Text("(").Expr(p.e).Text(")").Build(), nil
}

// piece is a compiled sub-expression. Every piece is either atomic (a
// single comparison or tautology) or already parenthesized, so joins
// can embed it without precedence damage. wrapped reports the latter.
type piece struct {
	e       *expr.Expr
	wrapped bool
}

func compileObject(c Criteria, enc Encoder) (piece, error) {
	if len(c) == 0 {
		return piece{e: expr.Text("1 = 1")}, nil
	}

	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var directives, fields []string
	for _, k := range keys {
		if _, ok := directiveOf(k); ok {
			directives = append(directives, k)
		} else {
			fields = append(fields, k)
		}
	}
	if len(directives) > 0 && len(fields) > 0 {
		return piece{}, fmt.Errorf("%w: directive %q with field %q", ErrMixedKeys, directives[0], fields[0])
	}
	if len(directives) > 0 {
		return compileGroups(c, directives, enc)
	}
	return compileFields(c, fields, enc)
}

func compileGroups(c Criteria, keys []string, enc Encoder) (piece, error) {
	groups := make([]piece, 0, len(keys))
	for _, key := range keys {
		word, _ := directiveOf(key)
		items, err := groupItems(key, c[key])
		if err != nil {
			return piece{}, err
		}
		if len(items) == 0 {
			// Empty conjunction holds, empty disjunction does not.
			if word == "OR" {
				groups = append(groups, piece{e: expr.Text("1 = 0")})
			} else {
				groups = append(groups, piece{e: expr.Text("1 = 1")})
			}
			continue
		}
		members := make([]piece, 0, len(items))
		for _, item := range items {
			m, err := compileObject(item, enc)
			if err != nil {
				return piece{}, err
			}
			members = append(members, m)
		}
		groups = append(groups, joinBool(members, word))
	}
	return joinBool(groups, "AND"), nil
}

func compileFields(c Criteria, keys []string, enc Encoder) (piece, error) {
	var comps []piece
	for _, field := range keys {
		switch v := c[field].(type) {
		case Criteria:
			cs, err := compileOpMap(field, v, enc)
			if err != nil {
				return piece{}, err
			}
			comps = append(comps, cs...)
		case map[string]interface{}:
			cs, err := compileOpMap(field, v, enc)
			if err != nil {
				return piece{}, err
			}
			comps = append(comps, cs...)
		default:
			comp, err := compileComparison(field, Equals, v, enc)
			if err != nil {
				return piece{}, err
			}
			comps = append(comps, comp)
		}
	}
	return joinBool(comps, "AND"), nil
}

func compileOpMap(field string, m map[string]interface{}, enc Encoder) ([]piece, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("empty operator mapping for field %q", field)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	comps := make([]piece, 0, len(keys))
	for _, key := range keys {
		op, err := ParseOp(key)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		comp, err := compileComparison(field, op, m[key], enc)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

func compileComparison(field string, op Op, raw interface{}, enc Encoder) (piece, error) {
	if op == In || op == NotIn {
		return compileMembership(field, op, raw, enc)
	}
	if seq, ok := toSequence(raw); ok {
		return piece{}, fmt.Errorf("field %q: operator %s cannot take a %d-element sequence", field, op, len(seq))
	}

	value, err := encodeField(enc, field, raw)
	if err != nil {
		return piece{}, err
	}
	if value == nil && (op == Equals || op == NotEquals) {
		b := expr.NewBuilder().Ident(field)
		if op == Equals {
			b.Text(" is null")
		} else {
			b.Text(" is not null")
		}
		return piece{e: b.Build()}, nil
	}

	e := expr.NewBuilder().
		Ident(field).
		Text(" " + op.String() + " ").
		Value(value).
		Build()
	return piece{e: e}, nil
}

func compileMembership(field string, op Op, raw interface{}, enc Encoder) (piece, error) {
	seq, ok := toSequence(raw)
	if !ok {
		return piece{}, fmt.Errorf("field %q: operator %s needs a sequence value", field, op)
	}
	if len(seq) == 0 {
		// Membership in the empty set never holds; exclusion always does.
		if op == In {
			return piece{e: expr.Text("1 = 0")}, nil
		}
		return piece{e: expr.Text("1 = 1")}, nil
	}

	encoded := make([]interface{}, len(seq))
	for i, el := range seq {
		v, err := encodeField(enc, field, el)
		if err != nil {
			return piece{}, err
		}
		encoded[i] = v
	}

	e := expr.NewBuilder().
		Ident(field).
		Text(" " + op.String() + " (").
		Value(encoded).
		Text(")").
		Build()
	return piece{e: e}, nil
}

func encodeField(enc Encoder, field string, v interface{}) (interface{}, error) {
	if enc == nil {
		return v, nil
	}
	return enc.Encode(field, v)
}

// joinBool joins pieces with the boolean word, wrapping the result in
// parentheses. A single piece passes through untouched, so one-member
// groups add no parentheses of their own.
func joinBool(ps []piece, word string) piece {
	if len(ps) == 1 {
		return ps[0]
	}
	b := expr.NewBuilder().Text("(")
	for i, p := range ps {
		if i > 0 {
			b.Text(" " + word + " ")
		}
		b.Expr(p.e)
	}
	b.Text(")")
	return piece{e: b.Build(), wrapped: true}
}

func groupItems(key string, v interface{}) ([]Criteria, error) {
	switch v := v.(type) {
	case []Criteria:
		return v, nil
	case []map[string]interface{}:
		items := make([]Criteria, len(v))
		for i, m := range v {
			items[i] = Criteria(m)
		}
		return items, nil
	case []interface{}:
		items := make([]Criteria, len(v))
		for i, el := range v {
			switch el := el.(type) {
			case Criteria:
				items[i] = el
			case map[string]interface{}:
				items[i] = Criteria(el)
			default:
				return nil, fmt.Errorf("%w: %s[%d] is %T", ErrBadGroup, key, i, el)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrBadGroup, key, v)
	}
}

// toSequence mirrors the template compiler's sequence rule: slices and
// arrays expand, byte slices and strings stay scalar.
func toSequence(v interface{}) ([]interface{}, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return v, true
	case []byte, string:
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
