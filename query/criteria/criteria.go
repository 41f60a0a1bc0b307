// Package criteria compiles nested filter objects into boolean SQL
// expressions.
//
// A filter maps field names to values. A plain value means equality; a
// nested mapping holds operator keys; the directive keys "and" and "or"
// hold lists of nested filters. Directive and field keys never mix in
// one object. The original DSL's "$" marker prefix is accepted on
// directive and operator keys.
package criteria

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMixedKeys reports directive keys sharing an object with field
	// keys.
	ErrMixedKeys = errors.New("cannot mix directives with fields")
	// ErrUnknownOp reports an unrecognized key inside an operator
	// mapping.
	ErrUnknownOp = errors.New("unknown operator")
	// ErrBadGroup reports a directive whose value is not a list of
	// criteria objects.
	ErrBadGroup = errors.New("directive needs a list of criteria")
)

// Criteria is one filter object.
type Criteria map[string]interface{}

// Encoder translates a field's raw criteria value before it binds,
// honoring the same coercion writes use. Unregistered fields must pass
// through unchanged.
type Encoder interface {
	Encode(field string, value interface{}) (interface{}, error)
}

// Op is a comparison operator of the filter DSL. The set is closed:
// unknown operator keys are rejected at parse time, never passed
// through.
type Op int

const (
	Equals Op = iota
	NotEquals
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
	In
	NotIn
)

// String returns the operator's SQL spelling.
func (o Op) String() string {
	switch o {
	case Equals:
		return "="
	case NotEquals:
		return "!="
	case Greater:
		return ">"
	case GreaterOrEqual:
		return ">="
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	case In:
		return "in"
	case NotIn:
		return "not in"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// ParseOp maps an operator key to its Op. Both the symbol and the word
// spelling are accepted, with an optional "$" marker prefix. Unknown
// keys produce an error naming the key.
func ParseOp(key string) (Op, error) {
	switch strings.TrimPrefix(key, "$") {
	case "=", "eq":
		return Equals, nil
	case "!=", "<>", "ne":
		return NotEquals, nil
	case ">", "gt":
		return Greater, nil
	case ">=", "gte":
		return GreaterOrEqual, nil
	case "<", "lt":
		return Less, nil
	case "<=", "lte":
		return LessOrEqual, nil
	case "in":
		return In, nil
	case "not in", "notIn", "nin":
		return NotIn, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownOp, key)
	}
}

// directiveOf recognizes the boolean-group keys.
func directiveOf(key string) (string, bool) {
	switch strings.TrimPrefix(key, "$") {
	case "and":
		return "AND", true
	case "or":
		return "OR", true
	default:
		return "", false
	}
}
