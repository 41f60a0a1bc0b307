// Package property defines the typed column descriptors a table stores
// alongside its document blob. A descriptor names a column, gives it a
// kind, and optionally overrides how values encode into and decode out
// of storage.
package property

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Column names owned by the table layer. Property names must not
// collide with them.
const (
	IDColumn  = "id"
	DocColumn = "doc"
)

var (
	// ErrDuplicate reports a property name registered twice in one set.
	ErrDuplicate = errors.New("duplicate property")
	// ErrReserved reports a property name colliding with a column the
	// table layer owns.
	ErrReserved = errors.New("reserved property name")
)

// Kind is the semantic type of a property column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	Time
	JSON
	Bytes
)

var kindNames = map[Kind]string{
	String: "string",
	Int:    "int",
	Float:  "float",
	Bool:   "bool",
	Time:   "time",
	JSON:   "json",
	Bytes:  "bytes",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name, as written in table descriptor files, back
// to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown property kind: %s", name)
}

// Codec converts one value. Codecs never see nil: null passes through
// unconverted in both directions.
type Codec func(value interface{}) (interface{}, error)

// Property describes one typed column. Encode runs on values headed for
// storage and on criteria values filtering this field; Decode runs on
// values read back. Nil codecs fall back to the kind's defaults.
type Property struct {
	Name   string
	Kind   Kind
	Encode Codec
	Decode Codec
}

func (p Property) encode(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if p.Encode != nil {
		return p.Encode(v)
	}
	return defaultEncode(p.Kind, v)
}

func (p Property) decode(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if p.Decode != nil {
		return p.Decode(v)
	}
	return defaultDecode(p.Kind, v)
}

func defaultEncode(k Kind, v interface{}) (interface{}, error) {
	switch k {
	case Int:
		return toInt64(v)
	case Float:
		return toFloat64(v)
	case Time:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		return nil, fmt.Errorf("cannot encode %T as time", v)
	case JSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return string(data), nil
	default:
		return v, nil
	}
}

func defaultDecode(k Kind, v interface{}) (interface{}, error) {
	switch k {
	case Bool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
		return v, nil
	case Time:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse("2006-01-02 15:04:05.999", v)
			if err != nil {
				return nil, fmt.Errorf("decode time: %w", err)
			}
			return t, nil
		}
		return v, nil
	case JSON:
		var out interface{}
		switch v := v.(type) {
		case string:
			if err := json.Unmarshal([]byte(v), &out); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			return out, nil
		case []byte:
			if err := json.Unmarshal(v, &out); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			return out, nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func toInt64(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as int", v)
	}
}

func toFloat64(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as float", v)
	}
}

// Set is an immutable collection of property descriptors, built once at
// definition time and shared read-only by every compiler invocation.
type Set struct {
	props map[string]Property
	names []string
}

// NewSet validates and freezes a property collection. Duplicate and
// reserved names are definition errors; every offending name is
// reported, not just the first.
func NewSet(props ...Property) (*Set, error) {
	s := &Set{props: make(map[string]Property, len(props))}
	var errs *multierror.Error
	for _, p := range props {
		if p.Name == IDColumn || p.Name == DocColumn {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrReserved, p.Name))
			continue
		}
		if _, exists := s.props[p.Name]; exists {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrDuplicate, p.Name))
			continue
		}
		s.props[p.Name] = p
		s.names = append(s.names, p.Name)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNewSet is NewSet, panicking on definition errors.
func MustNewSet(props ...Property) *Set {
	s, err := NewSet(props...)
	if err != nil {
		panic(err)
	}
	return s
}

// EmptySet returns a set with no properties. Encode and Decode pass
// every field through unchanged.
func EmptySet() *Set {
	return &Set{props: map[string]Property{}}
}

// Get returns the descriptor for name.
func (s *Set) Get(name string) (Property, bool) {
	p, ok := s.props[name]
	return p, ok
}

// Names returns the property names in definition order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of properties in the set.
func (s *Set) Len() int { return len(s.names) }

// Encode runs field's encode codec over value. Unregistered fields pass
// through unchanged, which keeps filtering on the identity column and
// other unmanaged columns working.
func (s *Set) Encode(field string, value interface{}) (interface{}, error) {
	p, ok := s.props[field]
	if !ok {
		return value, nil
	}
	out, err := p.encode(value)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", field, err)
	}
	return out, nil
}

// Decode runs field's decode codec over a stored value. Unregistered
// fields pass through unchanged.
func (s *Set) Decode(field string, value interface{}) (interface{}, error) {
	p, ok := s.props[field]
	if !ok {
		return value, nil
	}
	out, err := p.decode(value)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", field, err)
	}
	return out, nil
}
