package property

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet(t *testing.T) {
	s, err := NewSet(
		Property{Name: "status", Kind: Int},
		Property{Name: "name", Kind: String},
		Property{Name: "paid", Kind: Bool},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"status", "name", "paid"}, s.Names())
	assert.Equal(t, 3, s.Len())

	p, ok := s.Get("status")
	require.True(t, ok)
	assert.Equal(t, Int, p.Kind)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestNewSet_DefinitionErrors(t *testing.T) {
	_, err := NewSet(
		Property{Name: "id", Kind: String},
		Property{Name: "doc", Kind: String},
		Property{Name: "amount", Kind: Int},
		Property{Name: "amount", Kind: Float},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReserved)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "id")
	assert.Contains(t, err.Error(), "doc")
	assert.Contains(t, err.Error(), "amount")

	assert.Panics(t, func() { MustNewSet(Property{Name: "id"}) })
}

func TestSet_Encode(t *testing.T) {
	s := MustNewSet(
		Property{Name: "amount", Kind: Int, Encode: func(v interface{}) (interface{}, error) {
			return v.(int) * 100, nil
		}},
		Property{Name: "status", Kind: Int},
	)

	// Custom codec applies.
	got, err := s.Encode("amount", 5)
	require.NoError(t, err)
	assert.Equal(t, 500, got)

	// Default kind coercion applies.
	got, err = s.Encode("status", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	// Unregistered fields pass through unchanged.
	got, err = s.Encode("id", "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", got)

	// Null never reaches a codec.
	got, err = s.Encode("amount", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSet_EncodeErrorNamesField(t *testing.T) {
	s := MustNewSet(Property{Name: "count", Kind: Int})
	_, err := s.Encode("count", "not a number")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
}

func TestDefaultCodecs(t *testing.T) {
	t.Run("int widths normalize to int64", func(t *testing.T) {
		s := MustNewSet(Property{Name: "n", Kind: Int})
		for _, in := range []interface{}{int(7), int32(7), int64(7), uint8(7), float64(7)} {
			got, err := s.Encode("n", in)
			require.NoError(t, err)
			assert.Equal(t, int64(7), got)
		}
	})

	t.Run("float widths normalize to float64", func(t *testing.T) {
		s := MustNewSet(Property{Name: "f", Kind: Float})
		got, err := s.Encode("f", float32(1.5))
		require.NoError(t, err)
		assert.Equal(t, float64(1.5), got)
	})

	t.Run("json encodes to text and decodes back", func(t *testing.T) {
		s := MustNewSet(Property{Name: "meta", Kind: JSON})
		enc, err := s.Encode("meta", map[string]interface{}{"a": 1.0})
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, enc)

		dec, err := s.Decode("meta", enc)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"a": 1.0}, dec)
	})

	t.Run("bool decodes driver integers", func(t *testing.T) {
		s := MustNewSet(Property{Name: "paid", Kind: Bool})
		dec, err := s.Decode("paid", int64(1))
		require.NoError(t, err)
		assert.Equal(t, true, dec)

		dec, err = s.Decode("paid", int64(0))
		require.NoError(t, err)
		assert.Equal(t, false, dec)
	})

	t.Run("time decodes stored text", func(t *testing.T) {
		s := MustNewSet(Property{Name: "at", Kind: Time})
		dec, err := s.Decode("at", "2024-03-09 13:04:05.123")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 9, 13, 4, 5, 123000000, time.UTC), dec)
	})
}

func TestKindNames(t *testing.T) {
	for _, k := range []Kind{String, Int, Float, Bool, Time, JSON, Bytes} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("decimal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimal")

	assert.Equal(t, "kind(99)", Kind(99).String())
}
