package criteria

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/runtime/property"
)

func compileText(t *testing.T, c Criteria, enc Encoder, d dialect.Dialect) (string, []interface{}) {
	t.Helper()
	e, err := Compile(c, enc)
	require.NoError(t, err)
	st, err := e.Compile(d)
	require.NoError(t, err)
	return st.Text, st.Args()
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		c        Criteria
		wantText string
		wantArgs []interface{}
	}{
		{
			name:     "empty criteria tautology",
			c:        Criteria{},
			wantText: "(1 = 1)",
			wantArgs: []interface{}{},
		},
		{
			name:     "single equality",
			c:        Criteria{"a": 1},
			wantText: "([a] = @p1)",
			wantArgs: []interface{}{1},
		},
		{
			name:     "membership sequence expansion",
			c:        Criteria{"status": Criteria{"in": []interface{}{1, 2, 3}}},
			wantText: "([status] in (@p1, @p2, @p3))",
			wantArgs: []interface{}{1, 2, 3},
		},
		{
			name:     "typed slice membership",
			c:        Criteria{"status": map[string]interface{}{"in": []int{1, 2, 3}}},
			wantText: "([status] in (@p1, @p2, @p3))",
			wantArgs: []interface{}{1, 2, 3},
		},
		{
			name:     "or group",
			c:        Criteria{"or": []Criteria{{"a": 1}, {"a": 2}}},
			wantText: "([a] = @p1 OR [a] = @p2)",
			wantArgs: []interface{}{1, 2},
		},
		{
			name:     "fields join sorted",
			c:        Criteria{"b": 2, "a": 1},
			wantText: "([a] = @p1 AND [b] = @p2)",
			wantArgs: []interface{}{1, 2},
		},
		{
			name:     "operator mapping joins sorted",
			c:        Criteria{"qty": Criteria{"lt": 10, "gte": 1}},
			wantText: "([qty] >= @p1 AND [qty] < @p2)",
			wantArgs: []interface{}{1, 10},
		},
		{
			name:     "symbol operator keys",
			c:        Criteria{"qty": Criteria{">=": 1, "<": 10}},
			wantText: "([qty] < @p1 AND [qty] >= @p2)",
			wantArgs: []interface{}{10, 1},
		},
		{
			name:     "marker prefixes accepted",
			c:        Criteria{"$or": []interface{}{Criteria{"a": Criteria{"$eq": 1}}, Criteria{"a": 2}}},
			wantText: "([a] = @p1 OR [a] = @p2)",
			wantArgs: []interface{}{1, 2},
		},
		{
			name: "nested groups",
			c: Criteria{"and": []Criteria{
				{"or": []Criteria{{"a": 1}, {"b": 2}}},
				{"c": Criteria{"gt": 3}},
			}},
			wantText: "(([a] = @p1 OR [b] = @p2) AND [c] > @p3)",
			wantArgs: []interface{}{1, 2, 3},
		},
		{
			name:     "single member group drops its parentheses",
			c:        Criteria{"or": []Criteria{{"a": 1}}},
			wantText: "([a] = @p1)",
			wantArgs: []interface{}{1},
		},
		{
			name:     "directives at one level join with and",
			c:        Criteria{"and": []Criteria{{"a": 1}}, "or": []Criteria{{"b": 2}, {"c": 3}}},
			wantText: "([a] = @p1 AND ([b] = @p2 OR [c] = @p3))",
			wantArgs: []interface{}{1, 2, 3},
		},
		{
			name:     "null equality",
			c:        Criteria{"deleted_at": nil},
			wantText: "([deleted_at] is null)",
			wantArgs: []interface{}{},
		},
		{
			name:     "null not equals",
			c:        Criteria{"deleted_at": Criteria{"ne": nil}},
			wantText: "([deleted_at] is not null)",
			wantArgs: []interface{}{},
		},
		{
			name:     "empty membership never matches",
			c:        Criteria{"a": Criteria{"in": []interface{}{}}},
			wantText: "(1 = 0)",
			wantArgs: []interface{}{},
		},
		{
			name:     "empty exclusion always matches",
			c:        Criteria{"a": Criteria{"not in": []interface{}{}}},
			wantText: "(1 = 1)",
			wantArgs: []interface{}{},
		},
		{
			name:     "exclusion with values",
			c:        Criteria{"a": Criteria{"not in": []string{"x", "y"}}},
			wantText: "([a] not in (@p1, @p2))",
			wantArgs: []interface{}{"x", "y"},
		},
		{
			name:     "nin alias",
			c:        Criteria{"a": Criteria{"nin": []int{1}}},
			wantText: "([a] not in (@p1))",
			wantArgs: []interface{}{1},
		},
		{
			name:     "identifier quoting doubles closing bracket",
			c:        Criteria{"we]ird": 1},
			wantText: "([we]]ird] = @p1)",
			wantArgs: []interface{}{1},
		},
		{
			name:     "empty group conjunction holds",
			c:        Criteria{"and": []Criteria{}},
			wantText: "(1 = 1)",
			wantArgs: []interface{}{},
		},
		{
			name:     "empty group disjunction never holds",
			c:        Criteria{"or": []Criteria{}},
			wantText: "(1 = 0)",
			wantArgs: []interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, args := compileText(t, tt.c, nil, dialect.SQLServer)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompile_OtherDialects(t *testing.T) {
	c := Criteria{"a": 1, "b": Criteria{"in": []int{2, 3}}}

	text, args := compileText(t, c, nil, dialect.Postgres)
	assert.Equal(t, `("a" = $1 AND "b" in ($2, $3))`, text)
	assert.Equal(t, []interface{}{1, 2, 3}, args)

	text, _ = compileText(t, c, nil, dialect.MySQL)
	assert.Equal(t, "(`a` = ? AND `b` in (?, ?))", text)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		c       Criteria
		wantErr error
		naming  string
	}{
		{
			name:    "directive mixed with field",
			c:       Criteria{"a": 1, "or": []Criteria{{"b": 2}}},
			wantErr: ErrMixedKeys,
			naming:  `"or"`,
		},
		{
			name:    "unknown operator key",
			c:       Criteria{"a": Criteria{"eq": 1, "foo": 2}},
			wantErr: ErrUnknownOp,
			naming:  "foo",
		},
		{
			name:    "directive value not a list",
			c:       Criteria{"or": 5},
			wantErr: ErrBadGroup,
			naming:  "or",
		},
		{
			name:    "directive element not an object",
			c:       Criteria{"or": []interface{}{5}},
			wantErr: ErrBadGroup,
			naming:  "or[0]",
		},
		{
			name:   "membership needs a sequence",
			c:      Criteria{"a": Criteria{"in": 5}},
			naming: `"a"`,
		},
		{
			name:   "equality rejects sequences",
			c:      Criteria{"a": []int{1, 2}},
			naming: `"a"`,
		},
		{
			name:   "empty operator mapping",
			c:      Criteria{"a": Criteria{}},
			naming: `"a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.c, nil)
			require.Error(t, err)
			assert.Nil(t, e, "no partial output on validation errors")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.naming)
		})
	}
}

func TestCompile_EncodePassThrough(t *testing.T) {
	props := property.MustNewSet(
		property.Property{Name: "amount", Kind: property.Int, Encode: func(v interface{}) (interface{}, error) {
			return v.(int) * 100, nil
		}},
	)

	// Scalars encode before binding.
	text, args := compileText(t, Criteria{"amount": 5}, props, dialect.SQLServer)
	assert.Equal(t, "([amount] = @p1)", text)
	assert.Equal(t, []interface{}{500}, args)

	// Membership encodes element-wise.
	_, args = compileText(t, Criteria{"amount": Criteria{"in": []int{1, 2, 3}}}, props, dialect.SQLServer)
	assert.Equal(t, []interface{}{100, 200, 300}, args)

	// Unregistered fields bind unchanged.
	_, args = compileText(t, Criteria{"id": "abc"}, props, dialect.SQLServer)
	assert.Equal(t, []interface{}{"abc"}, args)
}

type failingEncoder struct{ err error }

func (f failingEncoder) Encode(string, interface{}) (interface{}, error) { return nil, f.err }

func TestCompile_EncoderErrorPropagates(t *testing.T) {
	boom := errors.New("boom")

	_, err := Compile(Criteria{"a": 1}, failingEncoder{err: boom})
	assert.ErrorIs(t, err, boom)

	_, err = Compile(Criteria{"a": Criteria{"in": []int{1}}}, failingEncoder{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		key  string
		want Op
	}{
		{key: "=", want: Equals},
		{key: "eq", want: Equals},
		{key: "$eq", want: Equals},
		{key: "!=", want: NotEquals},
		{key: "<>", want: NotEquals},
		{key: "ne", want: NotEquals},
		{key: ">", want: Greater},
		{key: "gt", want: Greater},
		{key: ">=", want: GreaterOrEqual},
		{key: "gte", want: GreaterOrEqual},
		{key: "<", want: Less},
		{key: "lt", want: Less},
		{key: "<=", want: LessOrEqual},
		{key: "lte", want: LessOrEqual},
		{key: "in", want: In},
		{key: "$in", want: In},
		{key: "not in", want: NotIn},
		{key: "notIn", want: NotIn},
		{key: "nin", want: NotIn},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseOp(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOp("like")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOp)
	assert.Contains(t, err.Error(), "like")
}
