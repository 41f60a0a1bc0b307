package expr

// Builder assembles an expression incrementally while keeping the
// fragment/value interleaving valid by construction.
type Builder struct {
	fragments []string
	values    []interface{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{fragments: []string{""}}
}

// Text appends literal query text at the current position.
func (b *Builder) Text(text string) *Builder {
	b.fragments[len(b.fragments)-1] += text
	return b
}

// Value appends one substituted value.
func (b *Builder) Value(v interface{}) *Builder {
	b.values = append(b.values, v)
	b.fragments = append(b.fragments, "")
	return b
}

// Values appends vs as a single sequence value, which compiles to a
// comma-joined placeholder list.
func (b *Builder) Values(vs ...interface{}) *Builder {
	return b.Value(vs)
}

// Ident appends an identifier quoted by the target dialect.
func (b *Builder) Ident(name string) *Builder {
	return b.Value(Ident(name))
}

// Raw appends verbatim text carried as a value.
func (b *Builder) Raw(text string) *Builder {
	return b.Value(Raw(text))
}

// Expr appends a nested expression, compiled in place with parameter
// numbering continuing from the surrounding statement.
func (b *Builder) Expr(sub *Expr) *Builder {
	return b.Value(sub)
}

// Build returns the assembled expression. The builder stays usable and
// later calls do not affect expressions already built.
func (b *Builder) Build() *Expr {
	return &Expr{
		fragments: append([]string(nil), b.fragments...),
		values:    append([]interface{}(nil), b.values...),
	}
}
