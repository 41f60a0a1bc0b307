// Package table provides a lightweight document table over a SQL
// runner: each row holds an id, a JSON document, and one typed column
// per registered property for filtering and projection.
package table

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carton-db/carton/query/criteria"
	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/query/expr"
	"github.com/carton-db/carton/runtime/property"
)

// ErrNotFound is returned when a single-row operation matches nothing.
var ErrNotFound = errors.New("row not found")

// Runner executes compiled expressions. Session and Tx both satisfy it,
// so a table works inside and outside transactions.
type Runner interface {
	Dialect() dialect.Dialect
	Exec(ctx context.Context, e *expr.Expr) (sql.Result, error)
	Query(ctx context.Context, e *expr.Expr) (*sql.Rows, error)
	QueryRow(ctx context.Context, e *expr.Expr) (*sql.Row, error)
}

// Doc is one stored document.
type Doc map[string]interface{}

// Table is a named relation storing documents as JSON alongside typed
// property columns. The definition is immutable; On rebinds it to
// another runner.
type Table struct {
	r     Runner
	name  string
	props *property.Set
}

// New binds a table definition to a runner. A nil property set means
// the table stores only id and document columns.
func New(r Runner, name string, props *property.Set) *Table {
	if props == nil {
		props = property.EmptySet()
	}
	return &Table{r: r, name: name, props: props}
}

// On returns the same table definition bound to another runner,
// typically an open transaction.
func (t *Table) On(r Runner) *Table {
	return &Table{r: r, name: t.name, props: t.props}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Properties returns the table's property set.
func (t *Table) Properties() *property.Set { return t.props }

// Insert stores doc and returns its id. A string value under "id" is
// used as-is; otherwise a random id is generated. Property columns fill
// from the document's matching fields through their encode codecs.
func (t *Table) Insert(ctx context.Context, doc Doc) (string, error) {
	id, err := docID(doc)
	if err != nil {
		return "", fmt.Errorf("table %s: %w", t.name, err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("table %s: marshal document: %w", t.name, err)
	}

	names := t.props.Names()
	b := expr.NewBuilder().
		Text("insert into ").Ident(t.name).
		Text(" (").Ident(property.IDColumn).
		Text(", ").Ident(property.DocColumn)
	for _, name := range names {
		b.Text(", ").Ident(name)
	}
	b.Text(") values (").Value(id).Text(", ").Value(string(data))
	for _, name := range names {
		encoded, err := t.props.Encode(name, doc[name])
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.name, err)
		}
		b.Text(", ").Value(encoded)
	}
	b.Text(")")

	if _, err := t.r.Exec(ctx, b.Build()); err != nil {
		return "", err
	}
	return id, nil
}

// Get reads one document by id.
func (t *Table) Get(ctx context.Context, id string) (Doc, error) {
	e := expr.NewBuilder().
		Text("select ").Ident(property.DocColumn).
		Text(" from ").Ident(t.name).
		Text(" where ").Ident(property.IDColumn).Text(" = ").Value(id).
		Build()

	row, err := t.r.QueryRow(ctx, e)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("table %s id %s: %w", t.name, id, ErrNotFound)
		}
		return nil, err
	}
	return decodeDoc(id, raw)
}

// Select reads every document matching c, empty criteria matching all.
func (t *Table) Select(ctx context.Context, c criteria.Criteria) ([]Doc, error) {
	e, err := t.selectExpr(c)
	if err != nil {
		return nil, err
	}
	rows, err := t.r.Query(ctx, e)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SelectOne reads the first document matching c.
func (t *Table) SelectOne(ctx context.Context, c criteria.Criteria) (Doc, error) {
	docs, err := t.Select(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("table %s: %w", t.name, ErrNotFound)
	}
	return docs[0], nil
}

// Update replaces the document stored under id, property columns
// included.
func (t *Table) Update(ctx context.Context, id string, doc Doc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("table %s: marshal document: %w", t.name, err)
	}

	b := expr.NewBuilder().
		Text("update ").Ident(t.name).
		Text(" set ").Ident(property.DocColumn).Text(" = ").Value(string(data))
	for _, name := range t.props.Names() {
		encoded, err := t.props.Encode(name, doc[name])
		if err != nil {
			return fmt.Errorf("table %s: %w", t.name, err)
		}
		b.Text(", ").Ident(name).Text(" = ").Value(encoded)
	}
	b.Text(" where ").Ident(property.IDColumn).Text(" = ").Value(id)

	res, err := t.r.Exec(ctx, b.Build())
	if err != nil {
		return err
	}
	return oneRowTouched(res, fmt.Errorf("table %s id %s: %w", t.name, id, ErrNotFound))
}

// Delete removes every document matching c and reports how many went.
func (t *Table) Delete(ctx context.Context, c criteria.Criteria) (int64, error) {
	where, err := criteria.Compile(c, t.props)
	if err != nil {
		return 0, err
	}
	e := expr.NewBuilder().
		Text("delete from ").Ident(t.name).
		Text(" where ").Expr(where).
		Build()

	res, err := t.r.Exec(ctx, e)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByID removes one document.
func (t *Table) DeleteByID(ctx context.Context, id string) error {
	e := expr.NewBuilder().
		Text("delete from ").Ident(t.name).
		Text(" where ").Ident(property.IDColumn).Text(" = ").Value(id).
		Build()

	res, err := t.r.Exec(ctx, e)
	if err != nil {
		return err
	}
	return oneRowTouched(res, fmt.Errorf("table %s id %s: %w", t.name, id, ErrNotFound))
}

// Count reports how many documents match c.
func (t *Table) Count(ctx context.Context, c criteria.Criteria) (int64, error) {
	where, err := criteria.Compile(c, t.props)
	if err != nil {
		return 0, err
	}
	e := expr.NewBuilder().
		Text("select count(*) from ").Ident(t.name).
		Text(" where ").Expr(where).
		Build()

	row, err := t.r.QueryRow(ctx, e)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Values projects one property column over the documents matching c,
// decoded through the property's codec.
func (t *Table) Values(ctx context.Context, field string, c criteria.Criteria) ([]interface{}, error) {
	where, err := criteria.Compile(c, t.props)
	if err != nil {
		return nil, err
	}
	e := expr.NewBuilder().
		Text("select ").Ident(field).
		Text(" from ").Ident(t.name).
		Text(" where ").Expr(where).
		Build()

	rows, err := t.r.Query(ctx, e)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		var cell interface{}
		if err := rows.Scan(&cell); err != nil {
			return nil, err
		}
		if b, ok := cell.([]byte); ok {
			cell = string(b)
		}
		decoded, err := t.props.Decode(field, cell)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, rows.Err()
}

func (t *Table) selectExpr(c criteria.Criteria) (*expr.Expr, error) {
	where, err := criteria.Compile(c, t.props)
	if err != nil {
		return nil, err
	}
	return expr.NewBuilder().
		Text("select ").Ident(property.IDColumn).
		Text(", ").Ident(property.DocColumn).
		Text(" from ").Ident(t.name).
		Text(" where ").Expr(where).
		Build(), nil
}

func docID(doc Doc) (string, error) {
	v, ok := doc[property.IDColumn]
	if !ok || v == nil {
		return "", nil
	}
	id, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("document id must be a string, got %T", v)
	}
	return id, nil
}

func decodeDoc(id string, raw []byte) (Doc, error) {
	doc := Doc{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
		}
	}
	doc[property.IDColumn] = id
	return doc, nil
}

func oneRowTouched(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
