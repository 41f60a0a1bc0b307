package table

import (
	"context"
	"strings"

	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/query/expr"
	"github.com/carton-db/carton/runtime/property"
)

// CreateDDL renders the CREATE TABLE statement for d. The id column is
// the primary key, the document column uses the dialect's JSON storage
// type, and each property column uses the type mapped from its kind.
func (t *Table) CreateDDL(d dialect.Dialect) string {
	var cols []string
	cols = append(cols, d.QuoteIdent(property.IDColumn)+" "+d.ColumnType("id")+" PRIMARY KEY")
	cols = append(cols, d.QuoteIdent(property.DocColumn)+" "+d.ColumnType("json"))
	for _, name := range t.props.Names() {
		p, _ := t.props.Get(name)
		cols = append(cols, d.QuoteIdent(name)+" "+d.ColumnType(p.Kind.String()))
	}

	quoted := d.QuoteIdent(t.name)
	body := "CREATE TABLE " + quoted + " (\n  " + strings.Join(cols, ",\n  ") + "\n)"

	// SQL Server has no IF NOT EXISTS on CREATE TABLE.
	if d.Name() == dialect.SQLServer.Name() {
		return "IF OBJECT_ID(N'" + quoted + "', N'U') IS NULL\n" + body
	}
	return strings.Replace(body, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}

// EnsureSchema creates the table on the bound runner when it does not
// exist yet.
func (t *Table) EnsureSchema(ctx context.Context) error {
	ddl := t.CreateDDL(t.r.Dialect())
	_, err := t.r.Exec(ctx, expr.NewBuilder().Raw(ddl).Build())
	return err
}
