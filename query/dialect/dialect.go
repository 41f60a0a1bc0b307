// Package dialect describes provider-specific SQL conventions: placeholder
// naming, identifier quoting, parameter limits, and column types.
package dialect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is returned by ForProvider for provider names this
// package does not recognize.
var ErrUnknownProvider = errors.New("unknown provider")

// Dialect describes the SQL conventions of one database provider.
type Dialect interface {
	// Name returns the canonical provider name, e.g. "sqlserver".
	Name() string
	// Placeholder returns the text of the n-th parameter placeholder.
	// Numbering starts at 1.
	Placeholder(n int) string
	// QuoteIdent quotes an identifier, doubling the closing quote
	// character wherever it appears inside the name.
	QuoteIdent(name string) string
	// MaxParams is the largest number of bound parameters the provider
	// accepts in a single statement. Compilation degrades values past
	// this count to inline literals.
	MaxParams() int
	// ColumnType maps a property kind name to the provider's column type.
	ColumnType(kind string) string
}

// Exported dialect singletons. SQLServer is the default throughout the
// runtime packages.
var (
	SQLServer Dialect = sqlserver{}
	Postgres  Dialect = postgres{}
	MySQL     Dialect = mysql{}
	SQLite    Dialect = sqlite{}
)

// ForProvider returns the dialect for the given provider name.
func ForProvider(provider string) (Dialect, error) {
	switch provider {
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "postgresql", "postgres":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// DriverName returns the database/sql driver name registered for the
// dialect. Callers are responsible for importing a matching driver.
func DriverName(d Dialect) string {
	switch d.Name() {
	case "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return d.Name()
	}
}

type sqlserver struct{}

func (sqlserver) Name() string { return "sqlserver" }

func (sqlserver) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (sqlserver) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (sqlserver) MaxParams() int { return 2100 }

func (sqlserver) ColumnType(kind string) string {
	switch kind {
	case "id":
		return "NVARCHAR(64)"
	case "string":
		return "NVARCHAR(MAX)"
	case "int":
		return "BIGINT"
	case "float":
		return "FLOAT"
	case "bool":
		return "BIT"
	case "time":
		return "DATETIME2"
	case "bytes":
		return "VARBINARY(MAX)"
	default:
		return "NVARCHAR(MAX)"
	}
}

type postgres struct{}

func (postgres) Name() string { return "postgres" }

func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgres) MaxParams() int { return 65535 }

func (postgres) ColumnType(kind string) string {
	switch kind {
	case "id":
		return "VARCHAR(64)"
	case "string":
		return "TEXT"
	case "int":
		return "BIGINT"
	case "float":
		return "DOUBLE PRECISION"
	case "bool":
		return "BOOLEAN"
	case "time":
		return "TIMESTAMPTZ"
	case "bytes":
		return "BYTEA"
	case "json":
		return "JSONB"
	default:
		return "TEXT"
	}
}

type mysql struct{}

func (mysql) Name() string { return "mysql" }

func (mysql) Placeholder(n int) string { return "?" }

func (mysql) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysql) MaxParams() int { return 65535 }

func (mysql) ColumnType(kind string) string {
	switch kind {
	case "id":
		return "VARCHAR(64)"
	case "string":
		return "TEXT"
	case "int":
		return "BIGINT"
	case "float":
		return "DOUBLE"
	case "bool":
		return "TINYINT(1)"
	case "time":
		return "DATETIME(6)"
	case "bytes":
		return "LONGBLOB"
	case "json":
		return "JSON"
	default:
		return "TEXT"
	}
}

type sqlite struct{}

func (sqlite) Name() string { return "sqlite" }

func (sqlite) Placeholder(n int) string { return "?" }

func (sqlite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqlite) MaxParams() int { return 999 }

func (sqlite) ColumnType(kind string) string {
	switch kind {
	case "id", "string", "time", "json":
		return "TEXT"
	case "int", "bool":
		return "INTEGER"
	case "float":
		return "REAL"
	case "bytes":
		return "BLOB"
	default:
		return "TEXT"
	}
}
