// Package session wraps database/sql pools behind the expression
// compiler: statements go in as expressions and compile for the
// session's dialect on the way to the driver.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/query/expr"
)

// ErrNotConnected is returned when a session executes before any pool
// is connected.
var ErrNotConnected = errors.New("session has no connected pool")

// Session owns one or more database pools sharing a dialect. The most
// recently connected pool is the default execution target; that is
// connection affinity, not a guarantee callers should depend on.
//
// Sessions are safe for concurrent use. The compilers underneath are
// pure; only pool bookkeeping is guarded.
type Session struct {
	d      dialect.Dialect
	logger hclog.Logger

	mu    sync.RWMutex
	pools []*sql.DB
}

// Option configures a session.
type Option func(*Session)

// WithLogger sets the statement logger. Statements log at debug level;
// failures add the fully inlined rendering at trace level.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New returns a session for the dialect with no pools connected.
func New(d dialect.Dialect, opts ...Option) *Session {
	s := &Session{
		d:      d,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialect returns the session's dialect.
func (s *Session) Dialect() dialect.Dialect { return s.d }

// Connect opens a pool for the connection string, verifies it with a
// ping, and makes it the session's default execution target.
func (s *Session) Connect(ctx context.Context, dsn string) error {
	driver := dialect.DriverName(s.d)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s pool: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s pool: %w", driver, err)
	}
	s.adopt(db)
	return nil
}

// ConnectDB adopts an already-open pool and makes it the session's
// default execution target. The session takes over closing it.
func (s *Session) ConnectDB(db *sql.DB) {
	s.adopt(db)
}

func (s *Session) adopt(db *sql.DB) {
	s.mu.Lock()
	s.pools = append(s.pools, db)
	n := len(s.pools)
	s.mu.Unlock()
	s.logger.Debug("pool connected", "dialect", s.d.Name(), "pools", n)
}

// DB returns the default pool, or nil before the first connect.
func (s *Session) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pools) == 0 {
		return nil
	}
	return s.pools[len(s.pools)-1]
}

// PoolCount returns the number of connected pools.
func (s *Session) PoolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}

func (s *Session) defaultPool() (*sql.DB, error) {
	if db := s.DB(); db != nil {
		return db, nil
	}
	return nil, ErrNotConnected
}

// Exec compiles e for the session's dialect and runs it on the default
// pool.
func (s *Session) Exec(ctx context.Context, e *expr.Expr) (sql.Result, error) {
	db, err := s.defaultPool()
	if err != nil {
		return nil, err
	}
	st, err := e.Compile(s.d)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("exec", "sql", st.Text, "params", len(st.Params))
	res, err := db.ExecContext(ctx, st.Text, st.Args()...)
	if err != nil {
		s.logStatementError(e, st, err)
		return nil, err
	}
	return res, nil
}

// Query compiles e and runs it on the default pool, returning the rows.
func (s *Session) Query(ctx context.Context, e *expr.Expr) (*sql.Rows, error) {
	db, err := s.defaultPool()
	if err != nil {
		return nil, err
	}
	st, err := e.Compile(s.d)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query", "sql", st.Text, "params", len(st.Params))
	rows, err := db.QueryContext(ctx, st.Text, st.Args()...)
	if err != nil {
		s.logStatementError(e, st, err)
		return nil, err
	}
	return rows, nil
}

// QueryRow compiles e and runs it on the default pool, returning the
// single-row handle. Row errors surface on Scan, per database/sql.
func (s *Session) QueryRow(ctx context.Context, e *expr.Expr) (*sql.Row, error) {
	db, err := s.defaultPool()
	if err != nil {
		return nil, err
	}
	st, err := e.Compile(s.d)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query row", "sql", st.Text, "params", len(st.Params))
	return db.QueryRowContext(ctx, st.Text, st.Args()...), nil
}

// QueryMaps runs e and scans every row into a column-keyed map.
func (s *Session) QueryMaps(ctx context.Context, e *expr.Expr) ([]map[string]interface{}, error) {
	rows, err := s.Query(ctx, e)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMaps(rows)
}

func (s *Session) logStatementError(e *expr.Expr, st *expr.Statement, err error) {
	s.logger.Error("statement failed", "sql", st.Text, "err", err)
	if s.logger.IsTrace() {
		s.logger.Trace("failed statement detail", "inline", e.String())
	}
}

// Close closes every pool, collecting all failures.
func (s *Session) Close() error {
	s.mu.Lock()
	pools := s.pools
	s.pools = nil
	s.mu.Unlock()

	var errs *multierror.Error
	for _, db := range pools {
		if err := db.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// scanMaps drains rows into column-keyed maps, normalizing []byte cells
// to strings.
func scanMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		cells := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			v := cells[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
