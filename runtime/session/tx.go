package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/query/expr"
)

// Tx is one open transaction, bound to a single connection for its
// whole duration. A mutex serializes every statement against that
// connection: there are no concurrent statements inside an open
// transaction.
type Tx struct {
	tx     *sql.Tx
	d      dialect.Dialect
	logger hclog.Logger
	mu     sync.Mutex
}

// TxFunc runs inside a transaction.
type TxFunc func(tx *Tx) error

// Begin opens a transaction on the default pool. A nil opts uses the
// driver defaults.
func (s *Session) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	db, err := s.defaultPool()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx, d: s.d, logger: s.logger}, nil
}

// WithTx runs fn inside a transaction. The transaction rolls back when
// fn returns an error or panics, and commits otherwise.
func (s *Session) WithTx(ctx context.Context, fn TxFunc) error {
	return s.WithTxOptions(ctx, nil, fn)
}

// WithTxOptions is WithTx with explicit transaction options.
func (s *Session) WithTxOptions(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error {
	tx, err := s.Begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Dialect returns the dialect statements compile for.
func (t *Tx) Dialect() dialect.Dialect { return t.d }

// Exec compiles e and runs it inside the transaction.
func (t *Tx) Exec(ctx context.Context, e *expr.Expr) (sql.Result, error) {
	st, err := e.Compile(t.d)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Debug("tx exec", "sql", st.Text, "params", len(st.Params))
	return t.tx.ExecContext(ctx, st.Text, st.Args()...)
}

// Query compiles e and runs it inside the transaction.
func (t *Tx) Query(ctx context.Context, e *expr.Expr) (*sql.Rows, error) {
	st, err := e.Compile(t.d)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Debug("tx query", "sql", st.Text, "params", len(st.Params))
	return t.tx.QueryContext(ctx, st.Text, st.Args()...)
}

// QueryRow compiles e and runs it inside the transaction.
func (t *Tx) QueryRow(ctx context.Context, e *expr.Expr) (*sql.Row, error) {
	st, err := e.Compile(t.d)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Debug("tx query row", "sql", st.Text, "params", len(st.Params))
	return t.tx.QueryRowContext(ctx, st.Text, st.Args()...), nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Rollback()
}
