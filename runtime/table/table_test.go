package table

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carton-db/carton/query/criteria"
	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/runtime/property"
	"github.com/carton-db/carton/runtime/session"
)

func ordersProps(t *testing.T) *property.Set {
	t.Helper()
	props, err := property.NewSet(
		property.Property{Name: "amount", Kind: property.Int},
		property.Property{Name: "status", Kind: property.Int},
	)
	require.NoError(t, err)
	return props
}

func newMockTable(t *testing.T) (*Table, *session.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s := session.New(dialect.SQLServer)
	s.ConnectDB(db)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, "orders", ordersProps(t)), s, mock
}

func TestTable_InsertWithGivenID(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec("insert into [orders] ([id], [doc], [amount], [status]) values (@p1, @p2, @p3, @p4)").
		WithArgs("o-1", `{"amount":5,"id":"o-1","note":"x","status":2}`, int64(5), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := tbl.Insert(context.Background(), Doc{
		"id":     "o-1",
		"amount": 5,
		"status": 2,
		"note":   "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_InsertGeneratesID(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec("insert into [orders] ([id], [doc], [amount], [status]) values (@p1, @p2, @p3, @p4)").
		WithArgs(sqlmock.AnyArg(), `{"status":7}`, nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := tbl.Insert(context.Background(), Doc{"status": 7})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_InsertRejectsNonStringID(t *testing.T) {
	tbl, _, _ := newMockTable(t)

	_, err := tbl.Insert(context.Background(), Doc{"id": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id must be a string")
}

func TestTable_InsertEncodeError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s := session.New(dialect.SQLServer)
	s.ConnectDB(db)
	t.Cleanup(func() { _ = s.Close() })

	props, err := property.NewSet(property.Property{
		Name: "amount",
		Kind: property.Int,
		Encode: func(v interface{}) (interface{}, error) {
			return nil, fmt.Errorf("bad amount %v", v)
		},
	})
	require.NoError(t, err)

	tbl := New(s, "orders", props)
	_, err = tbl.Insert(context.Background(), Doc{"amount": "oops"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "property amount")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Get(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select [doc] from [orders] where [id] = @p1").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(`{"status":2}`))

	doc, err := tbl.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, Doc{"id": "o-1", "status": float64(2)}, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_GetNotFound(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select [doc] from [orders] where [id] = @p1").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err := tbl.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "nope")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Select(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select [id], [doc] from [orders] where ([status] in (@p1, @p2))").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}).
			AddRow("a", `{"status":1}`).
			AddRow("b", `{"status":2}`))

	docs, err := tbl.Select(context.Background(), criteria.Criteria{
		"status": map[string]interface{}{"in": []interface{}{1, 2}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Doc{"id": "a", "status": float64(1)}, docs[0])
	assert.Equal(t, Doc{"id": "b", "status": float64(2)}, docs[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_SelectEmptyCriteriaMatchesAll(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select [id], [doc] from [orders] where (1 = 1)").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}).AddRow("a", `{}`))

	docs, err := tbl.Select(context.Background(), criteria.Criteria{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, Doc{"id": "a"}, docs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_SelectBadCriteriaSkipsDriver(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	_, err := tbl.Select(context.Background(), criteria.Criteria{
		"status": map[string]interface{}{"like": "x"},
	})
	require.ErrorIs(t, err, criteria.ErrUnknownOp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_SelectOne(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select [id], [doc] from [orders] where ([status] = @p1)").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}).
			AddRow("a", `{"status":2}`).
			AddRow("b", `{"status":2}`))

	doc, err := tbl.SelectOne(context.Background(), criteria.Criteria{"status": 2})
	require.NoError(t, err)
	assert.Equal(t, "a", doc["id"])

	mock.ExpectQuery("select [id], [doc] from [orders] where ([status] = @p1)").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}))

	_, err = tbl.SelectOne(context.Background(), criteria.Criteria{"status": 9})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Update(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec("update [orders] set [doc] = @p1, [amount] = @p2, [status] = @p3 where [id] = @p4").
		WithArgs(`{"amount":9,"status":3}`, int64(9), int64(3), "o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := tbl.Update(context.Background(), "o-1", Doc{"amount": 9, "status": 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_UpdateNotFound(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec("update [orders] set [doc] = @p1, [amount] = @p2, [status] = @p3 where [id] = @p4").
		WithArgs(`{}`, nil, nil, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := tbl.Update(context.Background(), "ghost", Doc{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Delete(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec("delete from [orders] where ([status] = @p1)").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := tbl.Delete(context.Background(), criteria.Criteria{"status": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_DeleteByID(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec("delete from [orders] where [id] = @p1").
		WithArgs("o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, tbl.DeleteByID(context.Background(), "o-1"))

	mock.ExpectExec("delete from [orders] where [id] = @p1").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := tbl.DeleteByID(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Count(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select count(*) from [orders] where ([amount] >= @p1)").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := tbl.Count(context.Background(), criteria.Criteria{
		"amount": map[string]interface{}{"gte": 100},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_Values(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectQuery("select [status] from [orders] where (1 = 1)").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).
			AddRow(int64(1)).
			AddRow(int64(2)))

	vals, err := tbl.Values(context.Background(), "status", criteria.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2)}, vals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_OnTransaction(t *testing.T) {
	tbl, s, mock := newMockTable(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into [orders] ([id], [doc], [amount], [status]) values (@p1, @p2, @p3, @p4)").
		WithArgs("o-1", `{"id":"o-1","status":1}`, nil, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx *session.Tx) error {
		_, err := tbl.On(tx).Insert(context.Background(), Doc{"id": "o-1", "status": 1})
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_CreateDDL(t *testing.T) {
	tbl := New(nil, "orders", ordersProps(t))

	assert.Equal(t, "IF OBJECT_ID(N'[orders]', N'U') IS NULL\n"+
		"CREATE TABLE [orders] (\n"+
		"  [id] NVARCHAR(64) PRIMARY KEY,\n"+
		"  [doc] NVARCHAR(MAX),\n"+
		"  [amount] BIGINT,\n"+
		"  [status] BIGINT\n"+
		")", tbl.CreateDDL(dialect.SQLServer))

	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"orders\" (\n"+
		"  \"id\" VARCHAR(64) PRIMARY KEY,\n"+
		"  \"doc\" JSONB,\n"+
		"  \"amount\" BIGINT,\n"+
		"  \"status\" BIGINT\n"+
		")", tbl.CreateDDL(dialect.Postgres))

	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"orders\" (\n"+
		"  \"id\" TEXT PRIMARY KEY,\n"+
		"  \"doc\" TEXT,\n"+
		"  \"amount\" INTEGER,\n"+
		"  \"status\" INTEGER\n"+
		")", tbl.CreateDDL(dialect.SQLite))
}

func TestTable_EnsureSchema(t *testing.T) {
	tbl, _, mock := newMockTable(t)

	mock.ExpectExec(tbl.CreateDDL(dialect.SQLServer)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, tbl.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_ErrNotFoundIsSentinel(t *testing.T) {
	err := fmt.Errorf("table orders id x: %w", ErrNotFound)
	assert.True(t, errors.Is(err, ErrNotFound))
}
