package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/repository"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func openHandle(t *testing.T, db *DB, mock pgxmock.PgxPoolIface) repository.Handle {
	t.Helper()
	mock.ExpectPing()
	h, err := NewKVStore(db).Open(context.Background(), "monitor", true)
	require.NoError(t, err)
	return h
}

func TestKVStore_Open_PingFails(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, err := NewKVStore(db).Open(context.Background(), "monitor", true)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKVStore_Open_EmptyNamespace(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	_, err := NewKVStore(db).Open(context.Background(), "", true)
	require.Error(t, err)
}

func TestKVHandle_Get_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	mock.ExpectQuery(`SELECT value FROM kv_records WHERE namespace=\$1 AND key=\$2`).
		WithArgs("monitor", "t1").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"metadata":{}}`)))

	got, err := h.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"metadata":{}}`), got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKVHandle_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	mock.ExpectQuery(`SELECT value FROM kv_records WHERE namespace=\$1 AND key=\$2`).
		WithArgs("monitor", "t1").
		WillReturnError(pgx.ErrNoRows)

	_, err := h.Get(context.Background(), "t1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestKVHandle_Get_DBError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	mock.ExpectQuery(`SELECT value FROM kv_records WHERE namespace=\$1 AND key=\$2`).
		WithArgs("monitor", "t1").
		WillReturnError(errors.New("db boom"))

	_, err := h.Get(context.Background(), "t1")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestKVHandle_Set_Upserts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	mock.ExpectExec(`INSERT INTO kv_records \(namespace, key, value, updated_at\) VALUES \(\$1,\$2,\$3,now\(\)\) ON CONFLICT \(namespace, key\) DO UPDATE SET value=EXCLUDED.value, updated_at=now\(\)`).
		WithArgs("monitor", "t1", []byte("doc")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, h.Set(context.Background(), "t1", []byte("doc")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKVHandle_Set_ExecError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	mock.ExpectExec(`INSERT INTO kv_records`).
		WithArgs("monitor", "t1", []byte("doc")).
		WillReturnError(errors.New("disk full"))

	require.Error(t, h.Set(context.Background(), "t1", []byte("doc")))
}

func TestKVHandle_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	mock.ExpectExec(`DELETE FROM kv_records WHERE namespace=\$1 AND key=\$2`).
		WithArgs("monitor", "t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, h.Delete(context.Background(), "t1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKVHandle_UnusableAfterClose(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	h := openHandle(t, db, mock)

	require.NoError(t, h.Close())
	_, err := h.Get(context.Background(), "t1")
	require.ErrorIs(t, err, repository.ErrClosed)
	require.ErrorIs(t, h.Set(context.Background(), "t1", nil), repository.ErrClosed)
	require.ErrorIs(t, h.Delete(context.Background(), "t1"), repository.ErrClosed)
	require.ErrorIs(t, h.Close(), repository.ErrClosed)
}
