package shared

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyStore(t *testing.T) (*IdempotencyStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store := NewIdempotencyStore(mock)
	store.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestCheckAndInsert(t *testing.T) {
	store, mock := newIdempotencyStore(t)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("confirm-1", "sales.order.confirm", store.now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CheckAndInsert(context.Background(), "confirm-1", "sales.order.confirm"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndInsertDuplicate(t *testing.T) {
	store, mock := newIdempotencyStore(t)
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("confirm-1", "sales.order.confirm", store.now()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.CheckAndInsert(context.Background(), "confirm-1", "sales.order.confirm")
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestCheckAndInsertRequiresKey(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	assert.Error(t, store.CheckAndInsert(context.Background(), "", "sales.order.confirm"))
	assert.Error(t, store.CheckAndInsert(context.Background(), "k", ""))
}

func TestIdempotencyDelete(t *testing.T) {
	store, mock := newIdempotencyStore(t)
	mock.ExpectExec("DELETE FROM idempotency_keys").WithArgs("confirm-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(context.Background(), "confirm-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "sales:order:9:lock", OrderLockKey(9))
	assert.Equal(t, "sales:draft:9", DraftKey(9))
}
