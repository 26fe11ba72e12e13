package idempotency

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Record{}))
	return NewStore(db)
}

func TestTryAcquireLock_FirstWriterWins(t *testing.T) {
	store := newTestStore(t)

	acquired, err := store.TryAcquireLock("k1", 1)
	require.NoError(t, err)
	require.True(t, acquired)

	// Every later attempt observes the existing row, regardless of account.
	for i := 0; i < 5; i++ {
		acquired, err = store.TryAcquireLock("k1", int64(i+1))
		require.NoError(t, err)
		require.False(t, acquired)
	}
}

func TestTryAcquireLock_DistinctKeys(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 10; i++ {
		acquired, err := store.TryAcquireLock(fmt.Sprintf("key-%d", i), 1)
		require.NoError(t, err)
		require.True(t, acquired)
	}
}

func TestFindResult_Absent(t *testing.T) {
	store := newTestStore(t)

	record, err := store.FindResult("missing")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestFindResult_Processing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TryAcquireLock("k1", 7)
	require.NoError(t, err)

	record, err := store.FindResult("k1")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, StatusProcessing, record.Status)
	require.Equal(t, int64(7), record.AccountID)
	require.Zero(t, record.OrderID)
}

func TestUpdateSuccess(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TryAcquireLock("k1", 1)
	require.NoError(t, err)

	require.NoError(t, store.UpdateSuccess("k1", 42, `{"orderId":42,"status":"SUCCESS"}`))

	record, err := store.FindResult("k1")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, record.Status)
	require.Equal(t, int64(42), record.OrderID)
	require.Contains(t, record.ResponsePayload, `"orderId":42`)
}

func TestUpdateFailed(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TryAcquireLock("k1", 1)
	require.NoError(t, err)

	require.NoError(t, store.UpdateFailed("k1", "Insufficient funds"))

	record, err := store.FindResult("k1")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, record.Status)
	require.Contains(t, record.ResponsePayload, "Insufficient funds")
	require.Zero(t, record.OrderID)
}

func TestIsDuplicateKey(t *testing.T) {
	require.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	require.True(t, isDuplicateKey(fmt.Errorf("UNIQUE constraint failed: idempotency_keys.idempotency_key")))
	require.True(t, isDuplicateKey(fmt.Errorf(`duplicate key value violates unique constraint "idempotency_keys_pkey"`)))
	require.False(t, isDuplicateKey(fmt.Errorf("connection refused")))
}
