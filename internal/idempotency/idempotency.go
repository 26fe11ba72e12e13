package idempotency

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Ledger row statuses. PROCESSING transitions one-way to SUCCESS or FAILED.
const (
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
)

// Record is the durable ledger row for one client-supplied idempotency key.
type Record struct {
	gorm.Model      `json:"-"`
	IdempotencyKey  string `gorm:"uniqueIndex;size:128" json:"idempotency_key"`
	AccountID       int64  `json:"account_id"`
	Status          string `json:"status"`
	OrderID         int64  `json:"order_id"`
	ResponsePayload string `json:"response_payload"`
}

// TableName pins the ledger to the idempotency_keys table.
func (Record) TableName() string {
	return "idempotency_keys"
}

// Store provides at-most-one admission per idempotency key on top of the
// table's unique constraint.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// TryAcquireLock inserts a PROCESSING row for the key. It returns true when
// this call created the row (the caller proceeds), false when a row already
// exists. Any other persistence failure is fatal for the command and is
// returned as an error, never swallowed as a duplicate.
func (s *Store) TryAcquireLock(key string, accountID int64) (bool, error) {
	record := Record{
		IdempotencyKey: key,
		AccountID:      accountID,
		Status:         StatusProcessing,
	}

	if err := s.db.Create(&record).Error; err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("idempotency lock failed: %w", err)
	}

	return true, nil
}

// FindResult returns the current ledger row for the key, or nil when absent.
func (s *Store) FindResult(key string) (*Record, error) {
	var record Record
	if err := s.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// UpdateSuccess finalizes the row as SUCCESS standalone.
func (s *Store) UpdateSuccess(key string, orderID int64, responsePayload string) error {
	return s.UpdateSuccessTx(s.db, key, orderID, responsePayload)
}

// UpdateSuccessTx finalizes the row as SUCCESS inside the caller's
// transaction, so placement can commit the order row and the ledger row
// together.
func (s *Store) UpdateSuccessTx(tx *gorm.DB, key string, orderID int64, responsePayload string) error {
	return tx.Model(&Record{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]interface{}{
			"status":           StatusSuccess,
			"order_id":         orderID,
			"response_payload": responsePayload,
		}).Error
}

// UpdateFailed finalizes the row as FAILED with a failure payload.
func (s *Store) UpdateFailed(key, reason string) error {
	return s.db.Model(&Record{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]interface{}{
			"status":           StatusFailed,
			"response_payload": fmt.Sprintf(`{"error":%q}`, reason),
		}).Error
}

// isDuplicateKey reports whether err is a unique-constraint violation. The
// sqlite driver does not translate constraint errors on every version, so the
// message fallbacks stay.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
