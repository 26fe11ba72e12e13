package database

import (
	"github.com/tradefab/order-api/internal/idempotency"
	"github.com/tradefab/order-api/internal/orders"
	"github.com/tradefab/order-api/internal/outbox"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the persisted schema surface.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&orders.Order{},
		&orders.OrderHistory{},
		&outbox.Event{},
		&idempotency.Record{},
	)
}
