package orders

import (
	"errors"

	"github.com/tradefab/order-api/internal/outbox"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CancelMatch is what a successful conditional cancel hands back to the saga:
// enough to route the reservation release.
type CancelMatch struct {
	Side           string
	ReserveID      string
	PreviousStatus string
}

// openStatuses are the states a fill may still act on.
var openStatuses = []string{StatusReceived, StatusAccepted, StatusSent}

// cancelableStatuses are the states a cancel may act on.
var cancelableStatuses = []string{StatusReceived, StatusAccepted}

// InsertOrderAtomic writes the order row, its first history row and its
// outbox event in a single transaction, then invokes finalize inside that
// same transaction. Placement passes the ledger's success update as finalize,
// so a client can never observe a SUCCESS ledger row without the order row or
// the other way round.
func (d *Database) InsertOrderAtomic(order *Order, eventType string, finalize func(tx *gorm.DB) error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		history := OrderHistory{
			OrderID:        order.OrderID,
			AccountID:      order.AccountID,
			Status:         order.Status,
			PreviousStatus: "",
			Quantity:       order.Quantity,
			Price:          order.Price,
			FilledQuantity: 0,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		event := outbox.Event{
			EventType:   eventType,
			AggregateID: order.OrderID,
			Payload:     order.outboxPayload(),
			Status:      outbox.StatusPending,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		if finalize != nil {
			return finalize(tx)
		}
		return nil
	})
}

// MarkCancelRequested transitions the order to CANCEL_REQUESTED only when it
// is still cancelable and owned by accountID, appending the audit row in the
// same transaction. It returns nil without error when nothing matched; the
// caller cannot distinguish a missing order from a wrong owner or a terminal
// state, and does not need to.
func (d *Database) MarkCancelRequested(orderID, accountID int64) (*CancelMatch, error) {
	var match *CancelMatch

	err := d.db.Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.Where("order_id = ? AND account_id = ? AND status IN ?",
			orderID, accountID, cancelableStatuses).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		result := tx.Model(&Order{}).
			Where("order_id = ? AND account_id = ? AND status IN ?",
				orderID, accountID, cancelableStatuses).
			Update("status", StatusCancelRequested)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		history := OrderHistory{
			OrderID:        order.OrderID,
			AccountID:      order.AccountID,
			Status:         StatusCancelRequested,
			PreviousStatus: order.Status,
			Quantity:       order.Quantity,
			Price:          order.Price,
			FilledQuantity: order.FilledQuantity,
			Reason:         "User requested",
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		match = &CancelMatch{
			Side:           order.Side,
			ReserveID:      order.ReserveID,
			PreviousStatus: order.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// MarkFilled transitions an open order to FILLED with the given filled
// quantity and appends the audit row, both in one transaction. It returns
// false when the order was missing or no longer open.
func (d *Database) MarkFilled(orderID, filledQuantity int64) (bool, error) {
	matched := false

	err := d.db.Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.Where("order_id = ? AND status IN ?", orderID, openStatuses).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		result := tx.Model(&Order{}).
			Where("order_id = ? AND status IN ?", orderID, openStatuses).
			Updates(map[string]interface{}{
				"status":          StatusFilled,
				"filled_quantity": filledQuantity,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		history := OrderHistory{
			OrderID:        order.OrderID,
			AccountID:      order.AccountID,
			Status:         StatusFilled,
			PreviousStatus: order.Status,
			Quantity:       order.Quantity,
			Price:          order.Price,
			FilledQuantity: filledQuantity,
			Reason:         "Order filled by exchange",
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		matched = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// GetOrder retrieves an order by its ID, or nil when absent.
func (d *Database) GetOrder(orderID int64) (*Order, error) {
	var order Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}
