package orders

import (
	"fmt"

	"gorm.io/gorm"
)

// Order sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order statuses. RECEIVED, ACCEPTED and SENT are the open states a fill or
// cancel may act on.
const (
	StatusReceived        = "RECEIVED"
	StatusAccepted        = "ACCEPTED"
	StatusSent            = "SENT"
	StatusCancelRequested = "CANCEL_REQUESTED"
	StatusFilled          = "FILLED"
	StatusRejected        = "REJECTED"
)

// ReserveCurrency is the fixed currency passed on every cash reserve.
const ReserveCurrency = "USD"

// Order is the persisted order row. Quantities and prices are integer micro
// units; the cash reserve amount is price times quantity.
type Order struct {
	gorm.Model     `json:"-"`
	OrderID        int64  `gorm:"uniqueIndex" json:"order_id"`
	AccountID      int64  `gorm:"index" json:"account_id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`       // BUY or SELL
	OrderType      string `json:"order_type"` // MARKET or LIMIT
	Quantity       int64  `json:"quantity"`
	Price          int64  `json:"price"`
	TimeInForce    string `json:"time_in_force"`
	Status         string `json:"status"`
	ReserveID      string `json:"reserve_id"`
	FilledQuantity int64  `json:"filled_quantity"`
}

// OrderHistory is the append-only audit row written alongside every state
// transition, in the same transaction as the transition itself.
type OrderHistory struct {
	gorm.Model     `json:"-"`
	OrderID        int64  `gorm:"index" json:"order_id"`
	AccountID      int64  `json:"account_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status"`
	Quantity       int64  `json:"quantity"`
	Price          int64  `json:"price"`
	FilledQuantity int64  `json:"filled_quantity"`
	Reason         string `json:"reason"`
}

// TableName pins history rows to the order_history table.
func (OrderHistory) TableName() string {
	return "order_history"
}

// outboxPayload serializes the order snapshot carried on its outbox event.
func (o *Order) outboxPayload() string {
	return fmt.Sprintf(
		`{"orderId":%d,"accountId":%d,"symbol":%q,"side":%q,"quantity":%d,"price":%d}`,
		o.OrderID, o.AccountID, o.Symbol, o.Side, o.Quantity, o.Price,
	)
}

// PlaceOrderRequest is the inbound placement command. The account id never
// rides in the payload; it comes from the authenticated call context.
type PlaceOrderRequest struct {
	Symbol         string `json:"symbol" binding:"required"`
	Side           string `json:"side" binding:"required"`
	OrderType      string `json:"order_type" binding:"required"`
	Quantity       int64  `json:"quantity"`
	Price          int64  `json:"price"`
	TimeInForce    string `json:"time_in_force"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CancelOrderRequest is the inbound cancellation command.
type CancelOrderRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// Fill is one execution inside a fill event.
type Fill struct {
	Quantity int64 `json:"quantity"`
	Price    int64 `json:"price"`
}

// FillEvent is the downstream notification that an order traded.
type FillEvent struct {
	EventID       string `json:"event_id"`
	ClientOrderID string `json:"client_order_id"`
	AccountID     int64  `json:"account_id"`
	Fills         []Fill `json:"fills"`
}

// Result is the business outcome of one command. Rejections travel here, not
// as transport errors.
type Result struct {
	OrderID int64
	Status  string
	Message string
}

func success(orderID int64) *Result {
	return &Result{OrderID: orderID, Status: StatusAccepted, Message: "Order accepted"}
}

func rejected(orderID int64, message string) *Result {
	return &Result{OrderID: orderID, Status: StatusRejected, Message: message}
}
