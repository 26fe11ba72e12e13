package orders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tradefab/order-api/internal/account"
	"github.com/tradefab/order-api/internal/idempotency"
	"github.com/tradefab/order-api/internal/metrics"
	"gorm.io/gorm"
)

// Outbox event types written by the saga.
const (
	EventOrderPlaced = "ORDER_PLACED"
)

// Service orchestrates the order command saga: idempotency admission, remote
// reservation, atomic persistence and compensation. Once a reservation has
// been granted the saga runs to a terminal outcome without accepting
// cancellation, so a grant is never left orphaned by an impatient caller.
type Service struct {
	db       *Database
	idem     *idempotency.Store
	accounts account.ReservationClient
	comp     *Compensator
	ids      *idGenerator
}

func NewService(gormDB *gorm.DB, accounts account.ReservationClient) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		idem:     idempotency.NewStore(gormDB),
		accounts: accounts,
		comp:     NewCompensator(accounts),
		ids:      newIDGenerator(),
	}
}

// PlaceOrder handles one placement command for the authenticated account.
// Business rejections come back in the Result; an error return means the
// command aborted before any side effect could be attributed to it.
func (s *Service) PlaceOrder(ctx context.Context, accountID int64, req PlaceOrderRequest) (*Result, error) {
	if req.IdempotencyKey == "" {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return rejected(0, "Idempotency key required"), nil
	}
	if req.Side != SideBuy && req.Side != SideSell {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return rejected(0, "Invalid side"), nil
	}
	if req.Quantity <= 0 {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return rejected(0, "Invalid quantity"), nil
	}
	if req.Price < 0 {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return rejected(0, "Invalid price"), nil
	}

	acquired, err := s.idem.TryAcquireLock(req.IdempotencyKey, accountID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Info().
			Str("idempotency_key", req.IdempotencyKey).
			Int64("account_id", accountID).
			Msg("duplicate place request detected")
		return s.fetchExistingResult(req.IdempotencyKey)
	}

	return s.processNewOrder(ctx, accountID, req)
}

func (s *Service) processNewOrder(ctx context.Context, accountID int64, req PlaceOrderRequest) (*Result, error) {
	order := &Order{
		OrderID:     s.ids.Next(),
		AccountID:   accountID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		OrderType:   req.OrderType,
		Quantity:    req.Quantity,
		Price:       req.Price,
		TimeInForce: req.TimeInForce,
		Status:      StatusReceived,
		ReserveID:   uuid.New().String(),
	}

	if order.Side == SideBuy {
		return s.placeWithReservation(ctx, order, req.IdempotencyKey, s.reserveCash, s.comp.CompensateCashReserve)
	}
	return s.placeWithReservation(ctx, order, req.IdempotencyKey, s.reservePosition, s.comp.CompensatePositionReserve)
}

type reserveFunc func(ctx context.Context, order *Order) (*account.ReserveReply, error)
type compensateFunc func(ctx context.Context, accountID int64, reserveID string)

func (s *Service) reserveCash(ctx context.Context, order *Order) (*account.ReserveReply, error) {
	amount := order.Price * order.Quantity
	return s.accounts.ReserveCash(ctx, order.AccountID, amount, ReserveCurrency,
		order.ReserveID, strconv.FormatInt(order.OrderID, 10))
}

func (s *Service) reservePosition(ctx context.Context, order *Order) (*account.ReserveReply, error) {
	return s.accounts.ReservePosition(ctx, order.AccountID, order.Symbol, order.Quantity,
		order.ReserveID, strconv.FormatInt(order.OrderID, 10))
}

// placeWithReservation runs reserve -> persist -> compensate-on-failure for
// one freshly admitted command.
func (s *Service) placeWithReservation(ctx context.Context, order *Order, idempotencyKey string,
	reserve reserveFunc, compensate compensateFunc) (*Result, error) {

	reply, err := reserve(ctx, order)
	if err != nil {
		// Transport failure, nothing was granted. The caller owns retry
		// policy by resubmitting under the same key.
		log.Error().
			Err(err).
			Int64("account_id", order.AccountID).
			Int64("order_id", order.OrderID).
			Msg("reserve RPC failed")
		s.markFailed(idempotencyKey, "Account service unavailable")
		metrics.OrdersRejected.WithLabelValues("account_unavailable").Inc()
		return rejected(0, "Account service unavailable"), nil
	}

	if reply.Code != account.ResultSuccess {
		log.Warn().
			Int64("account_id", order.AccountID).
			Int64("order_id", order.OrderID).
			Str("code", string(reply.Code)).
			Msg("reserve rejected")
		reason := rejectionMessage(reply)
		s.markFailed(idempotencyKey, reason)
		metrics.ReservationRejections.Inc()
		metrics.OrdersRejected.WithLabelValues("reservation").Inc()
		return rejected(0, reason), nil
	}

	payload := fmt.Sprintf(`{"orderId":%d,"status":"SUCCESS"}`, order.OrderID)
	err = s.db.InsertOrderAtomic(order, EventOrderPlaced, func(tx *gorm.DB) error {
		return s.idem.UpdateSuccessTx(tx, idempotencyKey, order.OrderID, payload)
	})
	if err != nil {
		log.Error().
			Err(err).
			Int64("order_id", order.OrderID).
			Str("reserve_id", order.ReserveID).
			Msg("persist failed after reserve, compensating")
		compensate(ctx, order.AccountID, order.ReserveID)
		s.markFailed(idempotencyKey, err.Error())
		metrics.OrdersRejected.WithLabelValues("persistence").Inc()
		return rejected(0, "Order persistence failed"), nil
	}

	metrics.OrdersPlaced.Inc()
	return success(order.OrderID), nil
}

func rejectionMessage(reply *account.ReserveReply) string {
	switch reply.Code {
	case account.ResultInsufficientFunds:
		return "Insufficient funds"
	case account.ResultInsufficientPosition:
		return "Insufficient position"
	default:
		if reply.Message != "" {
			return reply.Message
		}
		return "Reservation rejected"
	}
}

// fetchExistingResult reads back the outcome recorded by whoever won the lock
// for this key. Terminal rows report their outcome; a row still PROCESSING
// reports as a "Processing" rejection the caller should retry shortly.
func (s *Service) fetchExistingResult(idempotencyKey string) (*Result, error) {
	record, err := s.idem.FindResult(idempotencyKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return rejected(0, "Processing"), nil
	}

	switch record.Status {
	case idempotency.StatusSuccess:
		return success(record.OrderID), nil
	case idempotency.StatusFailed:
		return rejected(0, "Previously failed"), nil
	default:
		return rejected(0, "Processing"), nil
	}
}

// CancelOrder handles one cancellation command for the authenticated account.
func (s *Service) CancelOrder(ctx context.Context, accountID, orderID int64, idempotencyKey string) (*Result, error) {
	if idempotencyKey == "" {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return rejected(orderID, "Idempotency key required"), nil
	}

	acquired, err := s.idem.TryAcquireLock(idempotencyKey, accountID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Info().
			Str("idempotency_key", idempotencyKey).
			Int64("order_id", orderID).
			Msg("duplicate cancel request detected")
		return s.fetchExistingResult(idempotencyKey)
	}

	match, err := s.db.MarkCancelRequested(orderID, accountID)
	if err != nil {
		log.Error().
			Err(err).
			Int64("order_id", orderID).
			Int64("account_id", accountID).
			Msg("cancel update failed")
		match = nil
	}
	if match == nil {
		s.markFailed(idempotencyKey, "Order not found")
		metrics.OrdersRejected.WithLabelValues("cancel_no_match").Inc()
		return rejected(orderID, "Order not found or database error"), nil
	}

	return s.releaseReservation(ctx, accountID, orderID, match, idempotencyKey), nil
}

// releaseReservation releases the cancelled order's reservation. The cancel
// itself already committed, so release failure downgrades the ledger row to
// FAILED but the caller still sees CANCEL_REQUESTED.
func (s *Service) releaseReservation(ctx context.Context, accountID, orderID int64,
	match *CancelMatch, idempotencyKey string) *Result {

	var err error
	if match.Side == SideBuy {
		err = s.accounts.ReleaseCash(ctx, accountID, match.ReserveID)
	} else {
		err = s.accounts.ReleasePosition(ctx, accountID, match.ReserveID)
	}

	if err != nil {
		log.Error().
			Err(err).
			Int64("account_id", accountID).
			Int64("order_id", orderID).
			Str("reserve_id", match.ReserveID).
			Str("side", match.Side).
			Msg("failed to release reserve after cancel")
		s.markFailed(idempotencyKey, "Release failed: "+err.Error())
		metrics.OrdersCancelled.Inc()
		return &Result{OrderID: orderID, Status: StatusCancelRequested, Message: "Cancel requested (release failed)"}
	}

	payload := fmt.Sprintf(`{"orderId":%d,"status":"CANCEL_REQUESTED"}`, orderID)
	if err := s.idem.UpdateSuccess(idempotencyKey, orderID, payload); err != nil {
		log.Error().
			Err(err).
			Str("idempotency_key", idempotencyKey).
			Msg("failed to finalize cancel ledger row")
	}
	metrics.OrdersCancelled.Inc()
	return &Result{OrderID: orderID, Status: StatusCancelRequested, Message: "Cancel requested"}
}

// ApplyFill consumes a downstream fill event. Events that match no open order
// are acknowledged without effect.
func (s *Service) ApplyFill(ctx context.Context, event FillEvent) error {
	orderID, err := strconv.ParseInt(event.ClientOrderID, 10, 64)
	if err != nil {
		log.Error().
			Str("client_order_id", event.ClientOrderID).
			Msg("invalid client_order_id format")
		return nil
	}

	var totalFilled int64
	for _, fill := range event.Fills {
		totalFilled += fill.Quantity
	}

	matched, err := s.db.MarkFilled(orderID, totalFilled)
	if err != nil {
		return err
	}
	if !matched {
		log.Warn().
			Int64("order_id", orderID).
			Str("event_id", event.EventID).
			Msg("fill event matched no open order")
		return nil
	}

	metrics.OrdersFilled.Inc()
	return nil
}

func (s *Service) markFailed(idempotencyKey, reason string) {
	if err := s.idem.UpdateFailed(idempotencyKey, reason); err != nil {
		log.Error().
			Err(err).
			Str("idempotency_key", idempotencyKey).
			Msg("failed to finalize ledger row as FAILED")
	}
}
