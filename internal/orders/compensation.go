package orders

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tradefab/order-api/internal/account"
	"github.com/tradefab/order-api/internal/metrics"
)

// Compensator undoes a granted reservation after local persistence failed.
// Releases are best-effort: a failed release is logged as an operational
// alert condition, never propagated, so the triggering fault cannot cascade.
type Compensator struct {
	accounts account.ReservationClient
}

func NewCompensator(accounts account.ReservationClient) *Compensator {
	return &Compensator{accounts: accounts}
}

// CompensateCashReserve releases a granted cash reservation.
func (c *Compensator) CompensateCashReserve(ctx context.Context, accountID int64, reserveID string) {
	metrics.Compensations.Inc()
	if err := c.accounts.ReleaseCash(ctx, accountID, reserveID); err != nil {
		log.Error().
			Err(err).
			Int64("account_id", accountID).
			Str("reserve_id", reserveID).
			Msg("cash reserve compensation failed, reservation left orphaned")
	}
}

// CompensatePositionReserve releases a granted position reservation.
func (c *Compensator) CompensatePositionReserve(ctx context.Context, accountID int64, reserveID string) {
	metrics.Compensations.Inc()
	if err := c.accounts.ReleasePosition(ctx, accountID, reserveID); err != nil {
		log.Error().
			Err(err).
			Int64("account_id", accountID).
			Str("reserve_id", reserveID).
			Msg("position reserve compensation failed, reservation left orphaned")
	}
}
