package account

import "context"

// ResultCode is the account authority's answer to a reserve request.
type ResultCode string

const (
	ResultSuccess              ResultCode = "SUCCESS"
	ResultInsufficientFunds    ResultCode = "INSUFFICIENT_FUNDS"
	ResultInsufficientPosition ResultCode = "INSUFFICIENT_POSITION"
	ResultUnknownAccount       ResultCode = "UNKNOWN_ACCOUNT"
)

// ReserveReply carries the authority's decision on a reservation.
type ReserveReply struct {
	Code    ResultCode
	Message string
}

// ReservationClient abstracts the remote account authority. Each operation is
// idempotent from the caller's perspective when given the same reservation id,
// which is what makes resubmission after a transport failure safe.
//
// A non-SUCCESS reply is a business rejection; a returned error is a transport
// failure the caller surfaces as "account service unavailable".
type ReservationClient interface {
	ReserveCash(ctx context.Context, accountID int64, amount int64, currency, reserveID, note string) (*ReserveReply, error)
	ReservePosition(ctx context.Context, accountID int64, symbol string, quantity int64, reserveID, note string) (*ReserveReply, error)
	ReleaseCash(ctx context.Context, accountID int64, reserveID string) error
	ReleasePosition(ctx context.Context, accountID int64, reserveID string) error
}
