package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type reservation struct {
	accountID int64
	symbol    string // empty for cash
	amount    int64
	released  bool
}

// Simulator is an in-process account authority used by the simulation binary
// and tests. Balances and positions live behind a single mutex; reservations
// are keyed by reservation id so repeated reserve/release calls with the same
// id stay idempotent, matching the remote contract.
type Simulator struct {
	mu           sync.Mutex
	cash         map[int64]int64            // accountID -> available cash
	positions    map[int64]map[string]int64 // accountID -> symbol -> quantity
	reservations map[string]*reservation
}

func NewSimulator() *Simulator {
	return &Simulator{
		cash:         make(map[int64]int64),
		positions:    make(map[int64]map[string]int64),
		reservations: make(map[string]*reservation),
	}
}

// SeedCash credits available cash for an account.
func (s *Simulator) SeedCash(accountID, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash[accountID] += amount
}

// SeedPosition credits a position for an account.
func (s *Simulator) SeedPosition(accountID int64, symbol string, quantity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positions[accountID] == nil {
		s.positions[accountID] = make(map[string]int64)
	}
	s.positions[accountID][symbol] += quantity
}

func (s *Simulator) ReserveCash(ctx context.Context, accountID int64, amount int64, currency, reserveID, note string) (*ReserveReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.reservations[reserveID]; ok && !prior.released {
		return &ReserveReply{Code: ResultSuccess}, nil
	}

	if s.cash[accountID] < amount {
		log.Warn().
			Int64("account_id", accountID).
			Int64("amount", amount).
			Str("reserve_id", reserveID).
			Msg("cash reserve rejected")
		return &ReserveReply{Code: ResultInsufficientFunds, Message: "Insufficient funds"}, nil
	}

	s.cash[accountID] -= amount
	s.reservations[reserveID] = &reservation{accountID: accountID, amount: amount}
	return &ReserveReply{Code: ResultSuccess}, nil
}

func (s *Simulator) ReservePosition(ctx context.Context, accountID int64, symbol string, quantity int64, reserveID, note string) (*ReserveReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.reservations[reserveID]; ok && !prior.released {
		return &ReserveReply{Code: ResultSuccess}, nil
	}

	held := s.positions[accountID][symbol]
	if held < quantity {
		log.Warn().
			Int64("account_id", accountID).
			Str("symbol", symbol).
			Int64("quantity", quantity).
			Str("reserve_id", reserveID).
			Msg("position reserve rejected")
		return &ReserveReply{Code: ResultInsufficientPosition, Message: "Insufficient position"}, nil
	}

	s.positions[accountID][symbol] -= quantity
	s.reservations[reserveID] = &reservation{accountID: accountID, symbol: symbol, amount: quantity}
	return &ReserveReply{Code: ResultSuccess}, nil
}

func (s *Simulator) ReleaseCash(ctx context.Context, accountID int64, reserveID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[reserveID]
	if !ok {
		return fmt.Errorf("unknown reservation %s", reserveID)
	}
	if r.released {
		return nil
	}

	r.released = true
	s.cash[r.accountID] += r.amount
	return nil
}

func (s *Simulator) ReleasePosition(ctx context.Context, accountID int64, reserveID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[reserveID]
	if !ok {
		return fmt.Errorf("unknown reservation %s", reserveID)
	}
	if r.released {
		return nil
	}

	r.released = true
	if s.positions[r.accountID] == nil {
		s.positions[r.accountID] = make(map[string]int64)
	}
	s.positions[r.accountID][r.symbol] += r.amount
	return nil
}

// AvailableCash reports the uncommitted cash for an account.
func (s *Simulator) AvailableCash(accountID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash[accountID]
}

// AvailablePosition reports the uncommitted position for an account.
func (s *Simulator) AvailablePosition(accountID int64, symbol string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[accountID][symbol]
}
