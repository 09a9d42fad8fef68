package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/germesbot/germes/internal/models"
	"github.com/germesbot/germes/internal/repository"
)

// ChargeResult reports the outcome of an admission-controlled charge.
// Balance carries the post-charge balance on success and the untouched
// current balance when the cap was exceeded.
type ChargeResult struct {
	Charged bool
	Balance float64
}

// CreditService owns the per-user spending ledger. The backing table is
// also written by the admin console, so every mutation goes through a
// single atomic statement in the repository.
type CreditService struct {
	log     *slog.Logger
	credits *repository.CreditRepository
	price   float64
	cap     float64
}

func NewCreditService(log *slog.Logger, credits *repository.CreditRepository, price, cap float64) *CreditService {
	return &CreditService{log: log, credits: credits, price: price, cap: cap}
}

func (s *CreditService) Price() float64 {
	return s.price
}

func (s *CreditService) Cap() float64 {
	return s.cap
}

// ChargeIfAllowed lazily creates the ledger row, then atomically checks
// the cap and charges the configured price. A cap-exceeded outcome
// leaves the row untouched.
func (s *CreditService) ChargeIfAllowed(ctx context.Context, userID int64) (ChargeResult, error) {
	if err := s.credits.EnsureRow(ctx, userID); err != nil {
		return ChargeResult{}, fmt.Errorf("ensure credit row: %w", err)
	}

	charged, err := s.credits.Charge(ctx, userID, s.price, s.cap)
	if err != nil {
		return ChargeResult{}, err
	}

	credit, err := s.credits.Find(ctx, userID)
	if err != nil {
		return ChargeResult{}, err
	}
	balance := 0.0
	if credit != nil {
		balance = credit.Balance
	}

	if !charged {
		s.log.Info("credit limit exceeded", "user_id", userID, "balance", balance, "cap", s.cap)
	}
	return ChargeResult{Charged: charged, Balance: balance}, nil
}

// Refund compensates a charge after a failed generation. Failures are
// logged but not propagated beyond the error return; the user already
// gets the generation apology.
func (s *CreditService) Refund(ctx context.Context, userID int64) error {
	refunded, err := s.credits.Refund(ctx, userID, s.price)
	if err != nil {
		return err
	}
	if !refunded {
		// Concurrent administrative reset can legitimately leave
		// nothing to refund.
		s.log.Warn("refund skipped, balance below price", "user_id", userID, "price", s.price)
		return nil
	}
	s.log.Info("charge refunded after failed generation", "user_id", userID, "price", s.price)
	return nil
}

// Balance returns the ledger row for a user, nil when the user has
// never been charged.
func (s *CreditService) Balance(ctx context.Context, userID int64) (*models.UserCredit, error) {
	return s.credits.Find(ctx, userID)
}

// SetBalance is administrative and bypasses the cap.
func (s *CreditService) SetBalance(ctx context.Context, userID int64, balance float64) error {
	return s.credits.SetBalance(ctx, userID, balance)
}

// ResetBalance zeroes a user's cumulative spend.
func (s *CreditService) ResetBalance(ctx context.Context, userID int64) error {
	return s.credits.SetBalance(ctx, userID, 0)
}

func (s *CreditService) ListBalances(ctx context.Context) ([]models.UserCredit, error) {
	return s.credits.List(ctx)
}
