package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/germesbot/germes/internal/heartbeat"
	"github.com/germesbot/germes/internal/openai"
)

// ErrNotAllowed reports a user outside the allow-list asking for a
// metered generation. Expected outcome, never retried.
var ErrNotAllowed = errors.New("user not on the allow list")

// ErrCapExceeded reports a charge refused by the spending cap.
var ErrCapExceeded = errors.New("credit limit exceeded")

// ImageProvider is the slow external collaborator producing artifacts.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (*openai.Image, error)
}

// GenerationResult is the artifact plus how it was paid for.
type GenerationResult struct {
	Image   *openai.Image
	Charged bool
	Balance float64
}

// GenerationService runs the metered image path: authorize, charge,
// heartbeat-wrapped provider call. The heartbeat always stops before
// the result or error reaches the caller.
type GenerationService struct {
	log      *slog.Logger
	access   *AccessService
	credits  *CreditService
	provider ImageProvider
	interval time.Duration
}

func NewGenerationService(log *slog.Logger, access *AccessService, credits *CreditService, provider ImageProvider, progressInterval time.Duration) *GenerationService {
	return &GenerationService{
		log:      log,
		access:   access,
		credits:  credits,
		provider: provider,
		interval: progressInterval,
	}
}

// Generate produces an image for an authorized user. progress, when
// non-nil, is invoked periodically while the provider call is in
// flight and never after Generate returns.
//
// A successful charge followed by a provider failure is refunded; the
// ledger must not record spend for artifacts that were never delivered.
func (s *GenerationService) Generate(ctx context.Context, userID int64, prompt string, progress func()) (*GenerationResult, error) {
	decision, err := s.access.Authorize(ctx, userID)
	if err != nil {
		return nil, err
	}
	if decision == DecisionDenied {
		return nil, ErrNotAllowed
	}

	result := &GenerationResult{}
	if decision == DecisionAuthorized {
		charge, err := s.credits.ChargeIfAllowed(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !charge.Charged {
			return nil, fmt.Errorf("%w: balance %.2f of %.2f", ErrCapExceeded, charge.Balance, s.credits.Cap())
		}
		result.Charged = true
		result.Balance = charge.Balance
	}

	image, err := s.generateWithProgress(ctx, prompt, progress)
	if err != nil {
		if result.Charged {
			if refundErr := s.credits.Refund(ctx, userID); refundErr != nil {
				s.log.Error("refund after failed generation", "user_id", userID, "err", refundErr)
			}
		}
		return nil, fmt.Errorf("generate image: %w", err)
	}

	result.Image = image
	return result, nil
}

func (s *GenerationService) generateWithProgress(ctx context.Context, prompt string, progress func()) (*openai.Image, error) {
	if progress != nil {
		task := heartbeat.Start(progress, s.interval)
		defer task.Stop()
	}
	return s.provider.GenerateImage(ctx, prompt)
}
