package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

// RegistryService tracks in-flight payment attempts. Cancellation is
// fail-closed: a selection never proceeds while a possibly-live intent is
// still outstanding, because double-charging outweighs convenience.
type RegistryService struct {
	intentRepo paymentIntentRepository
}

func NewRegistryService(intentRepo paymentIntentRepository) *RegistryService {
	return &RegistryService{intentRepo: intentRepo}
}

func (s *RegistryService) ListPending(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}
	return s.intentRepo.ListOpenByClient(ctx, clientID)
}

// CancelAll cancels every intent concurrently and waits for all to settle.
// The first failure aborts the group and surfaces as
// ErrPendingCancellationFailed.
func (s *RegistryService) CancelAll(ctx context.Context, intents []*entity.PaymentIntent, reason string) error {
	if len(intents) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, intent := range intents {
		intent := intent
		g.Go(func() error {
			if err := s.intentRepo.Cancel(gctx, intent.ID, reason); err != nil {
				return fmt.Errorf("intent %d: %w", intent.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingCancellationFailed, err)
	}
	return nil
}
