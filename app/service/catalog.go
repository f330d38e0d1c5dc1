package service

import (
	"context"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

type trialHistory interface {
	HasEverHeldTrial(ctx context.Context, clientID string) (bool, error)
}

// CatalogService serves the purchasable plan list. Reads only; transport
// errors propagate unchanged.
type CatalogService struct {
	planRepo planRepository
	trials   trialHistory
}

func NewCatalogService(planRepo planRepository, trials trialHistory) *CatalogService {
	return &CatalogService{planRepo: planRepo, trials: trials}
}

func (s *CatalogService) ListActivePlans(ctx context.Context) ([]*entity.Plan, error) {
	return s.planRepo.ListActive(ctx)
}

// ListEligiblePlans filters trial plans out for clients that already used
// their one-time trial grant.
func (s *CatalogService) ListEligiblePlans(ctx context.Context, clientID string) ([]*entity.Plan, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}

	plans, err := s.planRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	trialUsed, err := s.trials.HasEverHeldTrial(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !trialUsed {
		return plans, nil
	}

	eligible := make([]*entity.Plan, 0, len(plans))
	for _, plan := range plans {
		if plan.IsTrial {
			continue
		}
		eligible = append(eligible, plan)
	}
	return eligible, nil
}
