package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-client-billing/app/billing"
	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
	"github.com/vibast-solutions/ms-go-client-billing/app/repository"
)

type planRepository interface {
	ListActive(ctx context.Context) ([]*entity.Plan, error)
	FindByID(ctx context.Context, id uint64) (*entity.Plan, error)
}

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *entity.Enrollment) error
	FindByID(ctx context.Context, id uint64) (*entity.Enrollment, error)
}

type periodRepository interface {
	Create(ctx context.Context, period *entity.Period) error
	FindByID(ctx context.Context, id uint64) (*entity.Period, error)
	FindByEnrollment(ctx context.Context, enrollmentID uint64) (*entity.Period, error)
	FindCurrentByClient(ctx context.Context, clientID string) (*entity.Period, error)
	ListReactivatableByClient(ctx context.Context, clientID string, now time.Time) ([]*entity.Period, error)
	HasTrialByClient(ctx context.Context, clientID string) (bool, error)
	Activate(ctx context.Context, clientID string, periodID uint64) error
	ClearCurrentByEnrollment(ctx context.Context, enrollmentID uint64) error
}

type paymentIntentRepository interface {
	Create(ctx context.Context, intent *entity.PaymentIntent) error
	FindByID(ctx context.Context, id uint64) (*entity.PaymentIntent, error)
	FindByExternalReference(ctx context.Context, externalReference string) (*entity.PaymentIntent, error)
	ListOpenByClient(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error)
	Cancel(ctx context.Context, id uint64, reason string) error
	UpdateStatus(ctx context.Context, id uint64, status entity.IntentStatus) error
	SetExternalReference(ctx context.Context, id uint64, externalReference string) error
	HasTrialIntentByClient(ctx context.Context, clientID string) (bool, error)
}

// LedgerService answers every question about a client's enrollment and
// period history and owns period reactivation. Catalog filtering and
// commit-time trial validation both go through HasEverHeldTrial so the two
// can never disagree.
type LedgerService struct {
	planRepo       planRepository
	enrollmentRepo enrollmentRepository
	periodRepo     periodRepository
	intentRepo     paymentIntentRepository
	logger         logrus.FieldLogger
}

func NewLedgerService(
	planRepo planRepository,
	enrollmentRepo enrollmentRepository,
	periodRepo periodRepository,
	intentRepo paymentIntentRepository,
) *LedgerService {
	return &LedgerService{
		planRepo:       planRepo,
		enrollmentRepo: enrollmentRepo,
		periodRepo:     periodRepo,
		intentRepo:     intentRepo,
		logger:         factory.NewModuleLogger("ledger-service"),
	}
}

func (s *LedgerService) CurrentPeriod(ctx context.Context, clientID string) (*entity.Period, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}
	return s.periodRepo.FindCurrentByClient(ctx, clientID)
}

// ReactivatablePeriods returns non-current periods whose expiration is
// still ahead, newest first. Overlapping validity windows are returned
// as-is; picking between them is the operator's call.
func (s *LedgerService) ReactivatablePeriods(ctx context.Context, clientID string) ([]*entity.Period, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}
	return s.periodRepo.ListReactivatableByClient(ctx, clientID, time.Now().UTC())
}

// HasEverHeldTrial reports whether the client ever consumed the one-time
// trial grant. A trial counts as used the moment a trial period or a trial
// payment intent exists, whether or not payment ever completed.
func (s *LedgerService) HasEverHeldTrial(ctx context.Context, clientID string) (bool, error) {
	if clientID == "" {
		return false, ErrClientRequired
	}

	held, err := s.periodRepo.HasTrialByClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	if held {
		return true, nil
	}

	return s.intentRepo.HasTrialIntentByClient(ctx, clientID)
}

// IsUpgradeCandidate labels a plan as an upgrade relative to the client's
// current one. Advisory only: it never gates selection.
func (s *LedgerService) IsUpgradeCandidate(ctx context.Context, clientID string, plan *entity.Plan) (bool, error) {
	current, err := s.periodRepo.FindCurrentByClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	if current == nil {
		return true, nil
	}
	if current.IsTrial && !plan.IsTrial {
		return true, nil
	}

	currentPlan, err := s.planForPeriod(ctx, current)
	if err != nil {
		return false, err
	}
	if currentPlan == nil {
		return true, nil
	}

	return plan.PriceCents > currentPlan.PriceCents || plan.SeatLimit > currentPlan.SeatLimit, nil
}

// ActivateReactivatedPeriod makes a superseded, still-unexpired period the
// client's current one again. The current-flag swap is one store call, so
// no read in between can see zero or two current periods.
func (s *LedgerService) ActivateReactivatedPeriod(ctx context.Context, clientID string, periodID uint64) (*entity.Period, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}

	period, err := s.periodRepo.FindByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, ErrPeriodNotFound
	}
	if period.ExpiresAt.Before(time.Now().UTC()) {
		return nil, ErrPeriodExpired
	}

	if plan, err := s.planForEnrollment(ctx, period.EnrollmentID); err == nil && plan != nil {
		billing.ValidateExpiration(s.logger, period.StartsAt, period.ExpiresAt, plan.DurationDays)
	}

	if err := s.periodRepo.Activate(ctx, clientID, period.ID); err != nil {
		if errors.Is(err, repository.ErrPeriodNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}

	period.IsCurrent = true
	return period, nil
}

// ReconcilePaidIntent flips the intent's period current after the gateway
// confirmed payment. Idempotent: both the webhook and the reconciliation
// poller call it, whichever lands first wins and the other is a no-op.
func (s *LedgerService) ReconcilePaidIntent(ctx context.Context, intentID uint64) error {
	intent, err := s.intentRepo.FindByID(ctx, intentID)
	if err != nil {
		return err
	}
	if intent == nil {
		return ErrIntentNotFound
	}

	period, err := s.periodRepo.FindByEnrollment(ctx, intent.EnrollmentID)
	if err != nil {
		return err
	}
	if period == nil {
		return ErrPeriodNotFound
	}
	if period.IsCurrent {
		return nil
	}

	enrollment, err := s.enrollmentRepo.FindByID(ctx, intent.EnrollmentID)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return ErrPeriodNotFound
	}

	if err := s.periodRepo.Activate(ctx, enrollment.ClientID, period.ID); err != nil {
		if errors.Is(err, repository.ErrPeriodNotFound) {
			return ErrPeriodNotFound
		}
		return err
	}
	return nil
}

func (s *LedgerService) planForPeriod(ctx context.Context, period *entity.Period) (*entity.Plan, error) {
	return s.planForEnrollment(ctx, period.EnrollmentID)
}

func (s *LedgerService) planForEnrollment(ctx context.Context, enrollmentID uint64) (*entity.Plan, error) {
	enrollment, err := s.enrollmentRepo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, nil
	}
	return s.planRepo.FindByID(ctx, enrollment.PlanID)
}
