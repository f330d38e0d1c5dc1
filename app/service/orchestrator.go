package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-client-billing/app/billing"
	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
	"github.com/vibast-solutions/ms-go-client-billing/app/gateway"
	"github.com/vibast-solutions/ms-go-client-billing/config"
)

type SelectionState string

const (
	SelectionStateIdle                 SelectionState = "IDLE"
	SelectionStateValidating           SelectionState = "VALIDATING"
	SelectionStateSupersedingPayments  SelectionState = "SUPERSEDING_PAYMENTS"
	SelectionStateCreatingIntent       SelectionState = "CREATING_INTENT"
	SelectionStateAwaitingConfirmation SelectionState = "AWAITING_CONFIRMATION"
	SelectionStateActivated            SelectionState = "ACTIVATED"
	SelectionStateAbandoned            SelectionState = "ABANDONED"
)

// SupersededCancelReason is recorded on intents cancelled because the
// client moved on to a different plan.
const SupersededCancelReason = "superseded by new plan selection"

// ExternalReference builds the correlation string handed to the gateway.
// Its webhook echoes it back so callbacks can be matched to the intent.
func ExternalReference(intentID uint64) string {
	return fmt.Sprintf("payment_%d", intentID)
}

type SelectPlanRequest struct {
	ClientID         string
	PlanID           uint64
	StartAt          time.Time
	InstallmentCount int32
	PaymentMethod    string
	// ConfirmSupersede acknowledges that outstanding payment attempts will
	// be cancelled. Supersession never happens silently.
	ConfirmSupersede bool
}

type SelectionResult struct {
	State       SelectionState
	Enrollment  *entity.Enrollment
	Period      *entity.Period
	Intent      *entity.PaymentIntent
	CheckoutURL string
}

type pendingRegistry interface {
	ListPending(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error)
	CancelAll(ctx context.Context, intents []*entity.PaymentIntent, reason string) error
}

type trialLedger interface {
	HasEverHeldTrial(ctx context.Context, clientID string) (bool, error)
}

type confirmationWatcher interface {
	Watch(intentID uint64) bool
	Cancel(intentID uint64)
}

// OrchestratorService runs the plan-selection state machine:
// Idle → Validating → SupersedingPayments → CreatingIntent →
// AwaitingConfirmation → {Activated | Abandoned}. It never rolls back
// committed writes; a failed selection is abandoned where it stands and a
// retry re-runs the sequence, superseding whatever the prior attempt left.
type OrchestratorService struct {
	planRepo       planRepository
	enrollmentRepo enrollmentRepository
	periodRepo     periodRepository
	intentRepo     paymentIntentRepository
	ledger         trialLedger
	registry       pendingRegistry
	gatewayService gateway.Service
	watcher        confirmationWatcher
	cfg            config.BillingConfig
	logger         logrus.FieldLogger
}

func NewOrchestratorService(
	planRepo planRepository,
	enrollmentRepo enrollmentRepository,
	periodRepo periodRepository,
	intentRepo paymentIntentRepository,
	ledger trialLedger,
	registry pendingRegistry,
	gatewayService gateway.Service,
	watcher confirmationWatcher,
	cfg config.BillingConfig,
) *OrchestratorService {
	return &OrchestratorService{
		planRepo:       planRepo,
		enrollmentRepo: enrollmentRepo,
		periodRepo:     periodRepo,
		intentRepo:     intentRepo,
		ledger:         ledger,
		registry:       registry,
		gatewayService: gatewayService,
		watcher:        watcher,
		cfg:            cfg,
		logger:         factory.NewModuleLogger("selection-orchestrator"),
	}
}

func (s *OrchestratorService) SelectPlan(ctx context.Context, req SelectPlanRequest) (*SelectionResult, error) {
	if req.ClientID == "" {
		return nil, ErrClientRequired
	}

	l := s.logger.WithFields(logrus.Fields{"client_id": req.ClientID, "plan_id": req.PlanID})
	l.WithField("state", SelectionStateValidating).Debug("Selection started")

	plan, err := s.validate(ctx, req)
	if err != nil {
		return s.abandon(l, SelectionStateValidating, err)
	}

	l.WithField("state", SelectionStateSupersedingPayments).Debug("Selection validated")
	if err := s.supersedePending(ctx, req); err != nil {
		return s.abandon(l, SelectionStateSupersedingPayments, err)
	}

	l.WithField("state", SelectionStateCreatingIntent).Debug("Pending payments superseded")
	result, err := s.createIntent(ctx, req, plan)
	if err != nil {
		return s.abandon(l, SelectionStateCreatingIntent, err)
	}

	if result.State == SelectionStateActivated {
		l.WithField("state", SelectionStateActivated).Info("Plan activated without payment")
		return result, nil
	}

	s.watcher.Watch(result.Intent.ID)
	l.WithFields(logrus.Fields{"state": SelectionStateAwaitingConfirmation, "intent_id": result.Intent.ID}).
		Info("Awaiting payment confirmation")
	return result, nil
}

// validate re-checks trial eligibility at the point of commitment. The
// catalog already filtered it, but a cached plan list can go stale between
// render and click.
func (s *OrchestratorService) validate(ctx context.Context, req SelectPlanRequest) (*entity.Plan, error) {
	plan, err := s.planRepo.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	if plan.IsTrial {
		used, err := s.ledger.HasEverHeldTrial(ctx, req.ClientID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, ErrTrialAlreadyUsed
		}
	}

	if req.InstallmentCount > 1 {
		if !plan.AllowInstallments || req.InstallmentCount > plan.MaxInstallments {
			return nil, ErrInvalidInstallments
		}
	}

	return plan, nil
}

func (s *OrchestratorService) supersedePending(ctx context.Context, req SelectPlanRequest) error {
	pending, err := s.registry.ListPending(ctx, req.ClientID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if !req.ConfirmSupersede {
		return ErrSupersedeConfirmationRequired
	}

	// Stop watching superseded intents before cancelling them so a stale
	// poll result can never trigger a ledger refresh afterwards.
	for _, intent := range pending {
		s.watcher.Cancel(intent.ID)
	}

	return s.registry.CancelAll(ctx, pending, SupersededCancelReason)
}

func (s *OrchestratorService) createIntent(ctx context.Context, req SelectPlanRequest, plan *entity.Plan) (*SelectionResult, error) {
	now := time.Now().UTC()
	startAt := req.StartAt
	if startAt.IsZero() {
		startAt = now
	}

	enrollment := &entity.Enrollment{
		ClientID:  req.ClientID,
		PlanID:    plan.ID,
		CreatedAt: now,
	}
	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, err
	}

	period := &entity.Period{
		EnrollmentID: enrollment.ID,
		StartsAt:     startAt,
		ExpiresAt:    billing.ComputeExpiration(startAt, plan.DurationDays),
		IsCurrent:    false,
		IsTrial:      plan.IsTrial,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.periodRepo.Create(ctx, period); err != nil {
		return nil, err
	}

	result := &SelectionResult{Enrollment: enrollment, Period: period}

	if plan.Free() {
		if err := s.periodRepo.Activate(ctx, req.ClientID, period.ID); err != nil {
			return nil, err
		}
		period.IsCurrent = true
		result.State = SelectionStateActivated
		return result, nil
	}

	installments := req.InstallmentCount
	if installments < 1 {
		installments = 1
	}
	dueDate := now.Add(s.cfg.IntentDueIn)
	intent := &entity.PaymentIntent{
		EnrollmentID:      enrollment.ID,
		TotalCents:        plan.PriceCents,
		InstallmentCount:  installments,
		PaymentMethod:     req.PaymentMethod,
		Status:            entity.IntentStatusPending,
		DueDate:           &dueDate,
		AbsorbsGatewayFee: plan.AbsorbsGatewayFee,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentCreationFailed, err)
	}

	intent.ExternalReference = ExternalReference(intent.ID)
	if err := s.intentRepo.SetExternalReference(ctx, intent.ID, intent.ExternalReference); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentCreationFailed, err)
	}

	checkout, err := s.createCheckoutSafely(ctx, gateway.Checkout{
		ExternalReference: intent.ExternalReference,
		AmountCents:       intent.TotalCents,
		InstallmentCount:  intent.InstallmentCount,
		PaymentMethod:     intent.PaymentMethod,
		AbsorbFee:         intent.AbsorbsGatewayFee,
		DueDate:           intent.DueDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentCreationFailed, err)
	}
	if checkout.Type != gateway.ResultTypeRedirect {
		return nil, fmt.Errorf("%w: %s", ErrIntentCreationFailed, checkout.Error)
	}

	result.Intent = intent
	result.CheckoutURL = checkout.CheckoutURL
	result.State = SelectionStateAwaitingConfirmation
	return result, nil
}

func (s *OrchestratorService) abandon(l logrus.FieldLogger, failedAt SelectionState, err error) (*SelectionResult, error) {
	l.WithFields(logrus.Fields{"state": SelectionStateAbandoned, "failed_at": failedAt}).
		WithError(err).Warn("Selection abandoned")
	return nil, err
}

func (s *OrchestratorService) createCheckoutSafely(ctx context.Context, checkout gateway.Checkout) (_ gateway.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("gateway checkout failed: %v", rec)
		}
	}()

	return s.gatewayService.CreateCheckout(ctx, checkout), nil
}
