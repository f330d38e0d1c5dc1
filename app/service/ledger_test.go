package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/gateway"
	"github.com/vibast-solutions/ms-go-client-billing/app/repository"
	"github.com/vibast-solutions/ms-go-client-billing/config"
)

type mockPlanRepo struct {
	listActiveFn func(ctx context.Context) ([]*entity.Plan, error)
	findByIDFn   func(ctx context.Context, id uint64) (*entity.Plan, error)
}

func (m *mockPlanRepo) ListActive(ctx context.Context) ([]*entity.Plan, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockEnrollmentRepo struct {
	createFn   func(ctx context.Context, enrollment *entity.Enrollment) error
	findByIDFn func(ctx context.Context, id uint64) (*entity.Enrollment, error)
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	if m.createFn != nil {
		return m.createFn(ctx, enrollment)
	}
	return nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id uint64) (*entity.Enrollment, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockPeriodRepo struct {
	createFn              func(ctx context.Context, period *entity.Period) error
	findByIDFn            func(ctx context.Context, id uint64) (*entity.Period, error)
	findByEnrollmentFn    func(ctx context.Context, enrollmentID uint64) (*entity.Period, error)
	findCurrentByClientFn func(ctx context.Context, clientID string) (*entity.Period, error)
	listReactivatableFn   func(ctx context.Context, clientID string, now time.Time) ([]*entity.Period, error)
	hasTrialFn            func(ctx context.Context, clientID string) (bool, error)
	activateFn            func(ctx context.Context, clientID string, periodID uint64) error
	clearCurrentFn        func(ctx context.Context, enrollmentID uint64) error
}

func (m *mockPeriodRepo) Create(ctx context.Context, period *entity.Period) error {
	if m.createFn != nil {
		return m.createFn(ctx, period)
	}
	return nil
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, id uint64) (*entity.Period, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPeriodRepo) FindByEnrollment(ctx context.Context, enrollmentID uint64) (*entity.Period, error) {
	if m.findByEnrollmentFn != nil {
		return m.findByEnrollmentFn(ctx, enrollmentID)
	}
	return nil, nil
}

func (m *mockPeriodRepo) FindCurrentByClient(ctx context.Context, clientID string) (*entity.Period, error) {
	if m.findCurrentByClientFn != nil {
		return m.findCurrentByClientFn(ctx, clientID)
	}
	return nil, nil
}

func (m *mockPeriodRepo) ListReactivatableByClient(ctx context.Context, clientID string, now time.Time) ([]*entity.Period, error) {
	if m.listReactivatableFn != nil {
		return m.listReactivatableFn(ctx, clientID, now)
	}
	return nil, nil
}

func (m *mockPeriodRepo) HasTrialByClient(ctx context.Context, clientID string) (bool, error) {
	if m.hasTrialFn != nil {
		return m.hasTrialFn(ctx, clientID)
	}
	return false, nil
}

func (m *mockPeriodRepo) Activate(ctx context.Context, clientID string, periodID uint64) error {
	if m.activateFn != nil {
		return m.activateFn(ctx, clientID, periodID)
	}
	return nil
}

func (m *mockPeriodRepo) ClearCurrentByEnrollment(ctx context.Context, enrollmentID uint64) error {
	if m.clearCurrentFn != nil {
		return m.clearCurrentFn(ctx, enrollmentID)
	}
	return nil
}

type mockIntentRepo struct {
	createFn              func(ctx context.Context, intent *entity.PaymentIntent) error
	findByIDFn            func(ctx context.Context, id uint64) (*entity.PaymentIntent, error)
	findByExternalRefFn   func(ctx context.Context, externalReference string) (*entity.PaymentIntent, error)
	listOpenByClientFn    func(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error)
	cancelFn              func(ctx context.Context, id uint64, reason string) error
	updateStatusFn        func(ctx context.Context, id uint64, status entity.IntentStatus) error
	setExternalRefFn      func(ctx context.Context, id uint64, externalReference string) error
	hasTrialIntentFn      func(ctx context.Context, clientID string) (bool, error)
}

func (m *mockIntentRepo) Create(ctx context.Context, intent *entity.PaymentIntent) error {
	if m.createFn != nil {
		return m.createFn(ctx, intent)
	}
	return nil
}

func (m *mockIntentRepo) FindByID(ctx context.Context, id uint64) (*entity.PaymentIntent, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockIntentRepo) FindByExternalReference(ctx context.Context, externalReference string) (*entity.PaymentIntent, error) {
	if m.findByExternalRefFn != nil {
		return m.findByExternalRefFn(ctx, externalReference)
	}
	return nil, nil
}

func (m *mockIntentRepo) ListOpenByClient(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error) {
	if m.listOpenByClientFn != nil {
		return m.listOpenByClientFn(ctx, clientID)
	}
	return nil, nil
}

func (m *mockIntentRepo) Cancel(ctx context.Context, id uint64, reason string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, id, reason)
	}
	return nil
}

func (m *mockIntentRepo) UpdateStatus(ctx context.Context, id uint64, status entity.IntentStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockIntentRepo) SetExternalReference(ctx context.Context, id uint64, externalReference string) error {
	if m.setExternalRefFn != nil {
		return m.setExternalRefFn(ctx, id, externalReference)
	}
	return nil
}

func (m *mockIntentRepo) HasTrialIntentByClient(ctx context.Context, clientID string) (bool, error) {
	if m.hasTrialIntentFn != nil {
		return m.hasTrialIntentFn(ctx, clientID)
	}
	return false, nil
}

type fakeGatewayService struct {
	result       gateway.Result
	panicWith    string
	calledCount  int
	lastCheckout gateway.Checkout
}

func (f *fakeGatewayService) CreateCheckout(_ context.Context, checkout gateway.Checkout) gateway.Result {
	f.calledCount++
	f.lastCheckout = checkout
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	return f.result
}

type fakeWatcher struct {
	watched   []uint64
	cancelled []uint64
}

func (f *fakeWatcher) Watch(intentID uint64) bool {
	f.watched = append(f.watched, intentID)
	return true
}

func (f *fakeWatcher) Cancel(intentID uint64) {
	f.cancelled = append(f.cancelled, intentID)
}

type mockPendingRegistry struct {
	listPendingFn func(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error)
	cancelAllFn   func(ctx context.Context, intents []*entity.PaymentIntent, reason string) error
}

func (m *mockPendingRegistry) ListPending(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx, clientID)
	}
	return nil, nil
}

func (m *mockPendingRegistry) CancelAll(ctx context.Context, intents []*entity.PaymentIntent, reason string) error {
	if m.cancelAllFn != nil {
		return m.cancelAllFn(ctx, intents, reason)
	}
	return nil
}

type mockTrialLedger struct {
	hasEverHeldTrialFn func(ctx context.Context, clientID string) (bool, error)
}

func (m *mockTrialLedger) HasEverHeldTrial(ctx context.Context, clientID string) (bool, error) {
	if m.hasEverHeldTrialFn != nil {
		return m.hasEverHeldTrialFn(ctx, clientID)
	}
	return false, nil
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		IntentDueIn:     48 * time.Hour,
		PollInterval:    5 * time.Millisecond,
		PollMaxAttempts: 3,
	}
}

func newLedger(plans *mockPlanRepo, enrollments *mockEnrollmentRepo, periods *mockPeriodRepo, intents *mockIntentRepo) *LedgerService {
	if plans == nil {
		plans = &mockPlanRepo{}
	}
	if enrollments == nil {
		enrollments = &mockEnrollmentRepo{}
	}
	if periods == nil {
		periods = &mockPeriodRepo{}
	}
	if intents == nil {
		intents = &mockIntentRepo{}
	}
	return NewLedgerService(plans, enrollments, periods, intents)
}

func TestCurrentPeriodRequiresClient(t *testing.T) {
	svc := newLedger(nil, nil, nil, nil)
	if _, err := svc.CurrentPeriod(context.Background(), ""); !errors.Is(err, ErrClientRequired) {
		t.Fatalf("expected ErrClientRequired, got %v", err)
	}
}

func TestHasEverHeldTrialChecksPeriodsFirst(t *testing.T) {
	intentChecked := false
	svc := newLedger(nil, nil,
		&mockPeriodRepo{hasTrialFn: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		}},
		&mockIntentRepo{hasTrialIntentFn: func(_ context.Context, _ string) (bool, error) {
			intentChecked = true
			return false, nil
		}},
	)

	held, err := svc.HasEverHeldTrial(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !held {
		t.Fatal("expected trial to be reported as held")
	}
	if intentChecked {
		t.Fatal("intent history should not be consulted when a trial period exists")
	}
}

func TestHasEverHeldTrialFallsBackToIntents(t *testing.T) {
	svc := newLedger(nil, nil,
		&mockPeriodRepo{hasTrialFn: func(_ context.Context, _ string) (bool, error) {
			return false, nil
		}},
		&mockIntentRepo{hasTrialIntentFn: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		}},
	)

	held, err := svc.HasEverHeldTrial(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !held {
		t.Fatal("expected abandoned trial intent to still count as trial usage")
	}
}

func TestHasEverHeldTrialFalseWhenNoHistory(t *testing.T) {
	svc := newLedger(nil, nil, &mockPeriodRepo{}, &mockIntentRepo{})
	held, err := svc.HasEverHeldTrial(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if held {
		t.Fatal("expected no trial usage for a fresh client")
	}
}

func TestActivateReactivatedPeriodNotFound(t *testing.T) {
	svc := newLedger(nil, nil, &mockPeriodRepo{}, nil)
	if _, err := svc.ActivateReactivatedPeriod(context.Background(), "c-1", 5); !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("expected ErrPeriodNotFound, got %v", err)
	}
}

func TestActivateReactivatedPeriodRejectsExpired(t *testing.T) {
	activated := false
	svc := newLedger(nil, nil,
		&mockPeriodRepo{
			findByIDFn: func(_ context.Context, id uint64) (*entity.Period, error) {
				return &entity.Period{
					ID:           id,
					EnrollmentID: 2,
					StartsAt:     time.Now().UTC().Add(-60 * 24 * time.Hour),
					ExpiresAt:    time.Now().UTC().Add(-time.Hour),
				}, nil
			},
			activateFn: func(_ context.Context, _ string, _ uint64) error {
				activated = true
				return nil
			},
		},
		nil,
	)

	if _, err := svc.ActivateReactivatedPeriod(context.Background(), "c-1", 5); !errors.Is(err, ErrPeriodExpired) {
		t.Fatalf("expected ErrPeriodExpired, got %v", err)
	}
	if activated {
		t.Fatal("expired period must never be activated")
	}
}

func TestActivateReactivatedPeriodSwapsCurrent(t *testing.T) {
	var gotClient string
	var gotPeriod uint64
	svc := newLedger(nil, nil,
		&mockPeriodRepo{
			findByIDFn: func(_ context.Context, id uint64) (*entity.Period, error) {
				return &entity.Period{
					ID:           id,
					EnrollmentID: 2,
					StartsAt:     time.Now().UTC().Add(-24 * time.Hour),
					ExpiresAt:    time.Now().UTC().Add(24 * time.Hour),
				}, nil
			},
			activateFn: func(_ context.Context, clientID string, periodID uint64) error {
				gotClient = clientID
				gotPeriod = periodID
				return nil
			},
		},
		nil,
	)

	period, err := svc.ActivateReactivatedPeriod(context.Background(), "c-1", 7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotClient != "c-1" || gotPeriod != 7 {
		t.Fatalf("unexpected activation target: client=%q period=%d", gotClient, gotPeriod)
	}
	if !period.IsCurrent {
		t.Fatal("expected returned period to be current")
	}
}

func TestActivateReactivatedPeriodMapsStoreNotFound(t *testing.T) {
	svc := newLedger(nil, nil,
		&mockPeriodRepo{
			findByIDFn: func(_ context.Context, id uint64) (*entity.Period, error) {
				return &entity.Period{
					ID:        id,
					StartsAt:  time.Now().UTC(),
					ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
				}, nil
			},
			activateFn: func(_ context.Context, _ string, _ uint64) error {
				return repository.ErrPeriodNotFound
			},
		},
		nil,
	)

	if _, err := svc.ActivateReactivatedPeriod(context.Background(), "c-1", 7); !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("expected ErrPeriodNotFound, got %v", err)
	}
}

func TestReconcilePaidIntentActivatesPeriod(t *testing.T) {
	var gotClient string
	var gotPeriod uint64
	svc := newLedger(nil,
		&mockEnrollmentRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Enrollment, error) {
			return &entity.Enrollment{ID: id, ClientID: "c-9", PlanID: 1}, nil
		}},
		&mockPeriodRepo{
			findByEnrollmentFn: func(_ context.Context, _ uint64) (*entity.Period, error) {
				return &entity.Period{ID: 33, EnrollmentID: 8, IsCurrent: false}, nil
			},
			activateFn: func(_ context.Context, clientID string, periodID uint64) error {
				gotClient = clientID
				gotPeriod = periodID
				return nil
			},
		},
		&mockIntentRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.PaymentIntent, error) {
			return &entity.PaymentIntent{ID: id, EnrollmentID: 8, Status: entity.IntentStatusPaid}, nil
		}},
	)

	if err := svc.ReconcilePaidIntent(context.Background(), 77); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotClient != "c-9" || gotPeriod != 33 {
		t.Fatalf("unexpected activation target: client=%q period=%d", gotClient, gotPeriod)
	}
}

func TestReconcilePaidIntentIsIdempotent(t *testing.T) {
	activations := 0
	svc := newLedger(nil, nil,
		&mockPeriodRepo{
			findByEnrollmentFn: func(_ context.Context, _ uint64) (*entity.Period, error) {
				return &entity.Period{ID: 33, EnrollmentID: 8, IsCurrent: true}, nil
			},
			activateFn: func(_ context.Context, _ string, _ uint64) error {
				activations++
				return nil
			},
		},
		&mockIntentRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.PaymentIntent, error) {
			return &entity.PaymentIntent{ID: id, EnrollmentID: 8, Status: entity.IntentStatusPaid}, nil
		}},
	)

	if err := svc.ReconcilePaidIntent(context.Background(), 77); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := svc.ReconcilePaidIntent(context.Background(), 77); err != nil {
		t.Fatalf("expected no error on repeat, got %v", err)
	}
	if activations != 0 {
		t.Fatalf("expected no activation for an already-current period, got %d", activations)
	}
}

func TestReconcilePaidIntentUnknownIntent(t *testing.T) {
	svc := newLedger(nil, nil, nil, &mockIntentRepo{})
	if err := svc.ReconcilePaidIntent(context.Background(), 404); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("expected ErrIntentNotFound, got %v", err)
	}
}

func TestIsUpgradeCandidate(t *testing.T) {
	paid := &entity.Plan{ID: 2, PriceCents: 9900, SeatLimit: 10}

	t.Run("no current period", func(t *testing.T) {
		svc := newLedger(nil, nil, &mockPeriodRepo{}, nil)
		upgrade, err := svc.IsUpgradeCandidate(context.Background(), "c-1", paid)
		if err != nil || !upgrade {
			t.Fatalf("expected upgrade=true, got %v err=%v", upgrade, err)
		}
	})

	t.Run("trial current and paid candidate", func(t *testing.T) {
		svc := newLedger(nil, nil,
			&mockPeriodRepo{findCurrentByClientFn: func(_ context.Context, _ string) (*entity.Period, error) {
				return &entity.Period{ID: 1, EnrollmentID: 5, IsCurrent: true, IsTrial: true}, nil
			}},
			nil,
		)
		upgrade, err := svc.IsUpgradeCandidate(context.Background(), "c-1", paid)
		if err != nil || !upgrade {
			t.Fatalf("expected upgrade=true, got %v err=%v", upgrade, err)
		}
	})

	t.Run("cheaper plan is not an upgrade", func(t *testing.T) {
		svc := newLedger(
			&mockPlanRepo{findByIDFn: func(_ context.Context, _ uint64) (*entity.Plan, error) {
				return &entity.Plan{ID: 3, PriceCents: 19900, SeatLimit: 50}, nil
			}},
			&mockEnrollmentRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Enrollment, error) {
				return &entity.Enrollment{ID: id, ClientID: "c-1", PlanID: 3}, nil
			}},
			&mockPeriodRepo{findCurrentByClientFn: func(_ context.Context, _ string) (*entity.Period, error) {
				return &entity.Period{ID: 1, EnrollmentID: 5, IsCurrent: true}, nil
			}},
			nil,
		)
		upgrade, err := svc.IsUpgradeCandidate(context.Background(), "c-1", paid)
		if err != nil || upgrade {
			t.Fatalf("expected upgrade=false, got %v err=%v", upgrade, err)
		}
	})
}
