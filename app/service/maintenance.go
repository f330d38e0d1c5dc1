package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
)

type periodExpirer interface {
	ExpireCurrentBefore(ctx context.Context, now time.Time) (int64, error)
}

type intentOverduer interface {
	MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error)
}

// MaintenanceService owns the scheduled batch work: dropping the current
// flag from periods past expiry and marking unpaid intents overdue.
type MaintenanceService struct {
	periods periodExpirer
	intents intentOverduer
	logger  logrus.FieldLogger
}

func NewMaintenanceService(periods periodExpirer, intents intentOverduer) *MaintenanceService {
	return &MaintenanceService{
		periods: periods,
		intents: intents,
		logger:  factory.NewModuleLogger("maintenance"),
	}
}

func (s *MaintenanceService) RunPeriodExpirationBatch(ctx context.Context) error {
	expired, err := s.periods.ExpireCurrentBefore(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if expired > 0 {
		s.logger.WithField("expired", expired).Info("Expired current periods")
	}
	return nil
}

func (s *MaintenanceService) RunOverdueIntentBatch(ctx context.Context) error {
	overdue, err := s.intents.MarkOverdueBefore(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if overdue > 0 {
		s.logger.WithField("overdue", overdue).Info("Marked pending intents overdue")
	}
	return nil
}
