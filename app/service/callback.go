package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
	"github.com/vibast-solutions/ms-go-client-billing/app/types"
)

type paidReconciler interface {
	ReconcilePaidIntent(ctx context.Context, intentID uint64) error
}

// CallbackService applies gateway webhook confirmations to the store of
// record. The gateway delivers these on its own schedule; the poller covers
// the gap until they land.
type CallbackService struct {
	intentRepo paymentIntentRepository
	periodRepo periodRepository
	reconciler paidReconciler
	logger     logrus.FieldLogger
}

func NewCallbackService(
	intentRepo paymentIntentRepository,
	periodRepo periodRepository,
	reconciler paidReconciler,
) *CallbackService {
	return &CallbackService{
		intentRepo: intentRepo,
		periodRepo: periodRepo,
		reconciler: reconciler,
		logger:     factory.NewModuleLogger("payment-callback"),
	}
}

func (s *CallbackService) PaymentCallback(ctx context.Context, req *types.PaymentCallbackRequest) error {
	intent, err := s.intentRepo.FindByExternalReference(ctx, req.ExternalReference)
	if err != nil {
		return err
	}
	if intent == nil {
		return ErrIntentNotFound
	}

	l := s.logger.WithFields(logrus.Fields{
		"intent_id":          intent.ID,
		"external_reference": intent.ExternalReference,
		"transaction_id":     req.TransactionID,
	})

	switch req.Status {
	case "paid":
		if err := s.intentRepo.UpdateStatus(ctx, intent.ID, entity.IntentStatusPaid); err != nil {
			return err
		}
		if err := s.reconciler.ReconcilePaidIntent(ctx, intent.ID); err != nil {
			return err
		}
		l.Info("Payment confirmed, period activated")
	case "processing":
		if err := s.intentRepo.UpdateStatus(ctx, intent.ID, entity.IntentStatusProcessing); err != nil {
			return err
		}
	case "cancelled":
		if err := s.intentRepo.UpdateStatus(ctx, intent.ID, entity.IntentStatusCancelled); err != nil {
			return err
		}
		l.Info("Payment cancelled by gateway")
	case "refunded":
		if err := s.intentRepo.UpdateStatus(ctx, intent.ID, entity.IntentStatusRefunded); err != nil {
			return err
		}
		// A refund revokes the access the payment bought. The period record
		// stays, only the current flag is dropped.
		if err := s.periodRepo.ClearCurrentByEnrollment(ctx, intent.EnrollmentID); err != nil {
			return err
		}
		l.Info("Payment refunded, period deactivated")
	default:
		return fmt.Errorf("%w: invalid callback status", ErrInvalidRequest)
	}

	return nil
}
