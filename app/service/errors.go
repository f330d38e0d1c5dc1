package service

import "errors"

var (
	ErrPlanNotFound                  = errors.New("plan not found")
	ErrClientRequired                = errors.New("client_id is required")
	ErrInvalidRequest                = errors.New("invalid request")
	ErrInvalidInstallments           = errors.New("installment count not allowed by plan")
	ErrTrialAlreadyUsed              = errors.New("trial plan already used by client")
	ErrPeriodNotFound                = errors.New("period not found")
	ErrPeriodExpired                 = errors.New("period already expired")
	ErrSupersedeConfirmationRequired = errors.New("pending payments must be confirmed for cancellation")
	ErrPendingCancellationFailed     = errors.New("pending payment cancellation failed")
	ErrIntentCreationFailed          = errors.New("payment intent creation failed")
	ErrIntentNotFound                = errors.New("payment intent not found")
	ErrConfirmationTimeout           = errors.New("payment confirmation timed out")
)
