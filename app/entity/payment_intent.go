package entity

import "time"

type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "PENDING"
	IntentStatusProcessing IntentStatus = "PROCESSING"
	IntentStatusPaid       IntentStatus = "PAID"
	IntentStatusOverdue    IntentStatus = "OVERDUE"
	IntentStatusCancelled  IntentStatus = "CANCELLED"
	IntentStatusRefunded   IntentStatus = "REFUNDED"
)

// Terminal reports whether the gateway can no longer change the status.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentStatusPaid, IntentStatusCancelled, IntentStatusRefunded:
		return true
	default:
		return false
	}
}

// Open reports whether the intent still blocks a new plan selection.
func (s IntentStatus) Open() bool {
	return s == IntentStatusPending || s == IntentStatusProcessing
}

// PaymentIntent is a tracked payment attempt tied to an enrollment. The
// gateway correlates its callbacks through ExternalReference.
type PaymentIntent struct {
	ID                uint64
	EnrollmentID      uint64
	TotalCents        int64
	InstallmentCount  int32
	PaymentMethod     string
	Status            IntentStatus
	DueDate           *time.Time
	CancelReason      *string
	ExternalReference string
	AbsorbsGatewayFee bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
