package gateway

import (
	"context"
	"time"
)

type ResultType string

const (
	ResultTypeRedirect ResultType = "redirect"
	ResultTypeFailure  ResultType = "failure"
)

// Checkout is the handoff the gateway needs to collect a payment. The
// gateway reports back through its own webhook using ExternalReference.
type Checkout struct {
	ExternalReference string
	AmountCents       int64
	InstallmentCount  int32
	PaymentMethod     string
	AbsorbFee         bool
	DueDate           *time.Time
}

type Result struct {
	Type        ResultType
	CheckoutURL string
	Error       string
}

type Service interface {
	CreateCheckout(ctx context.Context, checkout Checkout) Result
}
