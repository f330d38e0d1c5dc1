package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PlanResponse struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	PriceCents        int64  `json:"price_cents"`
	DurationDays      int32  `json:"duration_days"`
	SeatLimit         int32  `json:"seat_limit"`
	IsTrial           bool   `json:"is_trial"`
	AllowInstallments bool   `json:"allow_installments"`
	MaxInstallments   int32  `json:"max_installments"`
	AbsorbsGatewayFee bool   `json:"absorbs_gateway_fee"`
	IsUpgrade         *bool  `json:"is_upgrade,omitempty"`
	CreatedAt         string `json:"created_at"`
}

type ListPlansResponse struct {
	Plans []PlanResponse `json:"plans"`
}

type PeriodResponse struct {
	ID           uint64 `json:"id"`
	EnrollmentID uint64 `json:"enrollment_id"`
	StartsAt     string `json:"starts_at"`
	ExpiresAt    string `json:"expires_at"`
	IsCurrent    bool   `json:"is_current"`
	IsTrial      bool   `json:"is_trial"`
}

type PeriodEnvelopeResponse struct {
	Period PeriodResponse `json:"period"`
}

type ListPeriodsResponse struct {
	Periods []PeriodResponse `json:"periods"`
}

type PaymentIntentResponse struct {
	ID                uint64  `json:"id"`
	EnrollmentID      uint64  `json:"enrollment_id"`
	TotalCents        int64   `json:"total_cents"`
	InstallmentCount  int32   `json:"installment_count"`
	PaymentMethod     string  `json:"payment_method,omitempty"`
	Status            string  `json:"status"`
	DueDate           *string `json:"due_date,omitempty"`
	CancelReason      *string `json:"cancel_reason,omitempty"`
	ExternalReference string  `json:"external_reference,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

type ListPaymentIntentsResponse struct {
	PaymentIntents []PaymentIntentResponse `json:"payment_intents"`
}

type SelectionResponse struct {
	State       string                 `json:"state"`
	Period      *PeriodResponse        `json:"period,omitempty"`
	Intent      *PaymentIntentResponse `json:"payment_intent,omitempty"`
	CheckoutURL string                 `json:"checkout_url,omitempty"`
}
