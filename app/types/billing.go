package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type ListEligiblePlansRequest struct {
	ClientID string
}

func NewListEligiblePlansRequestFromContext(ctx echo.Context) (*ListEligiblePlansRequest, error) {
	return &ListEligiblePlansRequest{ClientID: strings.TrimSpace(ctx.QueryParam("client_id"))}, nil
}

func (r *ListEligiblePlansRequest) Validate() error {
	if r.ClientID == "" {
		return errors.New("client_id is required")
	}
	return nil
}

type ClientRequest struct {
	ClientID string
}

func NewClientRequestFromContext(ctx echo.Context) (*ClientRequest, error) {
	return &ClientRequest{ClientID: strings.TrimSpace(ctx.Param("client_id"))}, nil
}

func (r *ClientRequest) Validate() error {
	if r.ClientID == "" {
		return errors.New("client_id is required")
	}
	return nil
}

type SelectPlanRequest struct {
	ClientID         string `json:"-"`
	PlanID           uint64 `json:"plan_id"`
	StartAt          string `json:"start_at"`
	InstallmentCount int32  `json:"installment_count"`
	PaymentMethod    string `json:"payment_method"`
	ConfirmSupersede bool   `json:"confirm_supersede"`
}

func NewSelectPlanRequestFromContext(ctx echo.Context) (*SelectPlanRequest, error) {
	var body SelectPlanRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ClientID = strings.TrimSpace(ctx.Param("client_id"))
	body.StartAt = strings.TrimSpace(body.StartAt)
	body.PaymentMethod = strings.TrimSpace(body.PaymentMethod)
	return &body, nil
}

func (r *SelectPlanRequest) Validate() error {
	if r.ClientID == "" {
		return errors.New("client_id is required")
	}
	if r.PlanID == 0 {
		return errors.New("plan_id is required")
	}
	if r.InstallmentCount < 0 {
		return errors.New("installment_count must not be negative")
	}
	if r.StartAt != "" {
		if _, err := time.Parse(time.RFC3339, r.StartAt); err != nil {
			return errors.New("start_at must be RFC3339")
		}
	}
	return nil
}

// StartAtTime returns the parsed start date, zero when none was given.
// Validate has already checked the format.
func (r *SelectPlanRequest) StartAtTime() time.Time {
	if r.StartAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, r.StartAt)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

type ReactivatePeriodRequest struct {
	ClientID string
	PeriodID uint64
}

func NewReactivatePeriodRequestFromContext(ctx echo.Context) (*ReactivatePeriodRequest, error) {
	periodID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &ReactivatePeriodRequest{
		ClientID: strings.TrimSpace(ctx.Param("client_id")),
		PeriodID: periodID,
	}, nil
}

func (r *ReactivatePeriodRequest) Validate() error {
	if r.ClientID == "" {
		return errors.New("client_id is required")
	}
	if r.PeriodID == 0 {
		return errors.New("invalid period id")
	}
	return nil
}

type PaymentCallbackRequest struct {
	ExternalReference string `json:"external_reference"`
	Status            string `json:"status"`
	TransactionID     string `json:"transaction_id"`
}

func NewPaymentCallbackRequestFromContext(ctx echo.Context) (*PaymentCallbackRequest, error) {
	var body PaymentCallbackRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ExternalReference = strings.TrimSpace(body.ExternalReference)
	body.Status = strings.ToLower(strings.TrimSpace(body.Status))
	body.TransactionID = strings.TrimSpace(body.TransactionID)
	return &body, nil
}

func (r *PaymentCallbackRequest) Validate() error {
	if r.ExternalReference == "" {
		return errors.New("external_reference is required")
	}
	switch r.Status {
	case "paid", "processing", "cancelled", "refunded":
	default:
		return errors.New("status must be one of paid, processing, cancelled, refunded")
	}
	return nil
}
