package types

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestNewSelectPlanRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/clients/c-1/plan",
		bytes.NewBufferString(`{"plan_id":2,"start_at":"2026-03-01T10:00:00Z","installment_count":3,"payment_method":" credit_card ","confirm_supersede":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("client_id")
	ctx.SetParamValues("c-1")

	parsed, err := NewSelectPlanRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.ClientID != "c-1" || parsed.PlanID != 2 || parsed.PaymentMethod != "credit_card" || !parsed.ConfirmSupersede {
		t.Fatalf("unexpected parsed request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !parsed.StartAtTime().Equal(want) {
		t.Fatalf("unexpected start time: %v", parsed.StartAtTime())
	}
}

func TestSelectPlanValidate(t *testing.T) {
	req := &SelectPlanRequest{PlanID: 1}
	if err := req.Validate(); err == nil {
		t.Fatal("expected missing client validation error")
	}

	req = &SelectPlanRequest{ClientID: "c-1"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected missing plan validation error")
	}

	req = &SelectPlanRequest{ClientID: "c-1", PlanID: 1, StartAt: "not-rfc3339"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected start_at validation error")
	}

	req = &SelectPlanRequest{ClientID: "c-1", PlanID: 1, InstallmentCount: -1}
	if err := req.Validate(); err == nil {
		t.Fatal("expected installment validation error")
	}
}

func TestSelectPlanStartAtTimeEmpty(t *testing.T) {
	req := &SelectPlanRequest{ClientID: "c-1", PlanID: 1}
	if !req.StartAtTime().IsZero() {
		t.Fatal("expected zero time for empty start_at")
	}
}

func TestNewReactivatePeriodRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/clients/c-1/periods/12/reactivate", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("client_id", "id")
	ctx.SetParamValues("c-1", "12")

	parsed, err := NewReactivatePeriodRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.ClientID != "c-1" || parsed.PeriodID != 12 {
		t.Fatalf("unexpected parsed request: %+v", parsed)
	}

	ctx.SetParamValues("c-1", "abc")
	if _, err := NewReactivatePeriodRequestFromContext(ctx); err == nil {
		t.Fatal("expected parse error for non-numeric id")
	}
}

func TestNewPaymentCallbackRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/webhooks/payment-callback",
		bytes.NewBufferString(`{"external_reference":" payment_77 ","status":" PAID ","transaction_id":" tx-1 "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewPaymentCallbackRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.ExternalReference != "payment_77" || parsed.Status != "paid" || parsed.TransactionID != "tx-1" {
		t.Fatalf("unexpected parsed callback: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid callback, got %v", err)
	}
}

func TestPaymentCallbackValidate(t *testing.T) {
	if err := (&PaymentCallbackRequest{Status: "paid"}).Validate(); err == nil {
		t.Fatal("expected missing reference validation error")
	}
	if err := (&PaymentCallbackRequest{ExternalReference: "payment_1", Status: "chargeback"}).Validate(); err == nil {
		t.Fatal("expected invalid status validation error")
	}
}

func TestClientRequestValidate(t *testing.T) {
	if err := (&ClientRequest{}).Validate(); err == nil {
		t.Fatal("expected invalid client request")
	}
	if err := (&ListEligiblePlansRequest{}).Validate(); err == nil {
		t.Fatal("expected invalid plans request")
	}
}
