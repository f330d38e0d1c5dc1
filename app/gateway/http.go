package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
)

// HTTPService creates checkouts against the payment gateway's REST API.
// The gateway confirms asynchronously via webhook; this client only opens
// the checkout.
type HTTPService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logrus.FieldLogger
}

func NewHTTPService(baseURL, apiKey string, timeout time.Duration) *HTTPService {
	return &HTTPService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  factory.NewModuleLogger("gateway-client"),
	}
}

type checkoutRequest struct {
	ExternalReference string `json:"external_reference"`
	AmountCents       int64  `json:"amount_cents"`
	InstallmentCount  int32  `json:"installment_count"`
	PaymentMethod     string `json:"payment_method"`
	AbsorbFee         bool   `json:"absorb_fee"`
	DueDate           string `json:"due_date,omitempty"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	Message     string `json:"message"`
}

func (s *HTTPService) CreateCheckout(ctx context.Context, checkout Checkout) Result {
	payload := checkoutRequest{
		ExternalReference: checkout.ExternalReference,
		AmountCents:       checkout.AmountCents,
		InstallmentCount:  checkout.InstallmentCount,
		PaymentMethod:     checkout.PaymentMethod,
		AbsorbFee:         checkout.AbsorbFee,
	}
	if checkout.DueDate != nil {
		payload.DueDate = checkout.DueDate.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Type: ResultTypeFailure, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/checkouts", bytes.NewReader(body))
	if err != nil {
		return Result{Type: ResultTypeFailure, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("external_reference", checkout.ExternalReference).Warn("Checkout request failed")
		return Result{Type: ResultTypeFailure, Error: err.Error()}
	}
	defer resp.Body.Close()

	var decoded checkoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{Type: ResultTypeFailure, Error: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.WithFields(logrus.Fields{
			"status":             resp.StatusCode,
			"external_reference": checkout.ExternalReference,
		}).Warn("Checkout rejected by gateway")
		return Result{Type: ResultTypeFailure, Error: fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, decoded.Message)}
	}

	return Result{Type: ResultTypeRedirect, CheckoutURL: decoded.CheckoutURL}
}
