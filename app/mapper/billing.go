package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-client-billing/app/dto"
	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/service"
)

func PlanToResponse(item *entity.Plan) dto.PlanResponse {
	return dto.PlanResponse{
		ID:                item.ID,
		Name:              item.Name,
		PriceCents:        item.PriceCents,
		DurationDays:      item.DurationDays,
		SeatLimit:         item.SeatLimit,
		IsTrial:           item.IsTrial,
		AllowInstallments: item.AllowInstallments,
		MaxInstallments:   item.MaxInstallments,
		AbsorbsGatewayFee: item.AbsorbsGatewayFee,
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func PlansToResponse(items []*entity.Plan) []dto.PlanResponse {
	result := make([]dto.PlanResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PlanToResponse(item))
	}
	return result
}

func PeriodToResponse(item *entity.Period) dto.PeriodResponse {
	return dto.PeriodResponse{
		ID:           item.ID,
		EnrollmentID: item.EnrollmentID,
		StartsAt:     item.StartsAt.UTC().Format(time.RFC3339),
		ExpiresAt:    item.ExpiresAt.UTC().Format(time.RFC3339),
		IsCurrent:    item.IsCurrent,
		IsTrial:      item.IsTrial,
	}
}

func PeriodsToResponse(items []*entity.Period) []dto.PeriodResponse {
	result := make([]dto.PeriodResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PeriodToResponse(item))
	}
	return result
}

func PaymentIntentToResponse(item *entity.PaymentIntent) dto.PaymentIntentResponse {
	return dto.PaymentIntentResponse{
		ID:                item.ID,
		EnrollmentID:      item.EnrollmentID,
		TotalCents:        item.TotalCents,
		InstallmentCount:  item.InstallmentCount,
		PaymentMethod:     item.PaymentMethod,
		Status:            string(item.Status),
		DueDate:           formatTimePtr(item.DueDate),
		CancelReason:      item.CancelReason,
		ExternalReference: item.ExternalReference,
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentIntentsToResponse(items []*entity.PaymentIntent) []dto.PaymentIntentResponse {
	result := make([]dto.PaymentIntentResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentIntentToResponse(item))
	}
	return result
}

func SelectionToResponse(result *service.SelectionResult) dto.SelectionResponse {
	resp := dto.SelectionResponse{
		State:       string(result.State),
		CheckoutURL: result.CheckoutURL,
	}
	if result.Period != nil {
		period := PeriodToResponse(result.Period)
		resp.Period = &period
	}
	if result.Intent != nil {
		intent := PaymentIntentToResponse(result.Intent)
		resp.Intent = &intent
	}
	return resp
}

func formatTimePtr(v *time.Time) *string {
	if v == nil {
		return nil
	}
	formatted := v.UTC().Format(time.RFC3339)
	return &formatted
}
