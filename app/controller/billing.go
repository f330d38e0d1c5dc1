package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-client-billing/app/dto"
	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
	"github.com/vibast-solutions/ms-go-client-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-client-billing/app/service"
	"github.com/vibast-solutions/ms-go-client-billing/app/types"
)

type catalogService interface {
	ListActivePlans(ctx context.Context) ([]*entity.Plan, error)
	ListEligiblePlans(ctx context.Context, clientID string) ([]*entity.Plan, error)
}

type ledgerService interface {
	CurrentPeriod(ctx context.Context, clientID string) (*entity.Period, error)
	ReactivatablePeriods(ctx context.Context, clientID string) ([]*entity.Period, error)
	IsUpgradeCandidate(ctx context.Context, clientID string, plan *entity.Plan) (bool, error)
	ActivateReactivatedPeriod(ctx context.Context, clientID string, periodID uint64) (*entity.Period, error)
}

type registryService interface {
	ListPending(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error)
}

type orchestratorService interface {
	SelectPlan(ctx context.Context, req service.SelectPlanRequest) (*service.SelectionResult, error)
}

type callbackService interface {
	PaymentCallback(ctx context.Context, req *types.PaymentCallbackRequest) error
}

type BillingController struct {
	catalog      catalogService
	ledger       ledgerService
	registry     registryService
	orchestrator orchestratorService
	callback     callbackService
	logger       logrus.FieldLogger
}

func NewBillingController(
	catalog catalogService,
	ledger ledgerService,
	registry registryService,
	orchestrator orchestratorService,
	callback callbackService,
) *BillingController {
	return &BillingController{
		catalog:      catalog,
		ledger:       ledger,
		registry:     registry,
		orchestrator: orchestrator,
		callback:     callback,
		logger:       factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

func (c *BillingController) ListPlans(ctx echo.Context) error {
	items, err := c.catalog.ListActivePlans(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("List plans failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.ListPlansResponse{Plans: mapper.PlansToResponse(items)})
}

func (c *BillingController) ListEligiblePlans(ctx echo.Context) error {
	req, err := types.NewListEligiblePlansRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	reqCtx := ctx.Request().Context()
	items, err := c.catalog.ListEligiblePlans(reqCtx, req.ClientID)
	if err != nil {
		if errors.Is(err, service.ErrClientRequired) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("List eligible plans failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	plans := make([]dto.PlanResponse, 0, len(items))
	for _, item := range items {
		resp := mapper.PlanToResponse(item)
		// Advisory upgrade labeling for the portal; lookup failures leave
		// the flag unset rather than failing the listing.
		if upgrade, err := c.ledger.IsUpgradeCandidate(reqCtx, req.ClientID, item); err == nil {
			resp.IsUpgrade = &upgrade
		}
		plans = append(plans, resp)
	}

	return ctx.JSON(http.StatusOK, &dto.ListPlansResponse{Plans: plans})
}

func (c *BillingController) GetCurrentPeriod(ctx echo.Context) error {
	req, err := types.NewClientRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.ledger.CurrentPeriod(ctx.Request().Context(), req.ClientID)
	if err != nil {
		c.logger.WithError(err).Error("Get current period failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	if item == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	return ctx.JSON(http.StatusOK, &dto.PeriodEnvelopeResponse{Period: mapper.PeriodToResponse(item)})
}

func (c *BillingController) ListReactivatablePeriods(ctx echo.Context) error {
	req, err := types.NewClientRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.ledger.ReactivatablePeriods(ctx.Request().Context(), req.ClientID)
	if err != nil {
		c.logger.WithError(err).Error("List reactivatable periods failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.ListPeriodsResponse{Periods: mapper.PeriodsToResponse(items)})
}

func (c *BillingController) ListPendingPayments(ctx echo.Context) error {
	req, err := types.NewClientRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.registry.ListPending(ctx.Request().Context(), req.ClientID)
	if err != nil {
		c.logger.WithError(err).Error("List pending payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.ListPaymentIntentsResponse{PaymentIntents: mapper.PaymentIntentsToResponse(items)})
}

func (c *BillingController) SelectPlan(ctx echo.Context) error {
	req, err := types.NewSelectPlanRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.orchestrator.SelectPlan(ctx.Request().Context(), service.SelectPlanRequest{
		ClientID:         req.ClientID,
		PlanID:           req.PlanID,
		StartAt:          req.StartAtTime(),
		InstallmentCount: req.InstallmentCount,
		PaymentMethod:    req.PaymentMethod,
		ConfirmSupersede: req.ConfirmSupersede,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientRequired), errors.Is(err, service.ErrInvalidInstallments):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found")
		case errors.Is(err, service.ErrTrialAlreadyUsed):
			return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrSupersedeConfirmationRequired):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrPendingCancellationFailed):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrIntentCreationFailed):
			c.logger.WithError(err).Error("Intent creation failed")
			return c.writeError(ctx, http.StatusBadGateway, err.Error())
		default:
			c.logger.WithError(err).Error("Select plan failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, mapper.SelectionToResponse(result))
}

func (c *BillingController) ReactivatePeriod(ctx echo.Context) error {
	req, err := types.NewReactivatePeriodRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.ledger.ActivateReactivatedPeriod(ctx.Request().Context(), req.ClientID, req.PeriodID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPeriodNotFound):
			return c.writeError(ctx, http.StatusNotFound, "period not found")
		case errors.Is(err, service.ErrPeriodExpired):
			return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
		default:
			c.logger.WithError(err).Error("Reactivate period failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &dto.PeriodEnvelopeResponse{Period: mapper.PeriodToResponse(item)})
}

func (c *BillingController) PaymentCallback(ctx echo.Context) error {
	req, err := types.NewPaymentCallbackRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.callback.PaymentCallback(ctx.Request().Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrIntentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment intent not found")
		default:
			c.logger.WithError(err).Error("Payment callback failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &dto.MessageResponse{Message: "Payment processed successfully"})
}

func (c *BillingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
