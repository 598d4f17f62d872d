package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/agamariel/crowdfund/internal/auth"
	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/services"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DonationService создаёт платежи.
type DonationService interface {
	CreateIntent(ctx context.Context, in services.DonationInput) (*models.Payment, *provider.PaymentIntent, error)
}

// DonationHandler принимает пожертвования, в том числе от анонимных пользователей.
type DonationHandler struct {
	service DonationService
	logger  *zap.Logger
}

func NewDonationHandler(service DonationService, logger *zap.Logger) *DonationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationHandler{service: service, logger: logger}
}

// Create обрабатывает POST /api/campaigns/:id/donations.
func (h *DonationHandler) Create(c echo.Context) error {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid campaign id")
	}

	var req models.DonationIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, intent, err := h.service.CreateIntent(c.Request().Context(), services.DonationInput{
		CampaignID: campaignID,
		DonorID:    auth.OptionalUserID(c),
		DonorName:  req.Name,
		Email:      req.Email,
		Amount:     req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "amount must be positive")
		case errors.Is(err, storage.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "campaign not found")
		case errors.Is(err, services.ErrCampaignNotActive):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "campaign is not accepting donations")
		case errors.Is(err, services.ErrProviderError):
			h.logger.Warn("payment intent failed", zap.Stringer("campaign_id", campaignID), zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
		default:
			h.logger.Error("create donation failed", zap.Stringer("campaign_id", campaignID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.JSON(http.StatusCreated, models.DonationIntentResponse{
		Reference:   p.ExternalReference,
		CheckoutURL: intent.CheckoutURL,
		Amount:      p.Amount,
	})
}
