package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/agamariel/crowdfund/internal/auth"
	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CashoutService выполняет вывод средств кампании.
type CashoutService interface {
	Cashout(ctx context.Context, in services.CashoutInput) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID, campaignID uuid.UUID) ([]*models.Withdrawal, error)
}

// CashoutHandler обрабатывает выводы средств и их историю.
type CashoutHandler struct {
	service CashoutService
	logger  *zap.Logger
}

func NewCashoutHandler(service CashoutService, logger *zap.Logger) *CashoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CashoutHandler{service: service, logger: logger}
}

// Cashout обрабатывает POST /api/user/cashout.
func (h *CashoutHandler) Cashout(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.CashoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	w, err := h.service.Cashout(c.Request().Context(), services.CashoutInput{
		UserID:      userID,
		CampaignID:  req.CampaignID,
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		Provider:    req.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCashoutRequest):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNotCampaignOwner):
			return echo.NewHTTPError(http.StatusForbidden, "not the campaign owner")
		case errors.Is(err, services.ErrCashoutFailed) && provider.IsRetryable(err):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "payment provider unavailable, try again later")
		default:
			h.logger.Error("cashout failed", zap.Stringer("user_id", userID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "cashout failed")
		}
	}

	return c.JSON(http.StatusOK, models.CashoutResponse{
		WithdrawalID:     w.ID,
		Reference:        w.ExternalReference,
		Status:           string(w.Status),
		AmountForMain:    w.FeeAmount,
		AmountForCashout: w.PayoutAmount,
	})
}

// ListWithdrawals обрабатывает GET /api/campaigns/:id/withdrawals.
func (h *CashoutHandler) ListWithdrawals(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid campaign id")
	}

	list, err := h.service.ListWithdrawals(c.Request().Context(), userID, campaignID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCashoutRequest):
			return echo.NewHTTPError(http.StatusNotFound, "campaign not found")
		case errors.Is(err, services.ErrNotCampaignOwner):
			return echo.NewHTTPError(http.StatusForbidden, "not the campaign owner")
		default:
			h.logger.Error("list withdrawals failed", zap.Stringer("campaign_id", campaignID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	if len(list) == 0 {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, mapWithdrawals(list))
}

func mapWithdrawals(list []*models.Withdrawal) []models.WithdrawalResponse {
	resp := make([]models.WithdrawalResponse, 0, len(list))
	for _, w := range list {
		r := models.WithdrawalResponse{
			ID:        w.ID,
			Reference: w.ExternalReference,
			Amount:    w.Amount,
			Status:    string(w.Status),
			CreatedAt: w.CreatedAt.Format(time.RFC3339),
		}
		if w.CompletedAt != nil {
			r.CompletedAt = w.CompletedAt.Format(time.RFC3339)
		}
		resp = append(resp, r)
	}
	return resp
}
