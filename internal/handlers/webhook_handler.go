package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/services"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SignatureHeader - заголовок с hex(HMAC-SHA256(secret, body)).
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// Reconciler применяет события провайдера.
type Reconciler interface {
	ReconcileDonation(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error)
	ReconcilePayout(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error)
}

// WebhookHandler принимает уведомления провайдера о платежах и выплатах.
type WebhookHandler struct {
	reconciler Reconciler
	secret     []byte
	logger     *zap.Logger
}

// NewWebhookHandler создаёт handler. Пустой secret отключает проверку подписи.
func NewWebhookHandler(reconciler Reconciler, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{reconciler: reconciler, secret: []byte(secret), logger: logger}
}

// Donation обрабатывает POST /api/webhooks/payments.
func (h *WebhookHandler) Donation(c echo.Context) error {
	return h.handle(c, "donation", h.reconciler.ReconcileDonation)
}

// Payout обрабатывает POST /api/webhooks/payouts.
func (h *WebhookHandler) Payout(c echo.Context) error {
	return h.handle(c, "payout", h.reconciler.ReconcilePayout)
}

type reconcileFunc func(ctx context.Context, ev models.WebhookEvent) (services.Outcome, error)

// handle отвечает 200 на всё, что повторять бессмысленно, и 5xx на временные
// ошибки, чтобы провайдер доставил событие ещё раз.
func (h *WebhookHandler) handle(c echo.Context, kind string, reconcile reconcileFunc) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if !h.validSignature(body, c.Request().Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature mismatch", zap.String("kind", kind), zap.String("ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	ev, err := models.ParseWebhookEvent(body)
	if err != nil {
		h.logger.Warn("unrecognized webhook payload", zap.String("kind", kind), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "unrecognized event")
	}

	outcome, err := reconcile(c.Request().Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "unrecognized event")
		case errors.Is(err, services.ErrProviderError) || provider.IsRetryable(err):
			h.logger.Warn("webhook deferred, provider unavailable", zap.String("kind", kind), zap.String("reference", ev.Reference), zap.Error(err))
			return echo.NewHTTPError(http.StatusServiceUnavailable, "provider unavailable")
		default:
			h.logger.Error("webhook processing failed", zap.String("kind", kind), zap.String("reference", ev.Reference), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.JSON(http.StatusOK, models.WebhookAck{Status: string(outcome), Reference: ev.Reference})
}

func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	if len(h.secret) == 0 {
		return true
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign возвращает подпись тела для заголовка SignatureHeader.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
