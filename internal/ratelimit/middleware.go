package ratelimit

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Middleware ограничивает запросы по IP клиента отдельно для каждого маршрута.
// Ошибка лимитера не блокирует запрос.
func Middleware(l Limiter, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + "|" + c.RealIP()
			ok, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable, request allowed", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if !ok {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
