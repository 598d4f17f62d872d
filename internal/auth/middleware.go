package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey - тип для ключей контекста.
type ContextKey string

const (
	// UserIDKey - ключ для хранения ID пользователя в контексте.
	UserIDKey ContextKey = "user_id"
	// UserLoginKey - ключ для хранения логина пользователя в контексте.
	UserLoginKey ContextKey = "user_login"
)

// JWTMiddleware пропускает только запросы с действительным токеном.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return middleware(secret, true)
}

// OptionalJWTMiddleware пропускает анонимные запросы, но отклоняет
// запросы с недействительным токеном.
func OptionalJWTMiddleware(secret string) echo.MiddlewareFunc {
	return middleware(secret, false)
}

func middleware(secret string, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFromRequest(c)
			if token == "" {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
				}
				return next(c)
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(string(UserIDKey), claims.UserID)
			c.Set(string(UserLoginKey), claims.Login)
			return next(c)
		}
	}
}

// tokenFromRequest берёт токен из заголовка Authorization, затем из cookie.
func tokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie("Authorization"); err == nil {
		return cookie.Value
	}
	return ""
}

// GetUserIDFromContext извлекает ID пользователя из контекста.
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	userID, ok := c.Get(string(UserIDKey)).(uuid.UUID)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "user not found in context")
	}
	return userID, nil
}

// OptionalUserID возвращает ID пользователя или nil для анонимного запроса.
func OptionalUserID(c echo.Context) *uuid.UUID {
	userID, ok := c.Get(string(UserIDKey)).(uuid.UUID)
	if !ok {
		return nil
	}
	return &userID
}

// GetUserLoginFromContext извлекает логин пользователя из контекста.
func GetUserLoginFromContext(c echo.Context) (string, error) {
	login, ok := c.Get(string(UserLoginKey)).(string)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "user not found in context")
	}
	return login, nil
}
