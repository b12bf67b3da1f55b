package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const msgSessionExpired = "Your session has expired, please login again"

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error", "status", "timestamp"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{
			Error:     msg,
			Status:    code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Order matters: several sentinels are wrapped together.
	switch {
	case (errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrInvalidToken)) &&
		errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, msgSessionExpired
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid or missing access token"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrEmailNotVerified):
		return http.StatusUnauthorized, "email address is not verified, please confirm your registration"
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusUnauthorized, "account is locked"
	case errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrInvalidTokenRequest):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrTokenRefreshDenied),
		errors.Is(err, domain.ErrTokenRefresh):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrAlreadyInUse):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrPasswordResetLink),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUpdatePassword):
		return http.StatusBadRequest, err.Error()
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
