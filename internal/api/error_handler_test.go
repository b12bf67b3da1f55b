package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
)

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: email", domain.ErrAlreadyInUse), http.StatusConflict},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrPasswordResetLink, http.StatusNotFound},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrUpdatePassword, http.StatusBadRequest},
		{domain.ErrTokenExpired, http.StatusUnauthorized},
		{domain.ErrInvalidTokenRequest, http.StatusUnauthorized},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrEmailNotVerified, http.StatusUnauthorized},
		{domain.ErrAccountLocked, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", domain.ErrInvalidToken, domain.ErrTokenExpired), http.StatusUnauthorized},
		{domain.ErrTokenRefresh, http.StatusForbidden},
		{domain.ErrTokenRefreshDenied, http.StatusForbidden},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{echo.NewHTTPError(http.StatusBadRequest, "invalid payload"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler(tt.err, e.NewContext(req, rec))

		if rec.Code != tt.code {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body.Status != tt.code || body.Error == "" || body.Timestamp == "" {
			t.Fatalf("unexpected envelope: %+v", body)
		}
	}
}

func TestHTTPErrorHandler_ExpiredSession(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	err := fmt.Errorf("%w: %w", domain.ErrUnauthenticated, fmt.Errorf("%w: %w", domain.ErrInvalidToken, domain.ErrTokenExpired))
	NewHTTPErrorHandler(zerolog.Nop())(err, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

	var body errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusUnauthorized || body.Error != msgSessionExpired {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestHTTPErrorHandler_UnexpectedDoesNotLeak(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	NewHTTPErrorHandler(zerolog.Nop())(errors.New("mongo: secret dsn"), e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

	var body errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "internal server error" {
		t.Fatalf("expected generic message, got %q", body.Error)
	}
}
