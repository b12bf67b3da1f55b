package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/service"
)

const secret = "secret"

func signed(t *testing.T, id string, roles []string, exp time.Time) string {
	t.Helper()
	token, err := service.NewTokenCodec(secret).Issue(id, id+"@example.com", roles, exp)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "7", []string{domain.RoleUser}, time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	mw := Auth(service.NewTokenCodec(secret))
	handler := mw(func(c echo.Context) error {
		called = true
		claims := Claims(c)
		if claims == nil || claims.UserID != "7" {
			t.Fatalf("claims not set: %+v", claims)
		}
		if len(claims.Roles) != 1 || claims.Roles[0] != domain.RoleUser {
			t.Fatalf("roles not set: %v", claims.Roles)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing header", "", domain.ErrUnauthenticated},
		{"bearer only", "Bearer ", domain.ErrUnauthenticated},
		{"garbage", "Bearer abc", domain.ErrInvalidToken},
		{"expired", "Bearer " + signed(t, "7", nil, time.Now().Add(-time.Minute)), domain.ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			handler := Auth(service.NewTokenCodec(secret))(func(c echo.Context) error {
				t.Fatalf("should not reach next")
				return nil
			})
			if err := handler(c); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
