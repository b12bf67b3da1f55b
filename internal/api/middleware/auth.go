package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
)

// ClaimsKey is the echo context key holding the decoded *domain.Claims.
const ClaimsKey = "claims"

// Auth validates the bearer token and injects its claims into context.
// Failures surface as domain errors for the HTTP error handler.
func Auth(decoder ports.TokenDecoder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := service.ExtractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return domain.ErrUnauthenticated
			}

			claims, err := decoder.Decode(token)
			if err != nil {
				return err
			}

			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

// Claims returns the claims set by Auth, or nil.
func Claims(c echo.Context) *domain.Claims {
	claims, _ := c.Get(ClaimsKey).(*domain.Claims)
	return claims
}
