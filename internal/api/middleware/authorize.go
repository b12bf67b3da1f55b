package middleware

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// Authorize asks the evaluator whether the request's bearer may invoke
// operation. Each name in attrs is read from the query string and passed as
// a resource attribute when present.
func Authorize(evaluator ports.AuthorizationEvaluator, operation string, attrs ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bearer := c.Request().Header.Get(echo.HeaderAuthorization)

			var (
				ok  bool
				err error
			)
			if resource := resourceAttrs(c, attrs); resource != nil {
				ok, err = evaluator.AllowResource(c.Request().Context(), bearer, operation, resource)
			} else {
				ok, err = evaluator.Allow(c.Request().Context(), bearer, operation)
			}

			switch {
			case err != nil:
				metrics.AuthorizationDecisionsTotal.WithLabelValues(operation, "error").Inc()
				if errors.Is(err, domain.ErrUnauthenticated) {
					return err
				}
				return fmt.Errorf("authorize %s: %w", operation, err)
			case !ok:
				metrics.AuthorizationDecisionsTotal.WithLabelValues(operation, "deny").Inc()
				return fmt.Errorf("%w: %s", domain.ErrUnauthorized, operation)
			}

			metrics.AuthorizationDecisionsTotal.WithLabelValues(operation, "allow").Inc()
			return next(c)
		}
	}
}

func resourceAttrs(c echo.Context, names []string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	// A parameter present with an empty value is still forwarded; only an
	// absent one skips the attribute.
	query := c.QueryParams()
	attrs := make(map[string]string, len(names))
	for _, name := range names {
		if vs, ok := query[name]; ok && len(vs) > 0 {
			attrs[name] = vs[0]
		}
	}
	return attrs
}
