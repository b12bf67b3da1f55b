package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// CurrentUserAttr is the resource attribute compared against the id claim.
const CurrentUserAttr = "currentUser"

const bearerPrefix = "Bearer"

// Authorizer decides access by intersecting the caller's role claims with
// the roles mapped to an operation.
type Authorizer struct {
	decoder ports.TokenDecoder
	roles   ports.RoleMappingRepository
	log     zerolog.Logger
}

func NewAuthorizer(decoder ports.TokenDecoder, roles ports.RoleMappingRepository, log zerolog.Logger) *Authorizer {
	return &Authorizer{decoder: decoder, roles: roles, log: log}
}

// Allow reports whether the bearer may invoke operation.
func (a *Authorizer) Allow(ctx context.Context, bearer, operation string) (bool, error) {
	claims, err := a.claims(bearer)
	if err != nil {
		return false, err
	}
	return a.hasRole(ctx, claims, operation)
}

// AllowResource is Allow plus the ownership rule: when attrs carries
// currentUser it must match the id claim.
func (a *Authorizer) AllowResource(ctx context.Context, bearer, operation string, attrs map[string]string) (bool, error) {
	claims, err := a.claims(bearer)
	if err != nil {
		return false, err
	}
	ok, err := a.hasRole(ctx, claims, operation)
	if err != nil || !ok {
		return false, err
	}
	return ownsResource(claims, attrs), nil
}

func (a *Authorizer) claims(bearer string) (*domain.Claims, error) {
	token := ExtractBearer(bearer)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}
	claims, err := a.decoder.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	return claims, nil
}

func (a *Authorizer) hasRole(ctx context.Context, claims *domain.Claims, operation string) (bool, error) {
	mapped, err := a.roles.RolesFor(ctx, operation)
	if err != nil {
		return false, fmt.Errorf("lookup roles for %s: %w", operation, err)
	}
	for _, want := range mapped {
		for _, have := range claims.Roles {
			if strings.EqualFold(want, have) {
				return true, nil
			}
		}
	}
	a.log.Debug().Str("operation", operation).Str("user_id", claims.UserID).Msg("no matching role for operation")
	return false, nil
}

func ownsResource(claims *domain.Claims, attrs map[string]string) bool {
	current, ok := attrs[CurrentUserAttr]
	if !ok {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(current), claims.UserID)
}

// ExtractBearer pulls the token out of an Authorization header value. The
// "Bearer" prefix match is case-sensitive.
func ExtractBearer(header string) string {
	token := strings.TrimSpace(header)
	token = strings.TrimPrefix(token, bearerPrefix)
	return strings.TrimSpace(token)
}
