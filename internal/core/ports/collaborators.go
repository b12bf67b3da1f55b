package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// PasswordHasher is a one-way hash with constant-time comparison.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

// Authenticator checks email and password credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

// TokenDecoder verifies a signed bearer token and returns its claims.
type TokenDecoder interface {
	Decode(token string) (*domain.Claims, error)
}

// VerificationListener is notified once a user confirms their email.
type VerificationListener interface {
	OnEmailVerified(ctx context.Context, user *domain.User) error
}

// AuthorizationEvaluator decides whether a bearer may call an operation.
type AuthorizationEvaluator interface {
	Allow(ctx context.Context, bearer, operation string) (bool, error)
	AllowResource(ctx context.Context, bearer, operation string, attrs map[string]string) (bool, error)
}
