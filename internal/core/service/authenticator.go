package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// PasswordAuthenticator checks email and password against the user store.
type PasswordAuthenticator struct {
	users  ports.UserRepository
	hasher ports.PasswordHasher
}

func NewPasswordAuthenticator(users ports.UserRepository, hasher ports.PasswordHasher) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, hasher: hasher}
}

// Authenticate returns the user on success. Unknown email and wrong
// password both yield domain.ErrInvalidCredentials.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !a.hasher.Matches(password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrAccountLocked
	}
	if !user.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}
	return user, nil
}
