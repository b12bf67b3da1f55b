package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the core and its adapters. Callers attach
// context with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrAlreadyInUse        = errors.New("resource already in use")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRefresh        = errors.New("token refresh failed")
	ErrTokenRefreshDenied  = errors.New("refresh token not available for device")
	ErrInvalidTokenRequest = errors.New("invalid token request")
	ErrUpdatePassword      = errors.New("could not update password")
	ErrPasswordResetLink   = errors.New("could not create password reset link")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnauthorized        = errors.New("access denied")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrAccountLocked      = errors.New("account locked")

	// ErrUserNotFound is the repository-level miss for users.
	ErrUserNotFound = fmt.Errorf("user: %w", ErrNotFound)
)
