package ports

import (
	"context"
	"time"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// RegisterInput carries a new account request.
type RegisterInput struct {
	Email           string
	Username        string
	FirstName       string
	LastName        string
	Password        string
	ConfirmPassword string
}

// RegisterResult is the created account plus the token that confirms it.
type RegisterResult struct {
	User              *domain.User
	VerificationToken *domain.EmailVerificationToken
}

// ConfirmResult reports the outcome of an email confirmation.
type ConfirmResult struct {
	User    *domain.User
	Message string
}

// LoginInput carries credentials and the device the session is bound to.
type LoginInput struct {
	Email    string
	Password string
	Device   domain.DeviceInfo
}

// TokenPair is what the client keeps after login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	TokenPair
	User *domain.User
}

// UpdatePasswordInput changes the password of an authenticated user.
type UpdatePasswordInput struct {
	OldPassword string
	NewPassword string
}

// PasswordResetInput completes a password reset.
type PasswordResetInput struct {
	Token           string
	Password        string
	ConfirmPassword string
}

type AuthService interface {
	RegisterUser(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	EmailAlreadyExists(ctx context.Context, email string) (bool, error)
	UsernameAlreadyExists(ctx context.Context, username string) (bool, error)
	ConfirmEmailRegistration(ctx context.Context, token string) (*ConfirmResult, error)
	// RecreateRegistrationToken returns nil, nil when the user is already
	// verified.
	RecreateRegistrationToken(ctx context.Context, token string) (*domain.EmailVerificationToken, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, claims *domain.Claims, deviceID string) error
	UpdatePassword(ctx context.Context, claims *domain.Claims, in UpdatePasswordInput) (*domain.User, error)
	RefreshJWT(ctx context.Context, refreshToken string) (*TokenPair, error)
	GeneratePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetToken, error)
	ResetPassword(ctx context.Context, in PasswordResetInput) (*domain.User, error)
}
