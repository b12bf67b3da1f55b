package ports

import (
	"context"
	"time"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// RefreshTokenRepository stores refresh tokens. Misses return domain.ErrNotFound.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, value string) (*domain.RefreshToken, error)
	// IncrementCount atomically bumps the use counter and returns the updated
	// token. When maxUses > 0 the increment only applies while the counter is
	// below maxUses; otherwise domain.ErrNotFound is returned.
	IncrementCount(ctx context.Context, id string, maxUses int64) (*domain.RefreshToken, error)
	// DeleteByID is idempotent.
	DeleteByID(ctx context.Context, id string) error
}

// UserDeviceRepository stores the (user, device) → refresh token binding.
type UserDeviceRepository interface {
	FindByUserAndDevice(ctx context.Context, userID, deviceID string) (*domain.UserDevice, error)
	FindByRefreshTokenID(ctx context.Context, tokenID string) (*domain.UserDevice, error)
	// Bind upserts the device row keyed on (UserID, DeviceID) and points it at
	// device.RefreshTokenID in one atomic step. It returns the refresh token id
	// the row referenced before, or "" for a new device.
	Bind(ctx context.Context, device *domain.UserDevice) (string, error)
	// Deactivate clears the refresh binding of a device.
	Deactivate(ctx context.Context, userID, deviceID string) error
}

// EmailVerificationRepository stores one verification token per user.
type EmailVerificationRepository interface {
	// Save replaces whatever token the user had before.
	Save(ctx context.Context, token *domain.EmailVerificationToken) error
	FindByToken(ctx context.Context, value string) (*domain.EmailVerificationToken, error)
	// Regenerate swaps value and expiry of a PENDING token. Confirmed or
	// missing tokens return domain.ErrNotFound.
	Regenerate(ctx context.Context, id, value string, expiresAt time.Time) (*domain.EmailVerificationToken, error)
	Confirm(ctx context.Context, id string) error
}

// PasswordResetRepository stores password reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	FindByToken(ctx context.Context, value string) (*domain.PasswordResetToken, error)
	// Claim marks the token claimed only if it is still active, unclaimed and
	// unexpired at now, and in the same atomic step deactivates every other
	// active, unclaimed token of its owner. It returns the claimed token and
	// the number of siblings deactivated. When the claim does not apply,
	// domain.ErrNotFound is returned and nothing is modified.
	Claim(ctx context.Context, id string, now time.Time) (*domain.PasswordResetToken, int64, error)
	Invalidate(ctx context.Context, id string) error
}
