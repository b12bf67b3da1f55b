package domain

import "time"

// TokenStatus is the lifecycle state of an email verification token.
type TokenStatus string

const (
	TokenStatusPending   TokenStatus = "PENDING"
	TokenStatusConfirmed TokenStatus = "CONFIRMED"
)

// RefreshToken is the long-lived opaque credential bound to one device.
type RefreshToken struct {
	ID           string    `json:"id"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshCount int64     `json:"refresh_count"`
	DeviceID     string    `json:"device_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the token is no longer usable at now.
// A refresh token is dead at the exact expiry instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// EmailVerificationToken confirms ownership of a registered email address.
// There is at most one per user.
type EmailVerificationToken struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	UserID    string      `json:"user_id"`
	ExpiresAt time.Time   `json:"expires_at"`
	Status    TokenStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (t *EmailVerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *EmailVerificationToken) Confirmed() bool {
	return t.Status == TokenStatusConfirmed
}

// PasswordResetToken authorises a single password reset. A user may hold
// several at once; claiming one deactivates the rest.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Claimed   bool      `json:"claimed"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Usable reports whether the token can still be claimed at now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.Active && !t.Claimed && !t.Expired(now)
}
