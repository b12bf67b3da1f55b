package domain

import "time"

// DeviceInfo is what the client reports about itself at login.
type DeviceInfo struct {
	DeviceID          string `json:"device_id"`
	DeviceType        string `json:"device_type"`
	NotificationToken string `json:"notification_token,omitempty"`
}

// UserDevice binds a (user, device) pair to its current refresh token.
type UserDevice struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	DeviceID          string    `json:"device_id"`
	DeviceType        string    `json:"device_type"`
	NotificationToken string    `json:"notification_token,omitempty"`
	RefreshTokenID    string    `json:"refresh_token_id"`
	RefreshActive     bool      `json:"refresh_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
