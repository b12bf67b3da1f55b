package domain

import "time"

// User is the account of record. Password holds the bcrypt hash and is
// never serialised.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Password      string    `json:"-"`
	Roles         []string  `json:"roles"`
	EmailVerified bool      `json:"email_verified"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarkVerificationConfirmed flags the email address as verified.
func (u *User) MarkVerificationConfirmed() {
	u.EmailVerified = true
}

// Sanitized returns a copy safe to hand back to callers.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Password = ""
	clone.Roles = append([]string(nil), u.Roles...)
	return &clone
}
