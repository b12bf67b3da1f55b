package domain

import "time"

// Claims is the decoded content of a bearer token.
type Claims struct {
	Subject   string
	UserID    string
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
