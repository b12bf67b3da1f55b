package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// accessClaims is the wire form of an access token.
type accessClaims struct {
	jwt.RegisteredClaims
	UserID      string `json:"id"`
	Email       string `json:"email,omitempty"`
	Authorities string `json:"authorities"`
}

// TokenCodec signs and verifies HS256 access tokens.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for subjectID carrying roles until expiresAt.
func (c *TokenCodec) Issue(subjectID, email string, roles []string, expiresAt time.Time) (string, error) {
	now := c.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:      subjectID,
		Email:       email,
		Authorities: domain.JoinRoles(roles),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiry. Every failure wraps
// domain.ErrInvalidToken; an expired token also wraps domain.ErrTokenExpired.
func (c *TokenCodec) Decode(token string) (*domain.Claims, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, domain.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	out := &domain.Claims{
		Subject: claims.Subject,
		UserID:  claims.UserID,
		Email:   claims.Email,
		Roles:   domain.SplitRoles(claims.Authorities),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
