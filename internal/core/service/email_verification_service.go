package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// EmailVerificationService issues and confirms email verification tokens.
type EmailVerificationService struct {
	repo ports.EmailVerificationRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewEmailVerificationService(repo ports.EmailVerificationRepository, ttl time.Duration) *EmailVerificationService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmailVerificationService{repo: repo, ttl: ttl, now: time.Now}
}

// CreateToken issues a pending token for user, replacing any earlier one.
func (s *EmailVerificationService) CreateToken(ctx context.Context, user *domain.User) (*domain.EmailVerificationToken, error) {
	now := s.now().UTC()
	token := &domain.EmailVerificationToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		Status:    domain.TokenStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("save email verification token: %w", err)
	}
	return token, nil
}

// FindByToken returns domain.ErrNotFound for unknown values.
func (s *EmailVerificationService) FindByToken(ctx context.Context, value string) (*domain.EmailVerificationToken, error) {
	token, err := s.repo.FindByToken(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: email verification token %q", domain.ErrNotFound, value)
		}
		return nil, fmt.Errorf("find email verification token: %w", err)
	}
	return token, nil
}

// VerifyExpiration rejects a token past its expiry. The token stays in
// place so it can be regenerated.
func (s *EmailVerificationService) VerifyExpiration(token *domain.EmailVerificationToken) error {
	if token.Expired(s.now()) {
		return fmt.Errorf("%w: expired token, please issue a new request", domain.ErrTokenExpired)
	}
	return nil
}

// UpdateExistingTokenWithNameAndExpiry regenerates value and expiry of a
// pending token in place.
func (s *EmailVerificationService) UpdateExistingTokenWithNameAndExpiry(ctx context.Context, token *domain.EmailVerificationToken) (*domain.EmailVerificationToken, error) {
	if token.Confirmed() {
		return nil, fmt.Errorf("%w: token already confirmed", domain.ErrInvalidTokenRequest)
	}
	updated, err := s.repo.Regenerate(ctx, token.ID, uuid.NewString(), s.now().UTC().Add(s.ttl))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: token already confirmed", domain.ErrInvalidTokenRequest)
		}
		return nil, fmt.Errorf("regenerate email verification token: %w", err)
	}
	return updated, nil
}

// Confirm marks the token used. Confirmed tokens are never changed again.
func (s *EmailVerificationService) Confirm(ctx context.Context, token *domain.EmailVerificationToken) error {
	if err := s.repo.Confirm(ctx, token.ID); err != nil {
		return fmt.Errorf("confirm email verification token: %w", err)
	}
	token.Status = domain.TokenStatusConfirmed
	return nil
}
