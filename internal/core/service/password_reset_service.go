package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// PasswordResetService issues and claims password reset tokens.
type PasswordResetService struct {
	repo ports.PasswordResetRepository
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

func NewPasswordResetService(repo ports.PasswordResetRepository, ttl time.Duration, log zerolog.Logger) *PasswordResetService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PasswordResetService{repo: repo, ttl: ttl, now: time.Now, log: log}
}

// CreateToken issues a new reset token. Earlier tokens stay valid until one
// of them is claimed.
func (s *PasswordResetService) CreateToken(ctx context.Context, user *domain.User) (*domain.PasswordResetToken, error) {
	now := s.now().UTC()
	token := &domain.PasswordResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("save password reset token: %w", err)
	}
	return token, nil
}

func (s *PasswordResetService) FindByToken(ctx context.Context, value string) (*domain.PasswordResetToken, error) {
	return s.repo.FindByToken(ctx, value)
}

// VerifyExpiration rejects an expired token and deactivates it.
func (s *PasswordResetService) VerifyExpiration(ctx context.Context, token *domain.PasswordResetToken) error {
	if !token.Expired(s.now()) {
		return nil
	}
	if token.Active {
		if err := s.repo.Invalidate(ctx, token.ID); err != nil {
			s.log.Warn().Err(err).Str("reset_token_id", token.ID).Msg("failed to invalidate expired reset token")
		}
		token.Active = false
	}
	return fmt.Errorf("%w: expired token, please issue a new request", domain.ErrTokenExpired)
}

// GetValidToken resolves the token of a reset request and checks it can
// still be claimed.
func (s *PasswordResetService) GetValidToken(ctx context.Context, in ports.PasswordResetInput) (*domain.PasswordResetToken, error) {
	token, err := s.repo.FindByToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: password reset token not found", domain.ErrInvalidTokenRequest)
		}
		return nil, fmt.Errorf("find password reset token: %w", err)
	}
	if token.Claimed {
		return nil, fmt.Errorf("%w: token already used, please issue a new request", domain.ErrInvalidTokenRequest)
	}
	if !token.Active {
		return nil, fmt.Errorf("%w: token is no longer active, please issue a new request", domain.ErrInvalidTokenRequest)
	}
	if err := s.VerifyExpiration(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidTokenRequest, err)
	}
	return token, nil
}

// ClaimToken claims token and deactivates every other outstanding token of
// the same user. Both happen in one repository step: a claim that does not
// apply leaves the siblings usable, and of two concurrent claims for one user
// at most one succeeds.
func (s *PasswordResetService) ClaimToken(ctx context.Context, token *domain.PasswordResetToken) (*domain.PasswordResetToken, error) {
	claimed, n, err := s.repo.Claim(ctx, token.ID, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: token already used or superseded", domain.ErrInvalidTokenRequest)
		}
		return nil, fmt.Errorf("claim password reset token: %w", err)
	}

	s.log.Info().Str("user_id", claimed.UserID).Int64("invalidated", n).Msg("password reset token claimed")
	return claimed, nil
}
