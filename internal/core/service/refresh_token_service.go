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

// RefreshTokenService manages the lifecycle of per-device refresh tokens.
type RefreshTokenService struct {
	repo    ports.RefreshTokenRepository
	ttl     time.Duration
	maxUses int64
	now     func() time.Time
	log     zerolog.Logger
}

// NewRefreshTokenService builds the service. maxUses <= 0 disables the
// replay limit.
func NewRefreshTokenService(repo ports.RefreshTokenRepository, ttl time.Duration, maxUses int64, log zerolog.Logger) *RefreshTokenService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if maxUses < 0 {
		maxUses = 0
	}
	return &RefreshTokenService{repo: repo, ttl: ttl, maxUses: maxUses, now: time.Now, log: log}
}

// Create builds a fresh, unsaved refresh token.
func (s *RefreshTokenService) Create() *domain.RefreshToken {
	now := s.now().UTC()
	return &domain.RefreshToken{
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
}

// Save persists a token built by Create.
func (s *RefreshTokenService) Save(ctx context.Context, token *domain.RefreshToken) error {
	if err := s.repo.Create(ctx, token); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenService) FindByToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	return s.repo.FindByToken(ctx, value)
}

// VerifyExpiration deletes an expired token before rejecting it.
func (s *RefreshTokenService) VerifyExpiration(ctx context.Context, token *domain.RefreshToken) error {
	if !token.Expired(s.now()) {
		return nil
	}
	if err := s.repo.DeleteByID(ctx, token.ID); err != nil {
		s.log.Warn().Err(err).Str("refresh_token_id", token.ID).Msg("failed to delete expired refresh token")
	}
	return fmt.Errorf("%w: refresh token expired, please issue a new request", domain.ErrTokenExpired)
}

// IncreaseCount records one more use of the token. Once the configured
// maximum is reached further uses are denied.
func (s *RefreshTokenService) IncreaseCount(ctx context.Context, token *domain.RefreshToken) error {
	updated, err := s.repo.IncrementCount(ctx, token.ID, s.maxUses)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Str("refresh_token_id", token.ID).Int64("max_uses", s.maxUses).Msg("refresh token reuse limit reached")
			return fmt.Errorf("%w: refresh token use limit reached, please login again", domain.ErrTokenRefreshDenied)
		}
		return fmt.Errorf("increase refresh count: %w", err)
	}
	token.RefreshCount = updated.RefreshCount
	return nil
}

func (s *RefreshTokenService) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
