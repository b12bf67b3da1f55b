package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// DeviceService keeps at most one live refresh token per (user, device).
type DeviceService struct {
	repo   ports.UserDeviceRepository
	tokens *RefreshTokenService
	now    func() time.Time
	log    zerolog.Logger
}

func NewDeviceService(repo ports.UserDeviceRepository, tokens *RefreshTokenService, log zerolog.Logger) *DeviceService {
	return &DeviceService{repo: repo, tokens: tokens, now: time.Now, log: log}
}

// FindDeviceByUserID returns the device row, or nil when the device is new.
func (s *DeviceService) FindDeviceByUserID(ctx context.Context, userID, deviceID string) (*domain.UserDevice, error) {
	device, err := s.repo.FindByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find device: %w", err)
	}
	return device, nil
}

// CreateUserDevice builds an unsaved device row from what the client reported.
func (s *DeviceService) CreateUserDevice(info domain.DeviceInfo) *domain.UserDevice {
	now := s.now().UTC()
	return &domain.UserDevice{
		DeviceID:          info.DeviceID,
		DeviceType:        info.DeviceType,
		NotificationToken: info.NotificationToken,
		RefreshActive:     true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// VerifyRefreshAvailability rejects a token its device no longer points at.
func (s *DeviceService) VerifyRefreshAvailability(ctx context.Context, token *domain.RefreshToken) error {
	device, err := s.repo.FindByRefreshTokenID(ctx, token.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: no device found for the matching token, please login again", domain.ErrTokenRefreshDenied)
		}
		return fmt.Errorf("verify refresh availability: %w", err)
	}
	if device.RefreshTokenID != token.ID || !device.RefreshActive {
		return fmt.Errorf("%w: refresh blocked for the device, please login through a different device", domain.ErrTokenRefreshDenied)
	}
	token.DeviceID = device.DeviceID
	token.UserID = device.UserID
	return nil
}

// IssueSession replaces the refresh token of the user's device with a new
// one. The previous token is deleted before the new one is created, and any
// token a concurrent login bound in between is deleted after the swap.
func (s *DeviceService) IssueSession(ctx context.Context, userID string, info domain.DeviceInfo) (*domain.RefreshToken, error) {
	existing, err := s.FindDeviceByUserID(ctx, userID, info.DeviceID)
	if err != nil {
		return nil, err
	}
	var deleted string
	if existing != nil && existing.RefreshTokenID != "" {
		if err := s.tokens.DeleteByID(ctx, existing.RefreshTokenID); err != nil {
			return nil, err
		}
		deleted = existing.RefreshTokenID
	}

	device := s.CreateUserDevice(info)
	device.UserID = userID

	token := s.tokens.Create()
	token.DeviceID = info.DeviceID
	token.UserID = userID
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, err
	}

	device.RefreshTokenID = token.ID
	previous, err := s.repo.Bind(ctx, device)
	if err != nil {
		_ = s.tokens.DeleteByID(ctx, token.ID)
		return nil, fmt.Errorf("bind device: %w", err)
	}
	if previous != "" && previous != deleted && previous != token.ID {
		if err := s.tokens.DeleteByID(ctx, previous); err != nil {
			s.log.Warn().Err(err).Str("refresh_token_id", previous).Msg("failed to delete superseded refresh token")
		}
	}

	return token, nil
}

// EndSession drops the device's refresh token and disables refresh for it.
func (s *DeviceService) EndSession(ctx context.Context, userID, deviceID string) error {
	device, err := s.FindDeviceByUserID(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	if err := s.tokens.DeleteByID(ctx, device.RefreshTokenID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, userID, deviceID); err != nil {
		return fmt.Errorf("deactivate device: %w", err)
	}
	return nil
}
