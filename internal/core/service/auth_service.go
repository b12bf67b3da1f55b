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

const (
	tokenTypeBearer = "Bearer"

	msgAlreadyVerified = "User's email is already verified."
	msgVerified        = "User verified successfully!"
)

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users         ports.UserRepository
	Roles         ports.RoleRepository
	Hasher        ports.PasswordHasher
	Authenticator ports.Authenticator
	Codec         *TokenCodec
	Devices       *DeviceService
	RefreshTokens *RefreshTokenService
	Verifications *EmailVerificationService
	Resets        *PasswordResetService
	// Listener is optional.
	Listener ports.VerificationListener
}

// AuthService implements registration, verification, login, refresh and
// password flows.
type AuthService struct {
	deps      AuthDeps
	accessTTL time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewAuthService(deps AuthDeps, accessTTL time.Duration, log zerolog.Logger) *AuthService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &AuthService{deps: deps, accessTTL: accessTTL, now: time.Now, log: log}
}

func (s *AuthService) EmailAlreadyExists(ctx context.Context, email string) (bool, error) {
	return s.deps.Users.ExistsByEmail(ctx, email)
}

func (s *AuthService) UsernameAlreadyExists(ctx context.Context, username string) (bool, error) {
	return s.deps.Users.ExistsByUsername(ctx, username)
}

// RegisterUser creates an unverified account with the default roles and
// issues its email verification token.
func (s *AuthService) RegisterUser(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	exists, err := s.EmailAlreadyExists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		s.log.Error().Str("email", in.Email).Msg("email already exists")
		return nil, fmt.Errorf("%w: email address %s", domain.ErrAlreadyInUse, in.Email)
	}
	exists, err = s.UsernameAlreadyExists(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		s.log.Error().Str("username", in.Username).Msg("username already exists")
		return nil, fmt.Errorf("%w: username %s", domain.ErrAlreadyInUse, in.Username)
	}
	if in.Password != in.ConfirmPassword {
		s.log.Error().Str("email", in.Email).Msg("password and confirm password do not match")
		return nil, fmt.Errorf("%w: password and confirm password do not match", domain.ErrInvalidArgument)
	}

	roles, err := s.defaultRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("email", in.Email).Msg("registering new user")

	now := s.now().UTC()
	created, err := s.deps.Users.Create(ctx, &domain.User{
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Roles:     roles,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	token, err := s.deps.Verifications.CreateToken(ctx, created)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return &ports.RegisterResult{User: created.Sanitized(), VerificationToken: token}, nil
}

func (s *AuthService) defaultRoles(ctx context.Context) ([]string, error) {
	roles, err := s.deps.Roles.DefaultRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	if len(names) == 0 {
		names = append(names, domain.RoleUser)
	}
	return names, nil
}

// ConfirmEmailRegistration verifies the user owning token. Confirming an
// already verified user succeeds without touching the store.
func (s *AuthService) ConfirmEmailRegistration(ctx context.Context, value string) (*ports.ConfirmResult, error) {
	token, err := s.deps.Verifications.FindByToken(ctx, value)
	if err != nil {
		return nil, err
	}
	user, err := s.deps.Users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("confirm registration: %w", err)
	}

	if user.EmailVerified {
		s.log.Info().Str("user_id", user.ID).Msg("user already verified")
		return &ports.ConfirmResult{User: user.Sanitized(), Message: msgAlreadyVerified}, nil
	}

	if err := s.deps.Verifications.VerifyExpiration(token); err != nil {
		return nil, err
	}
	if err := s.deps.Verifications.Confirm(ctx, token); err != nil {
		return nil, err
	}

	user.MarkVerificationConfirmed()
	user.UpdatedAt = s.now().UTC()
	if err := s.deps.Users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("confirm registration: %w", err)
	}

	if s.deps.Listener != nil {
		if err := s.deps.Listener.OnEmailVerified(ctx, user); err != nil {
			return nil, fmt.Errorf("confirm registration: %w", err)
		}
	}

	s.log.Info().Str("user_id", user.ID).Msg("user email verified")
	return &ports.ConfirmResult{User: user.Sanitized(), Message: msgVerified}, nil
}

// RecreateRegistrationToken refreshes a pending verification token. It
// returns nil when the user is already verified.
func (s *AuthService) RecreateRegistrationToken(ctx context.Context, value string) (*domain.EmailVerificationToken, error) {
	token, err := s.deps.Verifications.FindByToken(ctx, value)
	if err != nil {
		return nil, err
	}
	user, err := s.deps.Users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("recreate registration token: %w", err)
	}
	if user.EmailVerified {
		return nil, nil
	}
	return s.deps.Verifications.UpdateExistingTokenWithNameAndExpiry(ctx, token)
}

// Login authenticates the credentials, rotates the device's refresh token
// and issues an access token.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	if in.Device.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", domain.ErrInvalidArgument)
	}
	user, err := s.deps.Authenticator.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	refresh, err := s.deps.Devices.IssueSession(ctx, user.ID, in.Device)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	access, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("device_id", in.Device.DeviceID).Msg("user logged in")
	return &ports.LoginResult{
		TokenPair: ports.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh.Token,
			TokenType:    tokenTypeBearer,
			ExpiresIn:    s.accessTTL,
		},
		User: user.Sanitized(),
	}, nil
}

// Logout ends the session of one device of the authenticated user.
func (s *AuthService) Logout(ctx context.Context, claims *domain.Claims, deviceID string) error {
	if claims == nil {
		return domain.ErrUnauthenticated
	}
	if err := s.deps.Devices.EndSession(ctx, claims.UserID, deviceID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Str("user_id", claims.UserID).Str("device_id", deviceID).Msg("user logged out")
	return nil
}

// UpdatePassword changes the password of the authenticated user after
// checking the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, claims *domain.Claims, in ports.UpdatePasswordInput) (*domain.User, error) {
	if claims == nil {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.deps.Users.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no matching user found for %s", domain.ErrUpdatePassword, claims.Email)
		}
		return nil, fmt.Errorf("update password: %w", err)
	}

	if !s.deps.Hasher.Matches(in.OldPassword, user.Password) {
		s.log.Info().Str("user_id", user.ID).Msg("current password is invalid")
		return nil, fmt.Errorf("%w: invalid current password", domain.ErrUpdatePassword)
	}

	hash, err := s.deps.Hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, err
	}
	user.Password = hash
	user.UpdatedAt = s.now().UTC()
	if err := s.deps.Users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	return user.Sanitized(), nil
}

// RefreshJWT exchanges a refresh token for a new access token. The token
// must be unexpired, still bound to its device and under its use limit.
func (s *AuthService) RefreshJWT(ctx context.Context, value string) (*ports.TokenPair, error) {
	token, err := s.deps.RefreshTokens.FindByToken(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: missing refresh token in database, please login again", domain.ErrTokenRefresh)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if err := s.deps.RefreshTokens.VerifyExpiration(ctx, token); err != nil {
		return nil, err
	}
	if err := s.deps.Devices.VerifyRefreshAvailability(ctx, token); err != nil {
		return nil, err
	}
	if err := s.deps.RefreshTokens.IncreaseCount(ctx, token); err != nil {
		return nil, err
	}

	user, err := s.deps.Users.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: owner of refresh token no longer exists", domain.ErrTokenRefresh)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	access, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{
		AccessToken:  access,
		RefreshToken: token.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    s.accessTTL,
	}, nil
}

// GeneratePasswordResetToken issues a reset token for the account of email.
func (s *AuthService) GeneratePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	user, err := s.deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no matching user found for the given request", domain.ErrPasswordResetLink)
		}
		return nil, fmt.Errorf("password reset link: %w", err)
	}
	return s.deps.Resets.CreateToken(ctx, user)
}

// ResetPassword sets a new password using a reset token. Claiming the token
// invalidates every other reset token the user holds.
func (s *AuthService) ResetPassword(ctx context.Context, in ports.PasswordResetInput) (*domain.User, error) {
	token, err := s.deps.Resets.GetValidToken(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, fmt.Errorf("%w: password and confirm password do not match", domain.ErrInvalidArgument)
	}

	hash, err := s.deps.Hasher.Hash(in.ConfirmPassword)
	if err != nil {
		return nil, err
	}

	claimed, err := s.deps.Resets.ClaimToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.deps.Users.FindByID(ctx, claimed.UserID)
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	user.Password = hash
	user.UpdatedAt = s.now().UTC()
	if err := s.deps.Users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return user.Sanitized(), nil
}

func (s *AuthService) issueAccessToken(user *domain.User) (string, error) {
	token, err := s.deps.Codec.Issue(user.ID, user.Email, user.Roles, s.now().Add(s.accessTTL))
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return token, nil
}
