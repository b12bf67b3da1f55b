package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	tokenKindEmail = "email_verification"
	tokenKindReset = "password_reset"
)

// AuthHandler serves the public /api/auth routes.
type AuthHandler struct {
	authService ports.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

type registerRequest struct {
	Email           string `json:"email"            validate:"required,email"`
	Username        string `json:"username"         validate:"required,min=3"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"         validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type deviceInfoRequest struct {
	DeviceID          string `json:"device_id"          validate:"required"`
	DeviceType        string `json:"device_type"        validate:"required"`
	NotificationToken string `json:"notification_token"`
}

type loginRequest struct {
	Email      string            `json:"email"       validate:"required,email"`
	Password   string            `json:"password"    validate:"required"`
	DeviceInfo deviceInfoRequest `json:"device_info"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type resetLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetRequest struct {
	Token           string `json:"token"            validate:"required"`
	Password        string `json:"password"         validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type messageResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *domain.User `json:"user,omitempty"`
}

type jwtResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiryDuration is the access token lifetime in milliseconds.
	ExpiryDuration int64        `json:"expiry_duration"`
	User           *domain.User `json:"user,omitempty"`
}

func newJWTResponse(pair ports.TokenPair, user *domain.User) jwtResponse {
	return jwtResponse{
		AccessToken:    pair.AccessToken,
		RefreshToken:   pair.RefreshToken,
		TokenType:      pair.TokenType,
		ExpiryDuration: pair.ExpiresIn.Milliseconds(),
		User:           user,
	}
}

// Register creates a new unverified account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.RegisterUser(c.Request().Context(), ports.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	metrics.TokenEventsTotal.WithLabelValues(tokenKindEmail, "issued").Inc()
	h.logTokenLink(tokenKindEmail, res.User.Email, "/api/auth/registrationConfirmation?token="+res.VerificationToken.Token)

	return c.JSON(http.StatusCreated, messageResponse{
		Success: true,
		Message: "User registered successfully. Check your email for verification",
		User:    res.User,
	})
}

// ConfirmRegistration verifies the email address owning token.
//
// @Summary      Confirm a registration
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Email verification token"
// @Success      200    {object}  messageResponse
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/auth/registrationConfirmation [get]
func (h *AuthHandler) ConfirmRegistration(c echo.Context) error {
	token, err := requiredQuery(c, "token")
	if err != nil {
		return err
	}

	res, err := h.authService.ConfirmEmailRegistration(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			metrics.TokenEventsTotal.WithLabelValues(tokenKindEmail, "rejected").Inc()
		}
		return err
	}

	metrics.TokenEventsTotal.WithLabelValues(tokenKindEmail, "confirmed").Inc()
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: res.Message, User: res.User})
}

// ResendRegistrationToken regenerates a pending verification token.
//
// @Summary      Resend the registration token
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Existing email verification token"
// @Success      200    {object}  messageResponse
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/auth/token/resend [get]
func (h *AuthHandler) ResendRegistrationToken(c echo.Context) error {
	token, err := requiredQuery(c, "token")
	if err != nil {
		return err
	}

	fresh, err := h.authService.RecreateRegistrationToken(c.Request().Context(), token)
	if err != nil {
		return err
	}
	if fresh == nil {
		return c.JSON(http.StatusOK, messageResponse{
			Success: true,
			Message: "User is already registered. No need to re-generate token",
		})
	}

	metrics.TokenEventsTotal.WithLabelValues(tokenKindEmail, "reissued").Inc()
	h.logTokenLink(tokenKindEmail, fresh.UserID, "/api/auth/registrationConfirmation?token="+fresh.Token)

	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Email verification resent successfully"})
}

// Login authenticates the user and opens a session on the given device.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials and device"
// @Success      200   {object}  jwtResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device: domain.DeviceInfo{
			DeviceID:          req.DeviceInfo.DeviceID,
			DeviceType:        req.DeviceInfo.DeviceType,
			NotificationToken: req.DeviceInfo.NotificationToken,
		},
	})
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginFailureReason(err)).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return c.JSON(http.StatusOK, newJWTResponse(res.TokenPair, res.User))
}

// Refresh exchanges a refresh token for a new access token.
//
// @Summary      Refresh the access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  jwtResponse
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := h.authService.RefreshJWT(c.Request().Context(), req.RefreshToken)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(refreshFailureReason(err)).Inc()
		return err
	}

	metrics.RefreshesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return c.JSON(http.StatusOK, newJWTResponse(*pair, nil))
}

// ResetLink issues a password reset token for an email address.
//
// @Summary      Request a password reset link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetLinkRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      404   {object}  map[string]string
// @Router       /api/auth/password/resetlink [post]
func (h *AuthHandler) ResetLink(c echo.Context) error {
	var req resetLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := h.authService.GeneratePasswordResetToken(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}

	metrics.TokenEventsTotal.WithLabelValues(tokenKindReset, "issued").Inc()
	h.logTokenLink(tokenKindReset, req.Email, "/api/auth/password/reset?token="+token.Token)

	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password reset link sent successfully"})
}

// ResetPassword sets a new password using a reset token.
//
// @Summary      Reset the password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      passwordResetRequest  true  "Reset token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req passwordResetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.ResetPassword(c.Request().Context(), ports.PasswordResetInput{
		Token:           req.Token,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTokenRequest) {
			metrics.TokenEventsTotal.WithLabelValues(tokenKindReset, "rejected").Inc()
		}
		return err
	}

	metrics.TokenEventsTotal.WithLabelValues(tokenKindReset, "claimed").Inc()
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password changed successfully", User: user})
}

// logTokenLink stands in for email delivery.
func (h *AuthHandler) logTokenLink(kind, recipient, link string) {
	h.log.Debug().Str("kind", kind).Str("recipient", recipient).Str("link", link).Msg("token link issued")
}

func loginFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, domain.ErrAccountLocked):
		return "account_locked"
	default:
		return metrics.ResultFailure
	}
}

func refreshFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenRefreshDenied):
		return "denied"
	default:
		return metrics.ResultFailure
	}
}
