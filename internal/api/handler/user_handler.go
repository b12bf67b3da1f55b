package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/ports"
)

// UserHandler serves the authenticated /api/user routes.
type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type logoutRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
}

type meResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// UpdatePassword changes the caller's password.
//
// @Summary      Update the password
// @Tags         user
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      updatePasswordRequest  true  "Current and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/user/password/update [post]
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req updatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdatePassword(c.Request().Context(), claims, ports.UpdatePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password changed successfully", User: user})
}

// Logout ends the session of one of the caller's devices.
//
// @Summary      Logout a device
// @Tags         user
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      logoutRequest  true  "Device to log out"
// @Success      200   {object}  messageResponse
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/user/logout [post]
func (h *UserHandler) Logout(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req logoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), claims, req.DeviceID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Log out successful"})
}

// Me returns the identity carried by the caller's access token.
//
// @Summary      Current user
// @Tags         user
// @Security     BearerAuth
// @Produce      json
// @Param        currentUser  query     string  false  "Must equal the caller's id when given"
// @Success      200          {object}  meResponse
// @Failure      401          {object}  map[string]string
// @Failure      403          {object}  map[string]string
// @Router       /api/user/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{ID: claims.UserID, Email: claims.Email, Roles: claims.Roles})
}
