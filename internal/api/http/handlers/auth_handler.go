package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/api/dto"
	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/service"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// AuthHandler manages the Azure SSO exchange and session introspection.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// AzureLogin POST /auth/azure/login.
func (h *AuthHandler) AzureLogin(c *fiber.Ctx) error {
	var req dto.AzureLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return apperrors.NewValidationError("access_token required", nil)
	}

	session, err := h.service.AzureLogin(c.Context(), req.AccessToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      userResponse(session.User),
	}})
}

// Me GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(fiber.Map{"data": userResponse(principal.User)})
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Department: user.Department,
		AvatarURL:  user.AvatarURL,
		IsActive:   user.IsActive,
		IsAdmin:    user.IsAdmin,
		LastLogin:  user.LastLogin,
		CreatedAt:  user.CreatedAt,
	}
}
