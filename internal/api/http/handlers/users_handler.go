package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/api/dto"
	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/service"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// UsersHandler exposes the user directory and profile endpoints.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// List GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.Context(),
		c.Query("search"),
		c.QueryInt("limit", 100),
		c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// UpdateProfile PATCH /users/me.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.service.UpdateProfile(c.Context(), principal.User.ID, req.Name, req.Department, req.AvatarURL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}
