package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/service"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// AnalyticsHandler exposes reporting endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: analyticsService}
}

// Dashboard GET /analytics/dashboard.
func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.service.Dashboard(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Full GET /analytics.
func (h *AnalyticsHandler) Full(c *fiber.Ctx) error {
	analytics, err := h.service.Full(c.Context(), c.QueryInt("days", 30))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": analytics})
}

// Me GET /analytics/me.
func (h *AnalyticsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	stats, err := h.service.ForUser(c.Context(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// ForUser GET /analytics/users/:id.
func (h *AnalyticsHandler) ForUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.service.ForUser(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Categories GET /analytics/categories.
func (h *AnalyticsHandler) Categories(c *fiber.Ctx) error {
	summary, err := h.service.Categories(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
