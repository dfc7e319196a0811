package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/api/dto"
	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/service"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// AdminHandler exposes user administration endpoints.
type AdminHandler struct {
	service *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{service: adminService}
}

// ListAdmins GET /admin/users/admins.
func (h *AdminHandler) ListAdmins(c *fiber.Ctx) error {
	admins, err := h.service.ListAdmins(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(admins))
	for i := range admins {
		items = append(items, userResponse(&admins[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SetAdmin PUT /admin/users/:id/admin.
func (h *AdminHandler) SetAdmin(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SetAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.SetAdminStatus(c.Context(), principal.User, id, req.IsAdmin, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// SetActive PUT /admin/users/:id/active.
func (h *AdminHandler) SetActive(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SetActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.SetActiveStatus(c.Context(), principal.User, id, req.IsActive, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// AuditLogs GET /admin/audit-logs.
func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	logs, err := h.service.AuditLogs(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.AuditLogResponse, 0, len(logs))
	for i := range logs {
		items = append(items, dto.AuditLogResponse{
			ID:           logs[i].ID,
			AdminID:      logs[i].AdminID,
			Action:       logs[i].Action,
			TargetUserID: logs[i].TargetUserID,
			Details:      logs[i].Details,
			CreatedAt:    logs[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func requestMeta(c *fiber.Ctx) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}
