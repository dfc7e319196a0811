package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/api/dto"
	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
	"github.com/sapdesk/sapdesk/internal/service"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.Context(), principal.User, service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, total, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}})
}

// Get GET /tickets/:id. Accepts either a numeric ID or a T-xxx number.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.resolveTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Update PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Update(c.Context(), principal.User, id, service.UpdateTicketInput{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		Category:      req.Category,
		AssignedTo:    req.AssignedTo,
		ClearAssignee: req.ClearAssignee,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Delete DELETE /tickets/:id. Admin only, enforced by route guard.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddComment(c.Context(), principal.User, id, req.Content, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.Context(), principal.User, id)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateComment PATCH /tickets/comments/:commentId.
func (h *TicketsHandler) UpdateComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return err
	}
	var req dto.UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.UpdateComment(c.Context(), principal.User, commentID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": commentResponse(comment)})
}

// DeleteComment DELETE /tickets/comments/:commentId.
func (h *TicketsHandler) DeleteComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return err
	}
	if err := h.service.DeleteComment(c.Context(), principal.User, commentID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddAttachment POST /tickets/:id/attachments.
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	attachment, err := h.service.AddAttachment(c.Context(), principal.User, id, service.AttachmentInput{
		FileName:         req.FileName,
		OriginalFileName: req.OriginalFileName,
		FileType:         req.FileType,
		SizeBytes:        req.SizeBytes,
		StorageKey:       req.StorageKey,
		StorageURL:       req.StorageURL,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(attachment)})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *TicketsHandler) ListAttachments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	attachments, err := h.service.ListAttachments(c.Context(), id)
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteAttachment DELETE /tickets/attachments/:attachmentId.
func (h *TicketsHandler) DeleteAttachment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	attachmentID, err := parseID(c, "attachmentId")
	if err != nil {
		return err
	}
	if err := h.service.DeleteAttachment(c.Context(), principal.User, attachmentID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Logs GET /tickets/:id/logs.
func (h *TicketsHandler) Logs(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	logs, err := h.service.Logs(c.Context(), id)
	if err != nil {
		return err
	}
	items := make([]dto.TicketLogResponse, 0, len(logs))
	for i := range logs {
		items = append(items, dto.TicketLogResponse{
			ID:        logs[i].ID,
			TicketID:  logs[i].TicketID,
			UserID:    logs[i].UserID,
			LogType:   logs[i].LogType,
			Action:    logs[i].Action,
			OldValue:  logs[i].OldValue,
			NewValue:  logs[i].NewValue,
			Metadata:  logs[i].Metadata,
			CreatedAt: logs[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *TicketsHandler) resolveTicket(c *fiber.Ctx) (*domain.Ticket, error) {
	raw := c.Params("id")
	if strings.HasPrefix(strings.ToUpper(raw), "T-") {
		return h.service.GetByNumber(c.Context(), raw)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": raw})
	}
	return h.service.Get(c.Context(), id)
}

func parseID(c *fiber.Ctx, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid id", map[string]any{param: c.Params(param)})
	}
	return id, nil
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{
		Limit:     c.QueryInt("limit", 20),
		Offset:    c.QueryInt("offset", 0),
		OrderBy:   c.Query("order_by", "created_at"),
		OrderDesc: c.Query("order", "desc") != "asc",
	}
	if v := c.Query("status"); v != "" {
		status := domain.TicketStatus(v)
		filter.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.TicketPriority(v)
		filter.Priority = &priority
	}
	if v := c.Query("category"); v != "" {
		category := domain.TicketCategory(strings.ToUpper(v))
		filter.Category = &category
	}
	if v := c.Query("created_by"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.CreatedBy = &id
		}
	}
	if v := c.Query("assigned_to"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.AssignedTo = &id
		}
	}
	if v := c.Query("search"); v != "" {
		filter.SearchTerm = &v
	}
	return filter
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         t.ID,
		Number:     t.Number,
		Title:      t.Title,
		Status:     t.Status,
		Priority:   t.Priority,
		Category:   t.Category,
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
		SLADueDate: t.SLADueDate,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func ticketDetail(t *domain.Ticket) dto.TicketDetail {
	return dto.TicketDetail{
		TicketSummary:      ticketSummary(t),
		Description:        t.Description,
		SourceEmailID:      t.SourceEmailID,
		SourceEmailFrom:    t.SourceEmailFrom,
		SourceEmailSubject: t.SourceEmailSubject,
		LLMConfidence:      t.LLMConfidence,
		ResolutionMinutes:  t.ResolutionMinutes,
		ResolvedAt:         t.ResolvedAt,
	}
}

func attachmentResponse(attachment *domain.Attachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:               attachment.ID,
		TicketID:         attachment.TicketID,
		FileName:         attachment.FileName,
		OriginalFileName: attachment.OriginalFileName,
		FileType:         attachment.FileType,
		SizeBytes:        attachment.SizeBytes,
		StorageURL:       attachment.StorageURL,
		UploadedBy:       attachment.UploadedBy,
		CreatedAt:        attachment.CreatedAt,
	}
}

func commentResponse(comment *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		TicketID:   comment.TicketID,
		AuthorID:   comment.AuthorID,
		Content:    comment.Content,
		IsInternal: comment.IsInternal,
		IsEdited:   comment.IsEdited,
		EditedAt:   comment.EditedAt,
		CreatedAt:  comment.CreatedAt,
	}
}
