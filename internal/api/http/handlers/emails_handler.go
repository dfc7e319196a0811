package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/api/dto"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/pipeline"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// EmailsHandler exposes the email pipeline's admin surface.
type EmailsHandler struct {
	processor *pipeline.Processor
	emails    repository.EmailSourceRepository
}

// NewEmailsHandler constructs handler.
func NewEmailsHandler(processor *pipeline.Processor, emails repository.EmailSourceRepository) *EmailsHandler {
	return &EmailsHandler{processor: processor, emails: emails}
}

// Fetch POST /emails/fetch triggers a manual pipeline run.
func (h *EmailsHandler) Fetch(c *fiber.Ctx) error {
	var req dto.FetchEmailsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	result, err := h.processor.Run(c.Context(), pipeline.RunOptions{
		AccessToken: req.AccessToken,
		DaysBack:    req.DaysBack,
		MaxCount:    req.MaxEmails,
		Folder:      req.Folder,
	})
	if err != nil {
		return err
	}
	if result.Failure != "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"data": result})
	}
	return c.JSON(fiber.Map{"data": result})
}

// Stats GET /emails/stats.
func (h *EmailsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.emails.Stats(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.EmailStatsResponse{
		Total:          stats.Total,
		Processed:      stats.Processed,
		SAPRelated:     stats.SAPRelated,
		TicketsCreated: stats.TicketsCreated,
		Errored:        stats.Errored,
	}})
}

// Recent GET /emails/recent.
func (h *EmailsHandler) Recent(c *fiber.Ctx) error {
	emails, err := h.emails.ListRecent(c.Context(), c.QueryInt("limit", 10))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": emailResponses(emails)})
}

// Unprocessed GET /emails/unprocessed.
func (h *EmailsHandler) Unprocessed(c *fiber.Ctx) error {
	emails, err := h.emails.ListUnprocessed(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": emailResponses(emails)})
}

// ByCategory GET /emails/by-category/:category.
func (h *EmailsHandler) ByCategory(c *fiber.Ctx) error {
	category := strings.ToUpper(c.Params("category"))
	if !domain.ValidCategory(domain.TicketCategory(category)) {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}
	emails, err := h.emails.ListByCategory(c.Context(), category,
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": emailResponses(emails)})
}

// Reprocess POST /emails/:id/reprocess.
func (h *EmailsHandler) Reprocess(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	email, err := h.processor.ReprocessEmail(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": emailResponse(email)})
}

func emailResponse(email *domain.EmailSource) dto.EmailSourceResponse {
	return dto.EmailSourceResponse{
		ID:               email.ID,
		MessageID:        email.MessageID,
		FromAddress:      email.FromAddress,
		Subject:          email.Subject,
		ReceivedAt:       email.ReceivedAt,
		ProcessedAt:      email.ProcessedAt,
		IsSAPRelated:     email.IsSAPRelated,
		DetectedCategory: email.DetectedCategory,
		TicketCreatedID:  email.TicketCreatedID,
		ErrorMessage:     email.ErrorMessage,
	}
}

func emailResponses(emails []domain.EmailSource) []dto.EmailSourceResponse {
	items := make([]dto.EmailSourceResponse, 0, len(emails))
	for i := range emails {
		items = append(items, emailResponse(&emails[i]))
	}
	return items
}
