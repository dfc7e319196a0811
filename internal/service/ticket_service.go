package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/classifier"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/events"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// CreateTicketInput carries fields for a user-created ticket.
type CreateTicketInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	AssignedTo  *int64
}

// UpdateTicketInput carries optional mutations; nil fields are untouched.
type UpdateTicketInput struct {
	Title         *string
	Description   *string
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	Category      *domain.TicketCategory
	AssignedTo    *int64
	ClearAssignee bool
}

// TicketService implements ticket lifecycle operations.
type TicketService struct {
	tickets     repository.TicketRepository
	logs        repository.TicketLogRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(
	tickets repository.TicketRepository,
	logs repository.TicketLogRepository,
	comments repository.CommentRepository,
	attachments repository.AttachmentRepository,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		tickets:     tickets,
		logs:        logs,
		comments:    comments,
		attachments: attachments,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// slaWindow returns how long a ticket of the given priority may stay open.
func slaWindow(p domain.TicketPriority) time.Duration {
	switch p {
	case domain.TicketPriorityCritical:
		return 4 * time.Hour
	case domain.TicketPriorityHigh:
		return 8 * time.Hour
	case domain.TicketPriorityLow:
		return 72 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Create opens a new ticket on behalf of the actor. The ticket and its
// creation log entry are written atomically.
func (s *TicketService) Create(ctx context.Context, actor *domain.User, input CreateTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if input.Category == "" {
		input.Category = domain.CategoryOther
	}
	if !domain.ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	slaDue := s.now().UTC().Add(slaWindow(input.Priority))
	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Category:    input.Category,
		CreatedBy:   actor.ID,
		AssignedTo:  input.AssignedTo,
		SLADueDate:  &slaDue,
	}

	creationLogs := []domain.TicketLog{{
		UserID:  actor.ID,
		LogType: domain.LogTypeCreated,
		Action:  "Ticket created",
	}}
	if err := s.tickets.CreateWithLogs(ctx, ticket, creationLogs); err != nil {
		return nil, apperrors.MapError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   &actor.ID,
		Timestamp: s.now().UTC(),
		Payload: events.TicketCreatedPayload{
			Number:   ticket.Number,
			Title:    ticket.Title,
			Priority: ticket.Priority,
			Category: ticket.Category,
		},
	})

	s.logger.Info("ticket created",
		zap.String("number", ticket.Number),
		zap.Int64("created_by", actor.ID))
	return ticket, nil
}

// CreateFromEmail opens a ticket from a classified inbound email on behalf of
// the pipeline's system actor. Missing classifier fields fall back to the
// email subject, Medium priority and the OTHER category.
func (s *TicketService) CreateFromEmail(ctx context.Context, systemUserID int64, email *domain.EmailSource, verdict *classifier.Result) (*domain.Ticket, error) {
	title := strings.TrimSpace(verdict.SuggestedTitle)
	if title == "" {
		title = strings.TrimSpace(email.Subject)
	}
	if title == "" {
		title = "Email from " + email.FromAddress
	}

	priority := domain.TicketPriority(verdict.SuggestedPriority)
	if !domain.ValidPriority(priority) {
		priority = domain.TicketPriorityMedium
	}
	category := domain.TicketCategory(verdict.Category)
	if !domain.ValidCategory(category) {
		category = domain.CategoryOther
	}

	description := ""
	if email.BodyText != nil {
		description = *email.BodyText
	}
	if len(verdict.KeyPoints) > 0 {
		description = "Key points:\n- " + strings.Join(verdict.KeyPoints, "\n- ") + "\n\n" + description
	}

	confidence := verdict.Confidence
	slaDue := s.now().UTC().Add(slaWindow(priority))
	ticket := &domain.Ticket{
		Title:              title,
		Description:        description,
		Status:             domain.TicketStatusOpen,
		Priority:           priority,
		Category:           category,
		CreatedBy:          systemUserID,
		SourceEmailID:      &email.MessageID,
		SourceEmailFrom:    &email.FromAddress,
		SourceEmailSubject: &email.Subject,
		LLMConfidence:      &confidence,
		LLMRawResponse:     verdict.Raw,
		SLADueDate:         &slaDue,
	}

	from := email.FromAddress
	creationLogs := []domain.TicketLog{
		{
			UserID:  systemUserID,
			LogType: domain.LogTypeCreated,
			Action:  "Ticket auto-created from email",
		},
		{
			UserID:   systemUserID,
			LogType:  domain.LogTypeEmailReceived,
			Action:   "Email received",
			NewValue: &from,
			Metadata: map[string]any{"message_id": email.MessageID, "subject": email.Subject},
		},
		{
			UserID:  systemUserID,
			LogType: domain.LogTypeAutoClassified,
			Action:  fmt.Sprintf("Classified as %s with confidence %.2f", category, confidence),
			Metadata: map[string]any{
				"category":   string(category),
				"confidence": confidence,
				"priority":   string(priority),
			},
		},
	}
	if err := s.tickets.CreateWithLogs(ctx, ticket, creationLogs); err != nil {
		return nil, apperrors.MapError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketAutoCreated,
		TicketID:  ticket.ID,
		Timestamp: s.now().UTC(),
		Payload: events.TicketAutoCreatedPayload{
			Number:     ticket.Number,
			Title:      ticket.Title,
			FromEmail:  email.FromAddress,
			Confidence: confidence,
		},
	})

	s.logger.Info("ticket auto-created from email",
		zap.String("number", ticket.Number),
		zap.String("from", email.FromAddress),
		zap.Float64("confidence", confidence))
	return ticket, nil
}

// Get returns a ticket by numeric ID.
func (s *TicketService) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetByNumber returns a ticket by its T-xxx number.
func (s *TicketService) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// List returns tickets matching the filter plus the unpaginated total.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	if filter.Status != nil && !domain.ValidStatus(*filter.Status) {
		return nil, 0, apperrors.NewValidationError("unknown status", map[string]any{"status": *filter.Status})
	}
	if filter.Priority != nil && !domain.ValidPriority(*filter.Priority) {
		return nil, 0, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *filter.Priority})
	}
	if filter.Category != nil && !domain.ValidCategory(*filter.Category) {
		return nil, 0, apperrors.NewValidationError("unknown category", map[string]any{"category": *filter.Category})
	}
	tickets, total, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// Update applies the given mutations, appending an audit log entry for each
// tracked field that changed. Resolution timestamps are set exactly once, on
// the first transition into Resolved.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, id int64, input UpdateTicketInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var auditEntries []domain.TicketLog

	if input.Title != nil && *input.Title != ticket.Title {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = *input.Description
	}

	if input.Status != nil && *input.Status != ticket.Status {
		if !domain.ValidStatus(*input.Status) {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		oldStatus := string(ticket.Status)
		newStatus := string(*input.Status)
		ticket.Status = *input.Status

		if ticket.Status == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
			resolvedAt := s.now().UTC()
			minutes := int(resolvedAt.Sub(ticket.CreatedAt).Minutes())
			ticket.ResolvedAt = &resolvedAt
			ticket.ResolutionMinutes = &minutes
		}

		auditEntries = append(auditEntries, domain.TicketLog{
			TicketID: ticket.ID,
			UserID:   actor.ID,
			LogType:  domain.LogTypeStatusChange,
			Action:   fmt.Sprintf("Status changed from %s to %s", oldStatus, newStatus),
			OldValue: &oldStatus,
			NewValue: &newStatus,
		})
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventTicketStatusChanged,
			TicketID:  ticket.ID,
			ActorID:   &actor.ID,
			Timestamp: s.now().UTC(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: domain.TicketStatus(oldStatus),
				NewStatus: ticket.Status,
			},
		})
	}

	if input.Priority != nil && *input.Priority != ticket.Priority {
		if !domain.ValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		oldPriority := string(ticket.Priority)
		newPriority := string(*input.Priority)
		ticket.Priority = *input.Priority

		auditEntries = append(auditEntries, domain.TicketLog{
			TicketID: ticket.ID,
			UserID:   actor.ID,
			LogType:  domain.LogTypePriorityChange,
			Action:   fmt.Sprintf("Priority changed from %s to %s", oldPriority, newPriority),
			OldValue: &oldPriority,
			NewValue: &newPriority,
		})
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventTicketPriorityChanged,
			TicketID:  ticket.ID,
			ActorID:   &actor.ID,
			Timestamp: s.now().UTC(),
			Payload: events.TicketPriorityChangedPayload{
				OldPriority: domain.TicketPriority(oldPriority),
				NewPriority: ticket.Priority,
			},
		})
	}

	if input.Category != nil && *input.Category != ticket.Category {
		if !domain.ValidCategory(*input.Category) {
			return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
		}
		ticket.Category = *input.Category
	}

	if input.ClearAssignee && ticket.AssignedTo != nil {
		old := fmt.Sprintf("%d", *ticket.AssignedTo)
		ticket.AssignedTo = nil
		auditEntries = append(auditEntries, domain.TicketLog{
			TicketID: ticket.ID,
			UserID:   actor.ID,
			LogType:  domain.LogTypeAssignment,
			Action:   "Assignee removed",
			OldValue: &old,
		})
	} else if input.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *input.AssignedTo) {
		newVal := fmt.Sprintf("%d", *input.AssignedTo)
		var oldVal *string
		if ticket.AssignedTo != nil {
			v := fmt.Sprintf("%d", *ticket.AssignedTo)
			oldVal = &v
		}
		ticket.AssignedTo = input.AssignedTo
		auditEntries = append(auditEntries, domain.TicketLog{
			TicketID: ticket.ID,
			UserID:   actor.ID,
			LogType:  domain.LogTypeAssignment,
			Action:   "Ticket assigned",
			OldValue: oldVal,
			NewValue: &newVal,
		})
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventTicketAssigned,
			TicketID:  ticket.ID,
			ActorID:   &actor.ID,
			Timestamp: s.now().UTC(),
			Payload:   events.TicketAssignedPayload{AssigneeID: input.AssignedTo},
		})
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range auditEntries {
		if err := s.logs.Create(ctx, &auditEntries[i]); err != nil {
			s.logger.Warn("failed to write ticket log",
				zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, nil
}

// Delete removes a ticket and its dependent records.
func (s *TicketService) Delete(ctx context.Context, id int64) error {
	if err := s.tickets.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// AddComment appends a comment and a matching audit entry.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID int64, content string, isInternal bool) (*domain.TicketComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("comment content is required", nil)
	}
	if isInternal && !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only admins can add internal notes")
	}

	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}

	comment := &domain.TicketComment{
		TicketID:   ticketID,
		AuthorID:   actor.ID,
		Content:    content,
		IsInternal: isInternal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	logEntry := domain.TicketLog{
		TicketID: ticketID,
		UserID:   actor.ID,
		LogType:  domain.LogTypeComment,
		Action:   "Comment added",
		Metadata: map[string]any{"comment_id": comment.ID, "is_internal": isInternal},
	}
	if err := s.logs.Create(ctx, &logEntry); err != nil {
		s.logger.Warn("failed to write comment log", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketCommentAdded,
		TicketID:  ticketID,
		ActorID:   &actor.ID,
		Timestamp: s.now().UTC(),
		Payload:   events.TicketCommentAddedPayload{CommentID: comment.ID, IsInternal: isInternal},
	})
	return comment, nil
}

// ListComments returns a ticket's comments. Internal notes are only visible
// to admins.
func (s *TicketService) ListComments(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.TicketComment, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID, actor.IsAdmin)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// UpdateComment edits a comment's content. Only the author or an admin may
// edit.
func (s *TicketService) UpdateComment(ctx context.Context, actor *domain.User, commentID int64, content string) (*domain.TicketComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("comment content is required", nil)
	}
	existing, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if existing.AuthorID != actor.ID && !actor.IsAdmin {
		return nil, apperrors.NewForbidden("cannot edit another user's comment")
	}
	comment, err := s.comments.UpdateContent(ctx, commentID, content, s.now().UTC())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

// DeleteComment removes a comment. Only the author or an admin may delete.
func (s *TicketService) DeleteComment(ctx context.Context, actor *domain.User, commentID int64) error {
	existing, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if existing.AuthorID != actor.ID && !actor.IsAdmin {
		return apperrors.NewForbidden("cannot delete another user's comment")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// AttachmentInput carries metadata for a file already placed in storage.
type AttachmentInput struct {
	FileName         string
	OriginalFileName string
	FileType         string
	SizeBytes        int64
	StorageKey       string
	StorageURL       *string
}

// AddAttachment registers attachment metadata on a ticket. The binary is
// expected to already live in external storage under StorageKey.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID int64, input AttachmentInput) (*domain.Attachment, error) {
	if strings.TrimSpace(input.FileName) == "" || strings.TrimSpace(input.StorageKey) == "" {
		return nil, apperrors.NewValidationError("file_name and storage_key are required", nil)
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}

	attachment := &domain.Attachment{
		TicketID:         ticketID,
		FileName:         input.FileName,
		OriginalFileName: input.OriginalFileName,
		FileType:         input.FileType,
		SizeBytes:        input.SizeBytes,
		StorageKey:       input.StorageKey,
		StorageURL:       input.StorageURL,
		UploadedBy:       actor.ID,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, apperrors.MapError(err)
	}

	logEntry := domain.TicketLog{
		TicketID: ticketID,
		UserID:   actor.ID,
		LogType:  domain.LogTypeAttachment,
		Action:   "Attachment added",
		NewValue: &attachment.FileName,
		Metadata: map[string]any{"attachment_id": attachment.ID, "size_bytes": attachment.SizeBytes},
	}
	if err := s.logs.Create(ctx, &logEntry); err != nil {
		s.logger.Warn("failed to write attachment log", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}
	return attachment, nil
}

// ListAttachments returns a ticket's attachment metadata.
func (s *TicketService) ListAttachments(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attachments, nil
}

// DeleteAttachment removes attachment metadata. Only the uploader or an
// admin may delete.
func (s *TicketService) DeleteAttachment(ctx context.Context, actor *domain.User, attachmentID int64) error {
	existing, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if existing.UploadedBy != actor.ID && !actor.IsAdmin {
		return apperrors.NewForbidden("cannot delete another user's attachment")
	}
	if err := s.attachments.Delete(ctx, attachmentID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Logs returns the ticket's full audit trail, oldest first.
func (s *TicketService) Logs(ctx context.Context, ticketID int64) ([]domain.TicketLog, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}
	logs, err := s.logs.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return logs, nil
}
