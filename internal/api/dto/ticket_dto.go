package dto

import (
	"time"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    domain.TicketCategory `json:"category"`
	AssignedTo  *int64                `json:"assigned_to"`
}

// UpdateTicketRequest payload; omitted fields are untouched.
type UpdateTicketRequest struct {
	Title         *string                `json:"title"`
	Description   *string                `json:"description"`
	Status        *domain.TicketStatus   `json:"status"`
	Priority      *domain.TicketPriority `json:"priority"`
	Category      *domain.TicketCategory `json:"category"`
	AssignedTo    *int64                 `json:"assigned_to"`
	ClearAssignee bool                   `json:"clear_assignee"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         int64                 `json:"id"`
	Number     string                `json:"number"`
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	Category   domain.TicketCategory `json:"category"`
	CreatedBy  int64                 `json:"created_by"`
	AssignedTo *int64                `json:"assigned_to"`
	SLADueDate *time.Time            `json:"sla_due_date"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetail provides full ticket info including email provenance.
type TicketDetail struct {
	TicketSummary
	Description        string     `json:"description"`
	SourceEmailID      *string    `json:"source_email_id"`
	SourceEmailFrom    *string    `json:"source_email_from"`
	SourceEmailSubject *string    `json:"source_email_subject"`
	LLMConfidence      *float64   `json:"llm_confidence"`
	ResolutionMinutes  *int       `json:"resolution_minutes"`
	ResolvedAt         *time.Time `json:"resolved_at"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Items  []TicketSummary `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// UpdateCommentRequest payload.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse representation.
type CommentResponse struct {
	ID         int64      `json:"id"`
	TicketID   int64      `json:"ticket_id"`
	AuthorID   int64      `json:"author_id"`
	Content    string     `json:"content"`
	IsInternal bool       `json:"is_internal"`
	IsEdited   bool       `json:"is_edited"`
	EditedAt   *time.Time `json:"edited_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateAttachmentRequest registers metadata for an uploaded file.
type CreateAttachmentRequest struct {
	FileName         string  `json:"file_name"`
	OriginalFileName string  `json:"original_file_name"`
	FileType         string  `json:"file_type"`
	SizeBytes        int64   `json:"size_bytes"`
	StorageKey       string  `json:"storage_key"`
	StorageURL       *string `json:"storage_url"`
}

// AttachmentResponse representation.
type AttachmentResponse struct {
	ID               int64     `json:"id"`
	TicketID         int64     `json:"ticket_id"`
	FileName         string    `json:"file_name"`
	OriginalFileName string    `json:"original_file_name"`
	FileType         string    `json:"file_type"`
	SizeBytes        int64     `json:"size_bytes"`
	StorageURL       *string   `json:"storage_url"`
	UploadedBy       int64     `json:"uploaded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// TicketLogResponse representation.
type TicketLogResponse struct {
	ID        int64          `json:"id"`
	TicketID  int64          `json:"ticket_id"`
	UserID    int64          `json:"user_id"`
	LogType   domain.LogType `json:"log_type"`
	Action    string         `json:"action"`
	OldValue  *string        `json:"old_value"`
	NewValue  *string        `json:"new_value"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}
