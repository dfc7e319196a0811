package events

import (
	"time"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketAutoCreated     EventType = "ticket_auto_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketCommentAdded    EventType = "ticket_comment_added"
	EventPipelineRunFinished   EventType = "pipeline_run_finished"
)

// Event represents a domain event emitted by services.
type Event struct {
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	ActorID   *int64      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number   string                `json:"number"`
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Category domain.TicketCategory `json:"category"`
}

// TicketAutoCreatedPayload payload for pipeline-created tickets.
type TicketAutoCreatedPayload struct {
	Number     string  `json:"number"`
	Title      string  `json:"title"`
	FromEmail  string  `json:"from_email"`
	Confidence float64 `json:"confidence"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *int64 `json:"assignee_id,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID  int64 `json:"comment_id"`
	IsInternal bool  `json:"is_internal"`
}

// PipelineRunFinishedPayload summarizes one pipeline pass.
type PipelineRunFinishedPayload struct {
	Fetched        int `json:"fetched"`
	TicketsCreated int `json:"tickets_created"`
	Errors         int `json:"errors"`
}
