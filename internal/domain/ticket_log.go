package domain

import "time"

// LogType categorizes ticket audit trail entries.
type LogType string

const (
	LogTypeCreated        LogType = "created"
	LogTypeStatusChange   LogType = "status_change"
	LogTypeAssignment     LogType = "assignment"
	LogTypePriorityChange LogType = "priority_change"
	LogTypeComment        LogType = "comment"
	LogTypeAttachment     LogType = "attachment"
	LogTypeEmailReceived  LogType = "email_received"
	LogTypeAutoClassified LogType = "auto_classified"
)

// TicketLog is an append-only audit trail entry. Entries are never mutated.
type TicketLog struct {
	ID        int64
	TicketID  int64
	UserID    int64
	LogType   LogType
	Action    string
	OldValue  *string
	NewValue  *string
	Metadata  map[string]any
	CreatedAt time.Time
}
