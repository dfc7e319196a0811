package domain

import "time"

// TicketComment is a public comment or internal note on a ticket.
type TicketComment struct {
	ID         int64
	TicketID   int64
	AuthorID   int64
	Content    string
	IsInternal bool
	IsEdited   bool
	EditedAt   *time.Time
	CreatedAt  time.Time
}
