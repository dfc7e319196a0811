package domain

import "time"

// EmailSource is the durable record of every inbound message seen by the
// pipeline, keyed by the provider message ID. Created on first sight, mutated
// exactly once to record the processing outcome, never deleted.
type EmailSource struct {
	ID               int64
	MessageID        string
	FromAddress      string
	ToAddress        string
	Subject          string
	BodyText         *string
	BodyHTML         *string
	ReceivedAt       time.Time
	ProcessedAt      *time.Time
	IsSAPRelated     *bool
	DetectedCategory *string
	LLMAnalysis      map[string]any
	TicketCreatedID  *int64
	ErrorMessage     *string
	RawHeaders       map[string]any
	CreatedAt        time.Time
}

// Processed reports whether the message has already been handled.
func (e *EmailSource) Processed() bool {
	return e.ProcessedAt != nil
}
