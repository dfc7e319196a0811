package dto

import "time"

// FetchEmailsRequest triggers a manual pipeline run.
type FetchEmailsRequest struct {
	// AccessToken is the caller's own Graph token; falls back to the
	// configured service token when empty.
	AccessToken string `json:"access_token"`
	DaysBack    int    `json:"days_back"`
	MaxEmails   int    `json:"max_emails"`
	Folder      string `json:"folder"`
}

// EmailSourceResponse representation.
type EmailSourceResponse struct {
	ID               int64      `json:"id"`
	MessageID        string     `json:"message_id"`
	FromAddress      string     `json:"from_address"`
	Subject          string     `json:"subject"`
	ReceivedAt       time.Time  `json:"received_at"`
	ProcessedAt      *time.Time `json:"processed_at"`
	IsSAPRelated     *bool      `json:"is_sap_related"`
	DetectedCategory *string    `json:"detected_category"`
	TicketCreatedID  *int64     `json:"ticket_created_id"`
	ErrorMessage     *string    `json:"error_message"`
}

// EmailStatsResponse aggregates processing figures.
type EmailStatsResponse struct {
	Total          int `json:"total"`
	Processed      int `json:"processed"`
	SAPRelated     int `json:"sap_related"`
	TicketsCreated int `json:"tickets_created"`
	Errored        int `json:"errored"`
}
