package domain

import "time"

// Attachment records file metadata attached to a ticket. The binary itself
// lives in external storage referenced by StorageKey.
type Attachment struct {
	ID               int64
	TicketID         int64
	FileName         string
	OriginalFileName string
	FileType         string
	SizeBytes        int64
	StorageKey       string
	StorageURL       *string
	UploadedBy       int64
	CreatedAt        time.Time
}
