package domain

import "time"

// AdminAuditLog records administrative actions for accountability.
type AdminAuditLog struct {
	ID           int64
	AdminID      int64
	Action       string
	TargetUserID *int64
	Details      map[string]any
	IPAddress    *string
	UserAgent    *string
	CreatedAt    time.Time
}
