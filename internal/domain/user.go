package domain

import "time"

// User is the domain model for people signing in through Azure AD SSO.
type User struct {
	ID         int64
	AzureID    string
	Email      string
	Name       string
	Department *string
	AvatarURL  *string
	IsActive   bool
	IsAdmin    bool
	LastLogin  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
