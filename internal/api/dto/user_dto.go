package dto

import "time"

// AzureLoginRequest payload: the access token obtained from the MSAL flow.
type AzureLoginRequest struct {
	AccessToken string `json:"access_token"`
}

// LoginResponse carries the session token and user profile.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse representation.
type UserResponse struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Department *string    `json:"department"`
	AvatarURL  *string    `json:"avatar_url"`
	IsActive   bool       `json:"is_active"`
	IsAdmin    bool       `json:"is_admin"`
	LastLogin  *time.Time `json:"last_login"`
	CreatedAt  time.Time  `json:"created_at"`
}

// UpdateProfileRequest payload; omitted fields are untouched.
type UpdateProfileRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
	AvatarURL  *string `json:"avatar_url"`
}

// SetAdminRequest payload.
type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// SetActiveRequest payload.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// AuditLogResponse representation.
type AuditLogResponse struct {
	ID           int64          `json:"id"`
	AdminID      int64          `json:"admin_id"`
	Action       string         `json:"action"`
	TargetUserID *int64         `json:"target_user_id"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}
