package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphProfile carries the identity fields returned by Microsoft Graph /me.
type GraphProfile struct {
	AzureID    string
	Email      string
	Name       string
	Department *string
	JobTitle   *string
}

// AzureVerifier resolves an Azure AD access token to a user profile.
type AzureVerifier interface {
	Verify(ctx context.Context, accessToken string) (*GraphProfile, error)
}

// GraphVerifier validates tokens against the Microsoft Graph API.
type GraphVerifier struct {
	client  *http.Client
	baseURL string
}

// NewGraphVerifier builds a verifier with the given call timeout.
func NewGraphVerifier(timeout time.Duration) *GraphVerifier {
	return &GraphVerifier{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultGraphBaseURL,
	}
}

// NewGraphVerifierWithBaseURL is used by tests to point at a stub server.
func NewGraphVerifierWithBaseURL(timeout time.Duration, baseURL string) *GraphVerifier {
	v := NewGraphVerifier(timeout)
	v.baseURL = baseURL
	return v
}

type graphMeResponse struct {
	ID                string  `json:"id"`
	Mail              string  `json:"mail"`
	UserPrincipalName string  `json:"userPrincipalName"`
	DisplayName       string  `json:"displayName"`
	Department        *string `json:"department"`
	JobTitle          *string `json:"jobTitle"`
}

// Verify calls Graph /me with the caller's token. A non-200 response means the
// token is invalid or expired.
func (v *GraphVerifier) Verify(ctx context.Context, accessToken string) (*GraphProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUnauthorized("azure token rejected")
	}

	var me graphMeResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}

	email := me.Mail
	if email == "" {
		email = me.UserPrincipalName
	}
	if me.ID == "" || email == "" {
		return nil, apperrors.NewUnauthorized("incomplete graph profile")
	}

	return &GraphProfile{
		AzureID:    me.ID,
		Email:      email,
		Name:       me.DisplayName,
		Department: me.Department,
		JobTitle:   me.JobTitle,
	}, nil
}
