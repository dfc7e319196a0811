package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// Session is the result of a successful Azure token exchange.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService exchanges Azure AD tokens for internal sessions.
type AuthService struct {
	verifier auth.AzureVerifier
	tokens   *auth.TokenManager
	users    repository.UserRepository
	logger   *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(verifier auth.AzureVerifier, tokens *auth.TokenManager, users repository.UserRepository, logger *zap.Logger) *AuthService {
	return &AuthService{verifier: verifier, tokens: tokens, users: users, logger: logger}
}

// AzureLogin verifies the caller's Azure access token against Microsoft Graph,
// upserts the matching local account and issues a session JWT. The first
// account ever created becomes admin.
func (s *AuthService) AzureLogin(ctx context.Context, azureToken string) (*Session, error) {
	profile, err := s.verifier.Verify(ctx, azureToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpsertFromAzure(ctx, repository.AzureProfile{
		AzureID:    profile.AzureID,
		Email:      profile.Email,
		Name:       profile.Name,
		Department: profile.Department,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, apperrors.NewForbidden("account deactivated")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to record last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.Bool("is_admin", user.IsAdmin))

	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
