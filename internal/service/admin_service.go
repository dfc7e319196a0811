package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// RequestMeta carries caller metadata recorded with every audited admin action.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AdminService implements user administration with audit logging.
type AdminService struct {
	users  repository.UserRepository
	audits repository.AuditLogRepository
	logger *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(users repository.UserRepository, audits repository.AuditLogRepository, logger *zap.Logger) *AdminService {
	return &AdminService{users: users, audits: audits, logger: logger}
}

// ListAdmins returns all accounts holding the admin flag.
func (s *AdminService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return admins, nil
}

// SetAdminStatus grants or revokes the admin flag. The last active admin can
// never be demoted, so the system always keeps at least one.
func (s *AdminService) SetAdminStatus(ctx context.Context, actor *domain.User, targetID int64, isAdmin bool, meta RequestMeta) (*domain.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if !isAdmin && target.IsAdmin {
		count, err := s.users.AdminCount(ctx)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if count <= 1 {
			return nil, apperrors.NewValidationError("cannot remove the last admin", nil)
		}
	}

	updated, err := s.users.SetAdminStatus(ctx, targetID, isAdmin)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	action := "admin_granted"
	if !isAdmin {
		action = "admin_revoked"
	}
	s.audit(ctx, actor, action, &targetID, map[string]any{"email": target.Email}, meta)

	s.logger.Info("admin status changed",
		zap.Int64("actor_id", actor.ID),
		zap.Int64("target_id", targetID),
		zap.Bool("is_admin", isAdmin))
	return updated, nil
}

// SetActiveStatus activates or deactivates an account. Deactivating the last
// active admin is rejected for the same reason demotion is.
func (s *AdminService) SetActiveStatus(ctx context.Context, actor *domain.User, targetID int64, isActive bool, meta RequestMeta) (*domain.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if !isActive && target.IsAdmin && target.IsActive {
		count, err := s.users.AdminCount(ctx)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if count <= 1 {
			return nil, apperrors.NewValidationError("cannot deactivate the last admin", nil)
		}
	}

	updated, err := s.users.SetActiveStatus(ctx, targetID, isActive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	action := "user_activated"
	if !isActive {
		action = "user_deactivated"
	}
	s.audit(ctx, actor, action, &targetID, map[string]any{"email": target.Email}, meta)
	return updated, nil
}

// AuditLogs returns recent admin actions, newest first.
func (s *AdminService) AuditLogs(ctx context.Context, limit, offset int) ([]domain.AdminAuditLog, error) {
	logs, err := s.audits.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return logs, nil
}

func (s *AdminService) audit(ctx context.Context, actor *domain.User, action string, targetID *int64, details map[string]any, meta RequestMeta) {
	entry := &domain.AdminAuditLog{
		AdminID:      actor.ID,
		Action:       action,
		TargetUserID: targetID,
		Details:      details,
	}
	if meta.IPAddress != "" {
		entry.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		entry.UserAgent = &meta.UserAgent
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write admin audit log",
			zap.String("action", action), zap.Error(err))
	}
}
