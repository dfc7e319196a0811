package service

import (
	"context"
	"strings"

	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// UserService exposes directory operations over user accounts.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns active users, optionally filtered by a name/email search term.
func (s *UserService) List(ctx context.Context, search string, limit, offset int) ([]domain.User, error) {
	var (
		result []domain.User
		err    error
	)
	if strings.TrimSpace(search) != "" {
		result, err = s.users.Search(ctx, search, limit, offset)
	} else {
		result, err = s.users.ListActive(ctx, limit, offset)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// UpdateProfile lets a user change their own display fields. Nil fields are
// left untouched.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, name, department, avatarURL *string) (*domain.User, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, apperrors.NewValidationError("name cannot be empty", nil)
	}
	user, err := s.users.UpdateProfile(ctx, id, name, department, avatarURL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
