package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// Middleware validates bearer tokens and loads principals.
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		return apperrors.NewForbidden("account deactivated")
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

// BearerToken extracts the raw bearer token from the Authorization header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// RequireAdmin ensures the caller has the admin flag.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.IsAdmin {
			return apperrors.NewForbidden("admin required")
		}
		return c.Next()
	}
}
