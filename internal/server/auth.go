package server

import (
	"context"
	"errors"
	"strings"

	"blogosphere/internal/cache"
	"blogosphere/internal/middleware"
	"blogosphere/internal/models"

	"github.com/gofiber/fiber/v2"
)

// principal is the cached subset of a user the auth middleware needs.
type principal struct {
	ID       uint   `json:"id"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

var (
	errNoToken      = models.NewUnauthorizedError("Access token is required")
	errInvalidToken = models.NewUnauthorizedError("Invalid or expired token")
	errUnknownUser  = models.NewUnauthorizedError("User not found")
	errDeactivated  = models.NewUnauthorizedError("Account is deactivated")
)

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// authenticate resolves the bearer token to an active principal.
func (s *Server) authenticate(c *fiber.Ctx) (*principal, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, errNoToken
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, errInvalidToken
	}

	p, err := s.loadPrincipal(c.UserContext(), userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, errUnknownUser
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, errDeactivated
	}
	return p, nil
}

func (s *Server) loadPrincipal(ctx context.Context, userID uint) (*principal, error) {
	var p principal
	err := cache.Aside(ctx, cache.UserKey(userID), &p, cache.UserTTL, func() error {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		p = principal{ID: user.ID, Role: user.Role, IsActive: user.IsActive}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func setPrincipal(c *fiber.Ctx, p *principal) {
	c.Locals(middleware.LocalUserID, p.ID)
	c.Locals(middleware.LocalUserRole, p.Role)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(middleware.WithUserID(c.UserContext(), p.ID))
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := s.authenticate(c)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeUnauthorized {
				return models.RespondWithError(c, fiber.StatusUnauthorized, appErr)
			}
			return respondError(c, err)
		}
		setPrincipal(c, p)
		return c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token for an active account
// is present and otherwise continues anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if bearerToken(c) == "" {
			return c.Next()
		}
		if p, err := s.authenticate(c); err == nil {
			setPrincipal(c, p)
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the role is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !callerFrom(c).IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// FeatureRequired hides a route behind a feature flag. Disabled features
// answer 404 so they look absent.
func (s *Server) FeatureRequired(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(name, callerFrom(c).UserID) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "Route not found"})
		}
		return c.Next()
	}
}
