package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"blogosphere/internal/middleware"
	"blogosphere/internal/models"
	"blogosphere/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// paramID reads a positive integer route parameter. A bad value is answered
// with 400 "Invalid <label>" and ok is false; the handler then returns nil.
func paramID(c *fiber.Ctx, name string) (id uint, ok bool) {
	n, err := c.ParamsInt(name)
	if err != nil || n <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+paramLabel(name)))
		return 0, false
	}
	return uint(n), true
}

// paramLabel spells a camelCase parameter as words: "userId" is "user ID".
func paramLabel(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	label := b.String()
	if label == "id" {
		return "ID"
	}
	if base, found := strings.CutSuffix(label, " id"); found {
		return base + " ID"
	}
	return label
}

// callerFrom returns the authenticated caller, or the anonymous caller when
// no auth middleware populated the locals.
func callerFrom(c *fiber.Ctx) service.Caller {
	uid, _ := c.Locals(middleware.LocalUserID).(uint)
	role, _ := c.Locals(middleware.LocalUserRole).(string)
	return service.Caller{UserID: uid, Role: role}
}

// mapServiceError picks the HTTP status for an error returned by a service.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Status()
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// respondError writes err with the status mapServiceError selects. Errors
// without an AppError are hidden behind a generic internal error.
func respondError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		if status == fiber.StatusNotFound {
			err = &models.AppError{Code: models.CodeNotFound, Message: "Resource not found", Err: err}
		} else {
			err = models.NewInternalError(err)
		}
	}
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err)
}

// badBody is the response for a request body that fails to parse.
func badBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid request body"))
}
