package middleware

import (
	"fmt"
	"log/slog"

	"blogosphere/internal/models"
	"blogosphere/internal/observability"
	"blogosphere/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// FailPolicy defines the behavior when the limiter's store is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if the store is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if the store is unavailable.
	FailClosed
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *fiber.Ctx) string

// ByUserOrIP keys by authenticated user when present, otherwise by client IP.
func ByUserOrIP(c *fiber.Ctx) string {
	if uid, ok := c.Locals(LocalUserID).(uint); ok && uid != 0 {
		return fmt.Sprintf("user:%d", uid)
	}
	return "ip:" + c.IP()
}

// GlobalKey keys every request to the same bucket.
func GlobalKey(*fiber.Ctx) string {
	return ratelimit.GlobalKey
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	// Name labels metrics and logs.
	Name    string
	KeyFunc KeyFunc
	Policy  FailPolicy
	// Message is returned to throttled callers.
	Message string
}

// RateLimit returns a Fiber middleware that consults cfg.Limiter before
// passing the request on.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ByUserOrIP
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later."
	}

	return func(c *fiber.Ctx) error {
		decision, err := cfg.Limiter.Allow(c.UserContext(), cfg.KeyFunc(c))
		if err != nil {
			if cfg.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("limiter", cfg.Name),
					slog.String("path", c.Path()),
					slog.String("error", err.Error()),
				)
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewServiceUnavailableError("Rate limit unavailable", err))
			}
			return c.Next()
		}

		if !decision.Allowed {
			observability.RateLimitRejections.WithLabelValues(cfg.Name).Inc()
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError(cfg.Message, decision.RetryAfter))
		}
		return c.Next()
	}
}
