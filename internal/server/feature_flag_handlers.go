package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags
// @Description Configured flags and their state for the current caller.
// @Tags meta
// @Produce json
// @Success 200 {object} object{raw=string,evaluated=map[string]bool}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.String(),
		"evaluated": s.featureFlags.Evaluate(callerFrom(c).UserID),
	})
}
