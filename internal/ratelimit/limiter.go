// Package ratelimit provides fixed-window request limiters. Limiters are plain
// values injected into the components that need them; the package holds no
// global state.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the current window resets. Only meaningful
	// when Allowed is false.
	RetryAfter time.Duration
}

// Limiter admits or refuses events for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// GlobalKey is the key used for process-wide throttles.
const GlobalKey = "global"
