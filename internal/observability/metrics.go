package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostViews counts view requests by result ("counted", "deduped").
	PostViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogosphere_post_views_total",
		Help: "Post view requests by result",
	}, []string{"result"})

	// PostLikes counts like toggles by resulting action ("like", "unlike").
	PostLikes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogosphere_post_likes_total",
		Help: "Post like toggles by action",
	}, []string{"action"})

	// AIStreams counts AI relays by kind ("generate", "summarize") and outcome.
	AIStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogosphere_ai_streams_total",
		Help: "AI streaming relays by kind and outcome",
	}, []string{"kind", "outcome"})

	// AIStreamDuration records how long a relay stayed open.
	AIStreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogosphere_ai_stream_duration_seconds",
		Help:    "Duration of AI streaming relays",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"kind"})

	// RateLimitRejections counts requests refused by a named limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogosphere_rate_limit_rejections_total",
		Help: "Requests rejected by rate limiters",
	}, []string{"limiter"})

	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogosphere_redis_errors_total",
		Help: "Redis errors by operation",
	}, []string{"operation"})
)
