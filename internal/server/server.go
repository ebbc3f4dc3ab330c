// Package server contains the HTTP handlers and middleware wiring for the
// Blogosphere API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "blogosphere/docs" // swagger docs
	"blogosphere/internal/ai"
	"blogosphere/internal/auth"
	"blogosphere/internal/cache"
	"blogosphere/internal/config"
	"blogosphere/internal/database"
	"blogosphere/internal/featureflags"
	"blogosphere/internal/middleware"
	"blogosphere/internal/models"
	"blogosphere/internal/observability"
	"blogosphere/internal/ratelimit"
	"blogosphere/internal/repository"
	"blogosphere/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	bodyLimit = 10 * 1024 * 1024

	globalRateMax    = 100
	globalRateWindow = 15 * time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	tokens         *auth.TokenManager
	featureFlags   *featureflags.Set
	postService    *service.PostService
	userService    *service.UserService
	aiService      *ai.Service
	aiLimiter      *ratelimit.WindowLimiter
	signupLimiter  ratelimit.Limiter
	loginLimiter   ratelimit.Limiter
	completer      ai.Completer
}

// Option customizes a Server built by NewServerWithDeps.
type Option func(*Server)

// WithCompleter replaces the upstream completion client used by the AI routes.
func WithCompleter(c ai.Completer) Option {
	return func(s *Server) {
		s.completer = c
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it the cache and the auth limiters are off.
	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn),
	}
	for _, opt := range opts {
		opt(s)
	}

	flags, skipped := featureflags.Parse(cfg.FeatureFlags)
	for _, pair := range skipped {
		middleware.Logger.Warn("ignoring malformed feature flag", slog.String("flag", pair))
	}
	s.featureFlags = flags

	s.postService = service.NewPostService(s.postRepo, s.userRepo, service.PostServiceOptions{
		DedupeWindow: cfg.ViewDedupeWindow,
		Retention:    cfg.ViewRetention,
		ScanLimit:    cfg.PostsScanLimit,
	})
	s.userService = service.NewUserService(s.userRepo, s.tokens, cfg.BcryptCost)

	if s.completer == nil {
		s.completer = ai.NewOpenAICompleter(ai.OpenAIConfig{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
		})
	}
	s.aiService = ai.NewService(s.completer)
	s.aiLimiter = ratelimit.NewWindowLimiter(cfg.AIRateLimitMax, cfg.AIRateLimitWindow)
	s.aiLimiter.Start(ctx)

	if redisClient != nil {
		s.signupLimiter = ratelimit.NewRedisLimiter(redisClient, "register", 3, 10*time.Minute)
		s.loginLimiter = ratelimit.NewRedisLimiter(redisClient, "login", 10, 5*time.Minute)
	}

	models.ExposeDetails = cfg.IsDevelopment()

	return s, nil
}

// NewApp builds the Fiber application with every middleware and route
// installed. Start serves it; tests drive it through app.Test.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Blogosphere API",
		BodyLimit:    bodyLimit,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "Route not found"})
	})

	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "Route not found"})
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	return respondError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Compressing an event stream would buffer it.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/ai")
		},
	}))

	// Global rate limiting (100 requests per 15 minutes per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        globalRateMax,
		Expiration: globalRateWindow,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			observability.RateLimitRejections.WithLabelValues("global").Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests from this IP, please try again later.",
				Code:  models.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health/db", s.DatabaseHealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/feature-flags", s.OptionalAuth(), s.GetFeatureFlags)

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Post routes. Specific paths come before the generic /:id routes.
	posts := api.Group("/posts")
	posts.Get("/", s.OptionalAuth(), s.GetPosts)
	posts.Post("/", s.AuthRequired(), s.CreatePost)
	posts.Get("/my-posts", s.AuthRequired(), s.GetMyPosts)
	posts.Get("/my-drafts", s.AuthRequired(), s.GetMyDrafts)
	posts.Get("/user/:userId", s.OptionalAuth(), s.GetUserPosts)
	posts.Post("/:id/view", s.OptionalAuth(), s.RecordView)
	posts.Post("/:id/like", s.AuthRequired(), s.ToggleLike)
	posts.Put("/:id/publish", s.AuthRequired(), s.PublishPost)
	posts.Get("/:id", s.OptionalAuth(), s.GetPost)
	posts.Put("/:id", s.AuthRequired(), s.UpdatePost)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)

	// User routes
	users := api.Group("/users")
	users.Post("/register", s.authLimit(s.signupLimiter, "register"), s.Register)
	users.Post("/login", s.authLimit(s.loginLimiter, "login"), s.Login)
	users.Get("/profile", s.AuthRequired(), s.GetProfile)
	users.Put("/profile", s.AuthRequired(), s.UpdateProfile)
	users.Put("/change-password", s.AuthRequired(), s.ChangePassword)
	users.Get("/", s.AuthRequired(), s.AdminRequired(), s.GetAllUsers)
	users.Get("/:id", s.OptionalAuth(), s.GetUser)

	// AI routes share one global throttle across every caller.
	aiGroup := api.Group("/ai", s.AuthRequired(), s.FeatureRequired(featureflags.AIAssist),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: s.aiLimiter,
			Name:    "ai",
			KeyFunc: middleware.GlobalKey,
			Policy:  middleware.FailOpen,
			Message: "AI service is busy. Please try again in a moment.",
		}))
	aiGroup.Post("/generate-content", s.GenerateContent)
	aiGroup.Post("/summarize", s.Summarize)
}

// authLimit wraps an optional per-caller limiter for the credential routes.
func (s *Server) authLimit(l ratelimit.Limiter, name string) fiber.Handler {
	if l == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: l,
		Name:    name,
		KeyFunc: middleware.ByUserOrIP,
		Policy:  middleware.FailOpen,
	})
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "OK",
		"message":   "Blogosphere server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// DatabaseHealthCheck handles GET /api/health/db
func (s *Server) DatabaseHealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := database.Ping(ctx, s.db); err != nil {
		resp := fiber.Map{
			"status":    "ERROR",
			"message":   "Database connection failed",
			"timestamp": now,
		}
		if models.ExposeDetails {
			resp["error"] = err.Error()
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}

	return c.JSON(fiber.Map{
		"status":    "OK",
		"message":   "Database connection successful",
		"database":  s.db.Name(),
		"timestamp": now,
	})
}

// Start builds the app and serves it until Shutdown.
func (s *Server) Start() error {
	app := s.NewApp()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop background goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	if s.aiLimiter != nil {
		s.aiLimiter.Stop()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
