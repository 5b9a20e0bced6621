package server

import (
	"time"

	"coldreach/internal/cache"
	"coldreach/internal/campaign"
	"coldreach/internal/config"
	"coldreach/internal/database"
	"coldreach/internal/handlers"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Server represents the application server
type Server struct {
	echo         *echo.Echo
	store        *database.Store
	orchestrator *campaign.Orchestrator
	config       *config.Config
	logger       zerolog.Logger
	cache        *cache.Cache
}

// New creates a new server instance
func New(cfg *config.Config, store *database.Store, orchestrator *campaign.Orchestrator, logger zerolog.Logger) *Server {
	return &Server{
		config:       cfg,
		store:        store,
		orchestrator: orchestrator,
		logger:       logger,
		cache:        cache.New(),
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	// API group with /api prefix
	api := s.echo.Group("/api")

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.store.DB()))

	// Open-tracking pixel, fetched by prospects' mail clients
	s.echo.GET("/track_open", handlers.TrackOpenHandler(s.store, s.cache, s.logger))

	// API endpoints under /api prefix
	api.GET("/", handlers.RootHandler(s.config.Version))
	api.POST("/scrape_leads", handlers.ScrapeLeadsHandler(s.store, s.orchestrator, s.logger))
	api.POST("/generate_emails", handlers.GenerateEmailsHandler(s.store, s.orchestrator, s.logger))
	api.POST("/send_emails", handlers.SendEmailsHandler(s.store, s.orchestrator, s.logger))
	api.POST("/generate_and_send", handlers.GenerateAndSendHandler(s.store, s.orchestrator, s.logger))
	api.POST("/analyze_replies", handlers.AnalyzeRepliesHandler(s.store, s.orchestrator, s.logger))
	api.POST("/run_campaign", handlers.RunCampaignHandler(s.store, s.orchestrator, s.logger))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}
