package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/KilimcininKorOglu/obaidx/internal/config"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
)

const apiPrefix = "/api/v1"

// Options holds the optional collaborators of a Server.
type Options struct {
	// Settings is served read-only by GET /api/v1/config when set.
	Settings *config.Config
	Logger   logging.Logger
	// Recorder backs GET /api/v1/logs when set.
	Recorder *logging.Recorder
}

// Server is the REST API server.
type Server struct {
	config    config.ServerConfig
	settings  *config.Config
	manager   *index.Manager
	log       logging.Logger
	recorder  *logging.Recorder
	app       *fiber.App
	startTime time.Time
}

// NewServer creates a REST server serving the indexes of m.
func NewServer(cfg config.ServerConfig, m *index.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	s := &Server{
		config:    cfg,
		settings:  opts.Settings,
		manager:   m,
		log:       opts.Logger,
		recorder:  opts.Recorder,
		startTime: time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "obaidx",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          s.handleError,
	})

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(requestIDMiddleware())
	s.app.Use(s.loggingMiddleware())
	s.app.Use(s.recoveryMiddleware())
}

func (s *Server) setupRoutes() {
	api := s.app.Group(apiPrefix)

	api.Get("/health", s.handleHealth)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/config", s.handleGetConfig)
	api.Post("/flush", s.handleFlush)
	api.Get("/check", s.handleCheck)

	api.Get("/indexes", s.handleListIndexes)
	api.Post("/indexes", s.handleCreateIndex)
	api.Get("/indexes/:name", s.handleGetIndex)
	api.Delete("/indexes/:name", s.handleDropIndex)
	api.Post("/indexes/:name/clear", s.handleClearIndex)
	api.Get("/indexes/:name/count", s.handleCount)

	api.Get("/indexes/:name/entries", s.handleScan)
	api.Post("/indexes/:name/entries", s.handlePut)
	api.Get("/indexes/:name/entries/:key", s.handleGet)
	api.Put("/indexes/:name/entries/:key", s.handleSet)
	api.Delete("/indexes/:name/entries/:key", s.handleRemove)

	api.Get("/indexes/:name/prefix/:prefix", s.handlePrefix)
	api.Get("/indexes/:name/rank/:key", s.handleRank)
	api.Get("/indexes/:name/at/:pos", s.handleAt)
}

// handleError is the fiber error handler. Every handler error ends here.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, code := mapError(err)
	if status >= fiber.StatusInternalServerError {
		s.log.WithRequestID(RequestID(c)).Error("request failed", "path", c.Path(), "error", err)
	}
	return writeError(c, status, code, err.Error())
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.log.Info("REST server started", "address", s.config.Address)
	return s.app.Listen(s.config.Address)
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	s.log.Info("REST server stopped")
	return nil
}
