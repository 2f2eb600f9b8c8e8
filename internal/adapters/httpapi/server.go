package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// Service is the triage behaviour exposed over HTTP
type Service interface {
	Sync(ctx context.Context, token string) (*core.SyncReport, error)
	Feedback(ctx context.Context, token string, req *core.FeedbackRequest) (string, error)
	Ingest(ctx context.Context, messages []core.IngestMessage) *core.IngestReport
	ExchangeCode(ctx context.Context, code string) (map[string]interface{}, error)
}

// PendingCounter reports how many reminders are waiting to fire
type PendingCounter interface {
	Pending() int
}

// Config holds HTTP server settings
type Config struct {
	ListenAddress   string
	IngestSecret    string
	AllowOrigins    string
	BodyLimit       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the fiber HTTP surface
type Server struct {
	app     *fiber.App
	service Service
	pending PendingCounter
	config  Config
	logger  *zap.Logger
}

// NewServer creates the HTTP server and registers its routes. pending may be nil.
func NewServer(service Service, pending PendingCounter, config Config, logger *zap.Logger) *Server {
	if config.AllowOrigins == "" {
		config.AllowOrigins = "*"
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = 4 * 1024 * 1024
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		service: service,
		pending: pending,
		config:  config,
		logger:  logger,
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             config.BodyLimit,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
	})

	s.app.Use(requestID())
	s.app.Use(requestLogger(logger))
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error("Panic recovered",
				zap.String("request_id", requestIDFrom(c)),
				zap.String("path", c.Path()),
				zap.Any("panic", e),
				zap.Stack("stack"))
		},
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Apps-Script-Secret,X-Request-ID",
	}))

	s.routes()
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens in the background
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("address", s.config.ListenAddress))

	go func() {
		if err := s.app.Listen(s.config.ListenAddress); err != nil {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests until the shutdown timeout
func (s *Server) Stop() error {
	return s.app.ShutdownWithTimeout(s.config.ShutdownTimeout)
}

type errorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// handleError maps core errors onto status codes. Unclassified errors get a
// generic message and are logged with detail.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	detail := "Internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status, detail = fe.Code, fe.Message
	case errors.Is(err, core.ErrUnauthorized):
		status, detail = fiber.StatusUnauthorized, "Token expired or invalid"
	case errors.Is(err, core.ErrExchangeFailed):
		status, detail = fiber.StatusBadRequest, "Token exchange failed"
	case errors.Is(err, core.ErrUpstreamUnavailable):
		status, detail = fiber.StatusBadGateway, "Upstream provider unavailable"
	case errors.Is(err, core.ErrNotConfigured):
		detail = "Server credentials not configured"
	}

	fields := []zap.Field{
		zap.String("request_id", requestIDFrom(c)),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", fields...)
	} else {
		s.logger.Debug("Request rejected", fields...)
	}

	return c.Status(status).JSON(errorResponse{Detail: detail, RequestID: requestIDFrom(c)})
}
