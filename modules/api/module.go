package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/whiteboard-sync/modules/auth"
	"github.com/example/whiteboard-sync/modules/board"
	"github.com/example/whiteboard-sync/modules/store"
)

// Module is the HTTP and WebSocket surface: REST routes for accounts and
// session management, plus the realtime endpoint feeding the board router.
type Module struct {
	store  *store.Module
	auth   *auth.Module
	board  *board.Module
	logger *slog.Logger

	app  *fiber.App
	port string
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the api module. Port comes from the PORT environment
// variable, defaulting to 3000.
func NewModule(storeModule *store.Module, authModule *auth.Module, boardModule *board.Module, logger *slog.Logger) *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &Module{
		store:  storeModule,
		auth:   authModule,
		board:  boardModule,
		logger: logger.With("module", "api"),
		port:   port,
	}
}

// Name implements mono.Module.
func (m *Module) Name() string {
	return "api"
}

// Start implements mono.Module.
func (m *Module) Start(_ context.Context) error {
	if m.board.Router() == nil {
		return fmt.Errorf("board module is not started")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(cors.New())
	m.app.Use(m.requestLogger())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			m.logger.Error("http server error", "error", err)
		}
	}()

	m.logger.Info("http server started", "port", m.port)
	return nil
}

// Stop implements mono.Module.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("shutting down http server")
	return m.app.ShutdownWithContext(ctx)
}

// Health implements mono.HealthCheckableModule.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.port,
		},
	}
}

func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	verifier := m.auth.Service()

	authGroup := m.app.Group("/api/auth")
	authGroup.Post("/register", m.register)
	authGroup.Post("/login", m.login)
	authGroup.Get("/me", AuthRequired(verifier), m.me)

	sessions := m.app.Group("/api/sessions")
	sessions.Post("/", AuthRequired(verifier), m.createSession)
	sessions.Get("/my-sessions", AuthRequired(verifier), m.mySessions)
	sessions.Get("/invite/:inviteCode", m.getSessionByInvite)
	sessions.Get("/:sessionId", m.getSession)
	sessions.Get("/:sessionId/history", m.getHistory)
	sessions.Delete("/:sessionId", AuthRequired(verifier), m.deleteSession)
}

// errorHandler converts Fiber errors into the uniform error body.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

func (m *Module) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		m.logger.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode())
		return err
	}
}
