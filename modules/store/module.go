package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/whiteboard-sync/events"
)

// Module provides durable storage for sessions, strokes and users via
// GORM + SQLite.
type Module struct {
	db       *gorm.DB
	sessions *SessionRepository
	strokes  *StrokeRepository
	users    *UserRepository
	dbPath   string
	logger   *slog.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new store module.
func NewModule(log *slog.Logger) *Module {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "whiteboard.db"
	}
	return &Module{
		dbPath: dbPath,
		logger: log,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens the database connection and runs migrations.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.dbPath)

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&Session{}, &Stroke{}, &User{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.sessions = NewSessionRepository(m.db)
	m.strokes = NewStrokeRepository(m.db)
	m.users = NewUserRepository(m.db)

	m.logger.Info("Store module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health performs a database ping.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// RegisterEventConsumers subscribes to board events that require a durable
// side effect. StrokeDrawn bumps the session's lastActivityAt off the hot
// persist-broadcast path.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.StrokeDrawnV1, m.handleStrokeDrawn, m,
	); err != nil {
		return fmt.Errorf("failed to register StrokeDrawn consumer: %w", err)
	}

	m.logger.Info("Registered store event consumers", "events", "StrokeDrawn")
	return nil
}

func (m *Module) handleStrokeDrawn(ctx context.Context, event events.StrokeDrawnEvent, _ *mono.Msg) error {
	if err := m.sessions.TouchActivity(ctx, event.SessionID); err != nil {
		m.logger.Warn("Failed to update session activity",
			"sessionId", event.SessionID, "error", err)
	}
	// Activity stamps are best-effort, never retried.
	return nil
}

// Sessions returns the session repository. Valid after Start.
func (m *Module) Sessions() *SessionRepository {
	return m.sessions
}

// Strokes returns the stroke repository. Valid after Start.
func (m *Module) Strokes() *StrokeRepository {
	return m.strokes
}

// Users returns the user repository. Valid after Start.
func (m *Module) Users() *UserRepository {
	return m.users
}
