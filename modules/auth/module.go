package auth

import (
	"context"
	"log/slog"

	"github.com/go-monolith/mono"

	"github.com/example/whiteboard-sync/modules/store"
)

// Module wires the auth service to the store module.
type Module struct {
	store   *store.Module
	service *Service
	logger  *slog.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)

// NewModule creates a new auth module.
func NewModule(storeModule *store.Module, log *slog.Logger) *Module {
	return &Module{
		store:  storeModule,
		logger: log,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Start builds the auth service. The store module must have started first
// so its repositories exist.
func (m *Module) Start(_ context.Context) error {
	m.service = NewService(
		m.store.Users(),
		NewPasswordHasher(),
		NewJWTManager(ConfigFromEnv()),
	)
	m.logger.Info("Auth module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// Service returns the auth service. Valid after Start.
func (m *Module) Service() *Service {
	return m.service
}
