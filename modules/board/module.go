package board

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-monolith/mono"

	"github.com/example/whiteboard-sync/events"
	"github.com/example/whiteboard-sync/modules/store"
)

// Module owns live session state: the room registry and the event router.
// It sits between the transport layer (which feeds it connection events)
// and the store module (which gives it durable session and stroke access).
type Module struct {
	store  *store.Module
	logger *slog.Logger
	bus    mono.EventBus

	registry Registry
	router   *Router
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the board module.
func NewModule(storeModule *store.Module, logger *slog.Logger) *Module {
	return &Module{
		store:  storeModule,
		logger: logger.With("module", "board"),
	}
}

// Name implements mono.Module.
func (m *Module) Name() string {
	return "board"
}

// SetEventBus implements mono.EventBusAwareModule.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.bus = bus
}

// EmitEvents implements mono.EventEmitterModule.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.StrokeDrawnV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.CanvasClearedV1.ToBase(),
	}
}

// Start implements mono.Module.
func (m *Module) Start(ctx context.Context) error {
	sessions := m.store.Sessions()
	strokes := m.store.Strokes()
	if sessions == nil || strokes == nil {
		return fmt.Errorf("store module is not started")
	}

	m.registry = NewMemoryRegistry()
	m.router = NewRouter(sessions, strokes, m.registry, m.bus, m.logger)

	m.logger.Info("board module started")
	return nil
}

// Stop implements mono.Module. Rooms are ephemeral, so there is nothing to
// flush; connected clients are torn down by the transport layer.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("board module stopped")
	return nil
}

// Health implements mono.HealthCheckableModule.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.router == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "router not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: fmt.Sprintf("%d active rooms", m.registry.Len()),
	}
}

// Router returns the event router for the transport layer.
func (m *Module) Router() *Router {
	return m.router
}

// ActiveUsers returns the live participant count for a session, zero when
// no room is active.
func (m *Module) ActiveUsers(sessionID string) int {
	if m.registry == nil {
		return 0
	}
	room, ok := m.registry.Get(sessionID)
	if !ok {
		return 0
	}
	return room.Count()
}
