package board

import (
	"context"

	"github.com/example/whiteboard-sync/modules/store"
)

// SessionDirectory is the read-only view of durable session metadata the
// router needs. Existence is checked against durable storage, not the room
// registry, so a session with no active room is still joinable.
type SessionDirectory interface {
	FindByID(ctx context.Context, sessionID string) (*store.Session, error)
}

// StrokeStore is the durable stroke log the router persists into.
type StrokeStore interface {
	Insert(ctx context.Context, stroke *store.Stroke) (inserted bool, err error)
	FindByID(ctx context.Context, strokeID string) (*store.Stroke, error)
	ListLive(ctx context.Context, sessionID string, limit int) ([]store.Stroke, error)
	SetLiveness(ctx context.Context, strokeID string, live bool) error
	SetLivenessForSession(ctx context.Context, sessionID string, live bool) error
}

// Sender delivers one outbound event to a single connection.
// Implementations must be safe for concurrent use and must deliver events
// sent from one goroutine in call order.
type Sender interface {
	Send(event string, payload any) error
}
