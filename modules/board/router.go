package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-monolith/mono"

	domain "github.com/example/whiteboard-sync/domain/board"
	"github.com/example/whiteboard-sync/events"
	"github.com/example/whiteboard-sync/modules/store"
)

var (
	// ErrSessionNotFound is returned when a join targets an unknown session.
	// Terminal for that join attempt; the connection stays open.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMalformedEvent is returned when an event is missing required fields.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrNotInSession is returned when a connection issues an event for a
	// session it has not joined.
	ErrNotInSession = errors.New("connection has not joined this session")
)

// validTools is the closed set of stroke tool kinds.
var validTools = map[string]bool{
	"pen":         true,
	"highlighter": true,
	"eraser":      true,
	"rectangle":   true,
	"circle":      true,
	"line":        true,
	"arrow":       true,
	"text":        true,
}

// Router applies inbound session events: it validates them, persists their
// side effects, mutates room state and fans outbound events out to the
// right recipient set. Every transport connection drives the router from
// its own goroutine; rooms guard their shared state, and each connection's
// events are handled (and therefore broadcast) in submission order.
type Router struct {
	sessions SessionDirectory
	strokes  StrokeStore
	registry Registry
	bus      mono.EventBus
	logger   *slog.Logger

	cursorInterval time.Duration
	now            func() time.Time

	// conns maps a connection id to the session it has joined. A
	// connection is in at most one room at a time.
	conns sync.Map
}

// NewRouter creates an event router. bus may be nil, in which case no
// internal events are published.
func NewRouter(sessions SessionDirectory, strokes StrokeStore, registry Registry, bus mono.EventBus, logger *slog.Logger) *Router {
	return &Router{
		sessions:       sessions,
		strokes:        strokes,
		registry:       registry,
		bus:            bus,
		logger:         logger,
		cursorInterval: DefaultCursorInterval,
		now:            time.Now,
	}
}

// Join registers a connection with a session room and replies with a full
// snapshot. The snapshot is the sole state-transfer mechanism: a reconnect
// is indistinguishable from a fresh join.
func (r *Router) Join(ctx context.Context, conn Sender, connID, sessionID, displayName, userID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrMalformedEvent)
	}

	// Existence is checked durably so a session with no active room is
	// still joinable.
	if _, err := r.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("session lookup failed: %w", err)
	}

	if displayName == "" {
		displayName = "Anonymous"
	}

	// A connection belongs to at most one room; rejoining implies leaving
	// the previous room first.
	r.leave(connID)

	now := r.now()
	p := &Participant{
		ID:          connID,
		UserID:      userID,
		Name:        displayName,
		CursorColor: randomCursorColor(),
		sender:      conn,
		joinedAt:    now,
	}
	// Membership is established atomically with room resolution: a
	// concurrent last-member leave can either evict the room before this
	// (a fresh room is created) or see the new member and keep it, never
	// strand the joiner in an evicted room.
	room := r.registry.Join(sessionID, p)
	r.conns.Store(connID, sessionID)

	room.Broadcast(connID, EventUserJoined, UserJoinedPayload{
		ParticipantID: connID,
		Name:          displayName,
		CursorColor:   p.CursorColor,
		Timestamp:     now.UnixMilli(),
	})

	strokes, err := r.strokes.ListLive(ctx, sessionID, 0)
	if err != nil {
		return fmt.Errorf("failed to load session history: %w", err)
	}
	if strokes == nil {
		strokes = []store.Stroke{}
	}

	if err := conn.Send(EventSessionState, SessionStatePayload{
		Strokes:      strokes,
		Participants: room.Participants(),
		Timestamp:    now.UnixMilli(),
	}); err != nil {
		r.logger.Warn("failed to deliver snapshot", "connId", connID, "error", err)
	}

	r.publishUserJoined(sessionID, connID, displayName, now)
	r.logger.Info("participant joined session",
		"sessionId", sessionID, "connId", connID, "name", displayName)
	return nil
}

// SubmitStroke persists a stroke and then broadcasts it to the other room
// members. Persist strictly precedes broadcast so a crash in between leaves
// durable state recoverable by rejoin. A duplicate stroke id is a no-op:
// one durable record, one broadcast.
func (r *Router) SubmitStroke(ctx context.Context, connID, sessionID string, stroke *store.Stroke) error {
	if sessionID == "" || stroke == nil || stroke.StrokeID == "" {
		return fmt.Errorf("%w: sessionId and stroke.id are required", ErrMalformedEvent)
	}
	if !validTools[stroke.Tool] {
		return fmt.Errorf("%w: unknown tool %q", ErrMalformedEvent, stroke.Tool)
	}

	room, p, err := r.member(connID, sessionID)
	if err != nil {
		return err
	}

	stroke.SessionID = sessionID
	stroke.UserID = p.UserID
	stroke.Deleted = false
	stroke.DeletedAt = nil

	inserted, err := r.strokes.Insert(ctx, stroke)
	if err != nil {
		return fmt.Errorf("failed to persist stroke: %w", err)
	}
	if !inserted {
		// Duplicate delivery: the record exists and was broadcast once.
		return nil
	}

	room.Broadcast(connID, EventStrokeDrawn, StrokeDrawnPayload{
		ParticipantID: connID,
		Name:          p.Name,
		Stroke:        *stroke,
	})

	if r.bus != nil {
		ev := events.StrokeDrawnEvent{
			SessionID: sessionID,
			StrokeID:  stroke.StrokeID,
			UserID:    p.UserID,
			Timestamp: r.now(),
		}
		if err := events.StrokeDrawnV1.Publish(r.bus, ev, nil); err != nil {
			r.logger.Warn("failed to publish StrokeDrawn event", "error", err)
		}
	}
	return nil
}

// MoveCursor records a cursor position and broadcasts it to other members,
// at most once per throttle interval per connection. Intermediate positions
// are dropped; a broadcast always carries the newest position. Cursor state
// is never persisted.
func (r *Router) MoveCursor(_ context.Context, connID, sessionID string, pos domain.Position) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrMalformedEvent)
	}

	room, _, err := r.member(connID, sessionID)
	if err != nil {
		return err
	}

	view, due := room.UpdateCursor(connID, pos, r.now(), r.cursorInterval)
	if !due {
		return nil
	}

	room.Broadcast(connID, EventCursorUpdate, CursorUpdatePayload{
		ParticipantID: connID,
		Name:          view.Name,
		Position:      pos,
		CursorColor:   view.CursorColor,
	})
	return nil
}

// Undo retracts the referenced stroke and notifies other members with the
// stroke id only. The id comes from the requesting client's local stack;
// the server does not verify authorship or recency.
func (r *Router) Undo(ctx context.Context, connID, sessionID, strokeID string) error {
	if sessionID == "" || strokeID == "" {
		return fmt.Errorf("%w: sessionId and strokeId are required", ErrMalformedEvent)
	}

	room, _, err := r.member(connID, sessionID)
	if err != nil {
		return err
	}

	if err := r.strokes.SetLiveness(ctx, strokeID, false); err != nil {
		return fmt.Errorf("failed to retract stroke: %w", err)
	}

	room.Broadcast(connID, EventStrokeUndone, StrokeUndonePayload{
		StrokeID:      strokeID,
		ParticipantID: connID,
	})
	return nil
}

// Redo restores the referenced stroke and notifies other members with the
// full record, since a viewer that joined after the undo never saw it.
func (r *Router) Redo(ctx context.Context, connID, sessionID, strokeID string) error {
	if sessionID == "" || strokeID == "" {
		return fmt.Errorf("%w: sessionId and strokeId are required", ErrMalformedEvent)
	}

	room, _, err := r.member(connID, sessionID)
	if err != nil {
		return err
	}

	if err := r.strokes.SetLiveness(ctx, strokeID, true); err != nil {
		return fmt.Errorf("failed to restore stroke: %w", err)
	}
	stroke, err := r.strokes.FindByID(ctx, strokeID)
	if err != nil {
		return fmt.Errorf("failed to load restored stroke: %w", err)
	}

	room.Broadcast(connID, EventStrokeRedone, StrokeRedonePayload{
		Stroke:        *stroke,
		ParticipantID: connID,
	})
	return nil
}

// ClearCanvas retracts every stroke of the session in one bulk flip and
// broadcasts to all participants, requester included, so every client
// converges immediately. The flip keeps no per-stroke prior state, so a
// later single redo cannot selectively restore a pre-clear stroke.
func (r *Router) ClearCanvas(ctx context.Context, connID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrMalformedEvent)
	}

	room, p, err := r.member(connID, sessionID)
	if err != nil {
		return err
	}

	if err := r.strokes.SetLivenessForSession(ctx, sessionID, false); err != nil {
		return fmt.Errorf("failed to clear canvas: %w", err)
	}

	now := r.now()
	room.Broadcast("", EventCanvasCleared, CanvasClearedPayload{
		ParticipantID: connID,
		Name:          p.Name,
		Timestamp:     now.UnixMilli(),
	})

	if r.bus != nil {
		ev := events.CanvasClearedEvent{
			SessionID:     sessionID,
			ParticipantID: connID,
			Timestamp:     now,
		}
		if err := events.CanvasClearedV1.Publish(r.bus, ev, nil); err != nil {
			r.logger.Warn("failed to publish CanvasCleared event", "error", err)
		}
	}
	return nil
}

// Disconnect removes the connection from its room, notifies remaining
// members and evicts the room once empty. No durable state is touched.
func (r *Router) Disconnect(connID string) {
	r.leave(connID)
}

func (r *Router) leave(connID string) {
	v, ok := r.conns.LoadAndDelete(connID)
	if !ok {
		return
	}
	sessionID := v.(string)

	room, ok := r.registry.Get(sessionID)
	if !ok {
		return
	}
	p, remaining := room.Remove(connID)
	if p == nil {
		return
	}

	now := r.now()
	room.Broadcast(connID, EventUserLeft, UserLeftPayload{
		ParticipantID: connID,
		Name:          p.Name,
		Timestamp:     now.UnixMilli(),
	})

	if remaining == 0 {
		r.registry.RemoveIfEmpty(sessionID)
	}

	if r.bus != nil {
		ev := events.UserLeftEvent{
			SessionID:     sessionID,
			ParticipantID: connID,
			Name:          p.Name,
			Timestamp:     now,
		}
		if err := events.UserLeftV1.Publish(r.bus, ev, nil); err != nil {
			r.logger.Warn("failed to publish UserLeft event", "error", err)
		}
	}

	r.logger.Info("participant left session",
		"sessionId", sessionID, "connId", connID, "name", p.Name)
}

func (r *Router) member(connID, sessionID string) (*Room, *Participant, error) {
	room, ok := r.registry.Get(sessionID)
	if !ok {
		return nil, nil, ErrNotInSession
	}
	p, ok := room.Get(connID)
	if !ok {
		return nil, nil, ErrNotInSession
	}
	return room, p, nil
}

func (r *Router) publishUserJoined(sessionID, connID, name string, now time.Time) {
	if r.bus == nil {
		return
	}
	ev := events.UserJoinedEvent{
		SessionID:     sessionID,
		ParticipantID: connID,
		Name:          name,
		Timestamp:     now,
	}
	if err := events.UserJoinedV1.Publish(r.bus, ev, nil); err != nil {
		r.logger.Warn("failed to publish UserJoined event", "error", err)
	}
}
