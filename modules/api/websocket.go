package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	domain "github.com/example/whiteboard-sync/domain/board"
	"github.com/example/whiteboard-sync/modules/board"
	"github.com/example/whiteboard-sync/modules/store"
)

// Client-to-server event names.
const (
	wsTypeJoin    = "join-session"
	wsTypeStroke  = "draw-stroke"
	wsTypeCursor  = "cursor-move"
	wsTypeUndo    = "undo"
	wsTypeRedo    = "redo"
	wsTypeClear   = "clear-canvas"
	wsTypeConnect = "connected"
)

// wsEnvelope is the uniform frame in both directions: a type tag plus an
// event-specific payload.
type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinPayload struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
}

type strokePayload struct {
	SessionID string        `json:"sessionId"`
	Stroke    *store.Stroke `json:"stroke"`
}

type cursorPayload struct {
	SessionID string           `json:"sessionId"`
	Position  *domain.Position `json:"position"`
}

type strokeRefPayload struct {
	SessionID string `json:"sessionId"`
	StrokeID  string `json:"strokeId"`
}

type sessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// wsWriteTimeout bounds how long a single outbound frame may block. A
// stalled peer would otherwise hold the connection mutex and, through room
// broadcasts, stall its whole room.
const wsWriteTimeout = 10 * time.Second

// frameWriter is the slice of *websocket.Conn that outbound delivery needs.
type frameWriter interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
}

// wsConn wraps a websocket connection behind a write lock. Broadcasts reach
// a connection from many room goroutines; the underlying connection allows
// one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn frameWriter
}

var _ board.Sender = (*wsConn)(nil)

// Send implements board.Sender.
func (w *wsConn) Send(event string, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(outEnvelope{Type: event, Payload: payload})
}

// handleWebSocket drives one client connection: it authenticates the
// optional token, then loops reading events and dispatching them to the
// router. Handler errors go back to this connection only; broadcasts to
// others are never affected.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	sender := &wsConn{conn: c}
	router := m.board.Router()

	// A bad or absent token degrades to an anonymous connection.
	var userID string
	if token := c.Query("token"); token != "" {
		id, err := m.auth.Service().Verify(token)
		if err != nil {
			m.logger.Debug("websocket token rejected", "connId", connID, "error", err)
		} else {
			userID = id
		}
	}

	defer func() {
		router.Disconnect(connID)
		m.logger.Info("websocket client disconnected", "connId", connID)
	}()

	m.logger.Info("websocket client connected", "connId", connID, "authenticated", userID != "")

	if err := sender.Send(wsTypeConnect, connectedPayload{ConnectionID: connID}); err != nil {
		m.logger.Warn("failed to send welcome frame", "connId", connID, "error", err)
		return
	}

	ctx := context.Background()
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("websocket read error", "connId", connID, "error", err)
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			m.sendError(sender, "Invalid message format")
			continue
		}

		if err := m.dispatch(ctx, router, sender, connID, userID, env); err != nil {
			m.sendError(sender, err.Error())
		}
	}
}

func (m *Module) dispatch(ctx context.Context, router *board.Router, sender *wsConn, connID, userID string, env wsEnvelope) error {
	switch env.Type {
	case wsTypeJoin:
		var p joinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return board.ErrMalformedEvent
		}
		return router.Join(ctx, sender, connID, p.SessionID, p.UserName, userID)

	case wsTypeStroke:
		var p strokePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return board.ErrMalformedEvent
		}
		return router.SubmitStroke(ctx, connID, p.SessionID, p.Stroke)

	case wsTypeCursor:
		var p cursorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Position == nil {
			return board.ErrMalformedEvent
		}
		return router.MoveCursor(ctx, connID, p.SessionID, *p.Position)

	case wsTypeUndo:
		var p strokeRefPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return board.ErrMalformedEvent
		}
		return router.Undo(ctx, connID, p.SessionID, p.StrokeID)

	case wsTypeRedo:
		var p strokeRefPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return board.ErrMalformedEvent
		}
		return router.Redo(ctx, connID, p.SessionID, p.StrokeID)

	case wsTypeClear:
		var p sessionRefPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return board.ErrMalformedEvent
		}
		return router.ClearCanvas(ctx, connID, p.SessionID)

	default:
		m.sendError(sender, "Unknown message type: "+env.Type)
		return nil
	}
}

func (m *Module) sendError(sender *wsConn, message string) {
	_ = sender.Send(board.EventError, board.ErrorPayload{Message: message})
}
