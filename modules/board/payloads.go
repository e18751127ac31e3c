package board

import (
	domain "github.com/example/whiteboard-sync/domain/board"
	"github.com/example/whiteboard-sync/modules/store"
)

// Outbound event names.
const (
	EventSessionState  = "session-state"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventStrokeDrawn   = "stroke-drawn"
	EventCursorUpdate  = "cursor-update"
	EventStrokeUndone  = "stroke-undone"
	EventStrokeRedone  = "stroke-redone"
	EventCanvasCleared = "canvas-cleared"
	EventError         = "error"
)

// SessionStatePayload is the full snapshot sent to a (re)joining
// connection. It is the only state-transfer mechanism: no diffing against
// client-held state is attempted.
type SessionStatePayload struct {
	Strokes      []store.Stroke       `json:"strokes"`
	Participants []domain.Participant `json:"participants"`
	Timestamp    int64                `json:"timestamp"`
}

// UserJoinedPayload announces a new participant to existing room members.
type UserJoinedPayload struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	CursorColor   string `json:"cursorColor"`
	Timestamp     int64  `json:"timestamp"`
}

// UserLeftPayload announces a departed participant to remaining members.
type UserLeftPayload struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Timestamp     int64  `json:"timestamp"`
}

// StrokeDrawnPayload carries a freshly persisted stroke to other members.
type StrokeDrawnPayload struct {
	ParticipantID string       `json:"participantId"`
	Name          string       `json:"name"`
	Stroke        store.Stroke `json:"stroke"`
}

// CursorUpdatePayload carries a throttled cursor position to other members.
type CursorUpdatePayload struct {
	ParticipantID string          `json:"participantId"`
	Name          string          `json:"name"`
	Position      domain.Position `json:"position"`
	CursorColor   string          `json:"cursorColor"`
}

// StrokeUndonePayload carries only the stroke id; viewers already hold the
// stroke body.
type StrokeUndonePayload struct {
	StrokeID      string `json:"strokeId"`
	ParticipantID string `json:"participantId"`
}

// StrokeRedonePayload carries the full stroke record, since a viewer that
// joined after the undo never saw the body.
type StrokeRedonePayload struct {
	Stroke        store.Stroke `json:"stroke"`
	ParticipantID string       `json:"participantId"`
}

// CanvasClearedPayload is sent to every participant, requester included.
type CanvasClearedPayload struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Timestamp     int64  `json:"timestamp"`
}

// ErrorPayload reports a handler failure to the requesting connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
