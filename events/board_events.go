package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// StrokeDrawnEvent is emitted after a stroke has been durably persisted.
type StrokeDrawnEvent struct {
	SessionID string    `json:"sessionId"`
	StrokeID  string    `json:"strokeId"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a connection joins a session room.
type UserJoinedEvent struct {
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a connection leaves a session room.
type UserLeftEvent struct {
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
}

// CanvasClearedEvent is emitted after all strokes of a session were retracted.
type CanvasClearedEvent struct {
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event definitions for the board domain.
var (
	StrokeDrawnV1 = helper.EventDefinition[StrokeDrawnEvent](
		"board",
		"StrokeDrawn",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"board",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"board",
		"UserLeft",
		"v1",
	)

	CanvasClearedV1 = helper.EventDefinition[CanvasClearedEvent](
		"board",
		"CanvasCleared",
		"v1",
	)
)
