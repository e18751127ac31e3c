package board

// Position is a cursor location on the shared canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePoint is one sampled input point within a stroke. Timestamp is
// milliseconds since the start of the stroke, as reported by the client.
type StrokePoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Pressure  float64 `json:"pressure"`
	Timestamp int64   `json:"timestamp"`
}

// Participant is the public presence record for one connection in a room.
type Participant struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	Name        string    `json:"name"`
	CursorColor string    `json:"cursorColor"`
	Cursor      *Position `json:"cursor,omitempty"`
}
