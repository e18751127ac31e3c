package store

import (
	"time"

	domain "github.com/example/whiteboard-sync/domain/board"
)

// SessionSettings holds the per-board canvas configuration.
type SessionSettings struct {
	CanvasWidth     int    `gorm:"default:3000" json:"canvasWidth"`
	CanvasHeight    int    `gorm:"default:2000" json:"canvasHeight"`
	BackgroundColor string `gorm:"size:16;default:#ffffff" json:"backgroundColor"`
}

// DefaultSessionSettings returns the canvas defaults applied when a session
// is created without explicit settings.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		CanvasWidth:     3000,
		CanvasHeight:    2000,
		BackgroundColor: "#ffffff",
	}
}

// Session is the durable record of one whiteboard. It exists independently
// of any active room; a session with no connected participants is still
// joinable.
type Session struct {
	SessionID      string          `gorm:"primarykey;size:36" json:"sessionId"`
	Name           string          `gorm:"size:100;not null" json:"name"`
	CreatedBy      string          `gorm:"size:36;index" json:"createdBy"`
	IsPublic       bool            `json:"isPublic"`
	MaxUsers       int             `gorm:"default:10" json:"maxUsers"`
	InviteCode     string          `gorm:"size:8;uniqueIndex" json:"inviteCode,omitempty"`
	LastActivityAt time.Time       `json:"lastActivityAt"`
	Settings       SessionSettings `gorm:"embedded;embeddedPrefix:settings_" json:"settings"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// TableName returns the table name for the Session model.
func (Session) TableName() string {
	return "sessions"
}

// Stroke is one durable drawing action. Strokes are never physically
// deleted by undo: Deleted marks a stroke retracted, redo clears it again.
// StrokeID is client-generated and globally unique, which makes inserts
// idempotent.
type Stroke struct {
	StrokeID    string               `gorm:"primarykey;size:64" json:"id"`
	SessionID   string               `gorm:"size:36;index:idx_strokes_session_deleted" json:"sessionId"`
	UserID      string               `gorm:"size:36" json:"userId,omitempty"`
	Tool        string               `gorm:"size:16;not null" json:"tool"`
	Points      []domain.StrokePoint `gorm:"serializer:json" json:"points"`
	Color       string               `gorm:"size:16;default:#000000" json:"color"`
	StrokeWidth float64              `gorm:"default:3" json:"strokeWidth"`
	Opacity     float64              `gorm:"default:1" json:"opacity"`
	FillColor   string               `gorm:"size:16" json:"fillColor,omitempty"`
	Text        string               `json:"text,omitempty"`
	FontSize    float64              `json:"fontSize,omitempty"`
	FontFamily  string               `gorm:"size:64" json:"fontFamily,omitempty"`
	Deleted     bool                 `gorm:"index:idx_strokes_session_deleted;default:false" json:"deleted"`
	DeletedAt   *time.Time           `json:"deletedAt,omitempty"`
	CreatedAt   time.Time            `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// TableName returns the table name for the Stroke model.
func (Stroke) TableName() string {
	return "strokes"
}

// User is a registered account. Anonymous participants have no User record.
type User struct {
	ID           string     `gorm:"primarykey;size:36" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:100;not null" json:"-"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}
