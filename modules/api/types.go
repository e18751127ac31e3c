package api

import "github.com/example/whiteboard-sync/modules/store"

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResponse carries a fresh token together with the account it belongs to.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// CreateSessionRequest is the body for POST /api/sessions.
type CreateSessionRequest struct {
	Name     string                 `json:"name"`
	IsPublic bool                   `json:"isPublic"`
	MaxUsers int                    `json:"maxUsers"`
	Settings *store.SessionSettings `json:"settings"`
}

// SessionResponse is the public view of a whiteboard session.
type SessionResponse struct {
	SessionID      string                `json:"sessionId"`
	Name           string                `json:"name"`
	CreatedBy      string                `json:"createdBy"`
	IsPublic       bool                  `json:"isPublic"`
	MaxUsers       int                   `json:"maxUsers"`
	InviteCode     string                `json:"inviteCode"`
	Settings       store.SessionSettings `json:"settings"`
	ActiveUsers    int                   `json:"activeUsers"`
	LastActivityAt int64                 `json:"lastActivityAt"`
	CreatedAt      int64                 `json:"createdAt"`
}

// SessionListResponse is the paginated list for GET /api/sessions/my-sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// HistoryResponse carries the live stroke log of a session.
type HistoryResponse struct {
	SessionID string         `json:"sessionId"`
	Strokes   []store.Stroke `json:"strokes"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
