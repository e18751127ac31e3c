package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/whiteboard-sync/modules/auth"
	"github.com/example/whiteboard-sync/modules/store"
)

const (
	maxSessionNameLength = 100
	defaultHistoryLimit  = 1000
	maxSessionUsers      = 50
)

// register handles POST /api/auth/register.
func (m *Module) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, token, err := m.auth.Service().Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserExists):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Error:   "email_taken",
				Message: "An account with this email already exists",
			})
		case errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrWeakPassword),
			errors.Is(err, auth.ErrPasswordTooLong),
			errors.Is(err, auth.ErrNameRequired):
			return badRequest(c, err.Error())
		}
		m.logger.Error("registration failed", "error", err)
		return serverError(c, "Registration failed")
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{
		Token: token,
		User:  userResponse(user),
	})
}

// login handles POST /api/auth/login.
func (m *Module) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	user, token, err := m.auth.Service().Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Invalid email or password",
			})
		}
		m.logger.Error("login failed", "error", err)
		return serverError(c, "Login failed")
	}

	return c.JSON(AuthResponse{
		Token: token,
		User:  userResponse(user),
	})
}

// me handles GET /api/auth/me.
func (m *Module) me(c *fiber.Ctx) error {
	return c.JSON(userResponse(currentUser(c)))
}

// createSession handles POST /api/sessions.
func (m *Module) createSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "Session name is required")
	}
	if len(req.Name) > maxSessionNameLength {
		return badRequest(c, "Session name too long (max 100 characters)")
	}
	if req.MaxUsers < 0 || req.MaxUsers > maxSessionUsers {
		return badRequest(c, "maxUsers out of range")
	}

	code, err := newInviteCode()
	if err != nil {
		m.logger.Error("invite code generation failed", "error", err)
		return serverError(c, "Failed to create session")
	}

	session := &store.Session{
		SessionID:  uuid.New().String(),
		Name:       req.Name,
		CreatedBy:  currentUser(c).ID,
		IsPublic:   req.IsPublic,
		MaxUsers:   req.MaxUsers,
		InviteCode: code,
	}
	if session.MaxUsers == 0 {
		session.MaxUsers = 10
	}
	if req.Settings != nil {
		session.Settings = *req.Settings
	} else {
		session.Settings = store.DefaultSessionSettings()
	}

	if err := m.store.Sessions().Create(c.UserContext(), session); err != nil {
		m.logger.Error("session creation failed", "error", err)
		return serverError(c, "Failed to create session")
	}

	return c.Status(fiber.StatusCreated).JSON(m.sessionResponse(session))
}

// mySessions handles GET /api/sessions/my-sessions.
func (m *Module) mySessions(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	sessions, total, err := m.store.Sessions().FindByOwner(c.UserContext(), currentUser(c).ID, page, limit)
	if err != nil {
		m.logger.Error("session listing failed", "error", err)
		return serverError(c, "Failed to list sessions")
	}

	resp := SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(sessions)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, m.sessionResponse(&sessions[i]))
	}
	return c.JSON(resp)
}

// getSessionByInvite handles GET /api/sessions/invite/:inviteCode.
func (m *Module) getSessionByInvite(c *fiber.Ctx) error {
	session, err := m.store.Sessions().FindByInviteCode(c.UserContext(), c.Params("inviteCode"))
	if err != nil {
		return m.sessionLookupError(c, err)
	}
	return c.JSON(m.sessionResponse(session))
}

// getSession handles GET /api/sessions/:sessionId.
func (m *Module) getSession(c *fiber.Ctx) error {
	session, err := m.store.Sessions().FindByID(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return m.sessionLookupError(c, err)
	}
	return c.JSON(m.sessionResponse(session))
}

// getHistory handles GET /api/sessions/:sessionId/history. It returns the
// live strokes in replay order, the same view a joining client receives.
func (m *Module) getHistory(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if _, err := m.store.Sessions().FindByID(c.UserContext(), sessionID); err != nil {
		return m.sessionLookupError(c, err)
	}

	limit := queryInt(c, "limit", defaultHistoryLimit)
	strokes, err := m.store.Strokes().ListLive(c.UserContext(), sessionID, limit)
	if err != nil {
		m.logger.Error("history fetch failed", "sessionId", sessionID, "error", err)
		return serverError(c, "Failed to load history")
	}
	if strokes == nil {
		strokes = []store.Stroke{}
	}

	return c.JSON(HistoryResponse{
		SessionID: sessionID,
		Strokes:   strokes,
	})
}

// deleteSession handles DELETE /api/sessions/:sessionId. Only the creator
// may delete; the stroke log goes with the session.
func (m *Module) deleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	session, err := m.store.Sessions().FindByID(c.UserContext(), sessionID)
	if err != nil {
		return m.sessionLookupError(c, err)
	}
	if session.CreatedBy != currentUser(c).ID {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Only the session creator can delete it",
		})
	}

	if err := m.store.Sessions().Delete(c.UserContext(), sessionID); err != nil {
		m.logger.Error("session deletion failed", "sessionId", sessionID, "error", err)
		return serverError(c, "Failed to delete session")
	}
	if err := m.store.Strokes().DeleteForSession(c.UserContext(), sessionID); err != nil {
		m.logger.Error("stroke cleanup failed", "sessionId", sessionID, "error", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module": "api",
		},
	})
}

func (m *Module) sessionResponse(s *store.Session) SessionResponse {
	return SessionResponse{
		SessionID:      s.SessionID,
		Name:           s.Name,
		CreatedBy:      s.CreatedBy,
		IsPublic:       s.IsPublic,
		MaxUsers:       s.MaxUsers,
		InviteCode:     s.InviteCode,
		Settings:       s.Settings,
		ActiveUsers:    m.board.ActiveUsers(s.SessionID),
		LastActivityAt: s.LastActivityAt.UnixMilli(),
		CreatedAt:      s.CreatedAt.UnixMilli(),
	}
}

func (m *Module) sessionLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
	}
	m.logger.Error("session lookup failed", "error", err)
	return serverError(c, "Failed to load session")
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func serverError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

func queryInt(c *fiber.Ctx, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
