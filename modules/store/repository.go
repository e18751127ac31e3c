package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStrokeNotFound is returned when a stroke is not found.
	ErrStrokeNotFound = errors.New("stroke not found")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a user with the same email already exists.
	ErrUserExists = errors.New("user with this email already exists")
)

// SessionRepository handles session metadata persistence using GORM.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create saves a new session.
func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID retrieves a session by its public session id.
func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := r.db.WithContext(ctx).First(&session, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

// FindByInviteCode retrieves a session by its invite code.
func (r *SessionRepository) FindByInviteCode(ctx context.Context, code string) (*Session, error) {
	var session Session
	if err := r.db.WithContext(ctx).First(&session, "invite_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session by invite: %w", err)
	}
	return &session, nil
}

// FindByOwner retrieves sessions created by a user, most recently active
// first, with page starting at 1.
func (r *SessionRepository) FindByOwner(ctx context.Context, userID string, page, limit int) ([]Session, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&Session{}).Where("created_by = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("last_activity_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

// TouchActivity stamps the session's last activity time.
func (r *SessionRepository) TouchActivity(ctx context.Context, sessionID string) error {
	result := r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("last_activity_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to touch session activity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session record. Strokes are deleted separately by the
// caller so the two operations stay independent.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	result := r.db.WithContext(ctx).Delete(&Session{}, "session_id = ?", sessionID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// StrokeRepository handles stroke persistence using GORM.
type StrokeRepository struct {
	db *gorm.DB
}

// NewStrokeRepository creates a new StrokeRepository.
func NewStrokeRepository(db *gorm.DB) *StrokeRepository {
	return &StrokeRepository{db: db}
}

// Insert saves a stroke. The stroke id is the primary key, so a duplicate
// submission is a no-op: the method reports whether a new row was written.
func (r *StrokeRepository) Insert(ctx context.Context, stroke *Stroke) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(stroke)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert stroke: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByID retrieves a stroke by its id.
func (r *StrokeRepository) FindByID(ctx context.Context, strokeID string) (*Stroke, error) {
	var stroke Stroke
	if err := r.db.WithContext(ctx).First(&stroke, "stroke_id = ?", strokeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStrokeNotFound
		}
		return nil, fmt.Errorf("failed to find stroke: %w", err)
	}
	return &stroke, nil
}

// ListLive returns all non-retracted strokes of a session ordered by
// creation time ascending, which is the replay order for joining clients.
// A limit of 0 means no limit.
func (r *StrokeRepository) ListLive(ctx context.Context, sessionID string, limit int) ([]Stroke, error) {
	query := r.db.WithContext(ctx).
		Where("session_id = ? AND deleted = ?", sessionID, false).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var strokes []Stroke
	if err := query.Find(&strokes).Error; err != nil {
		return nil, fmt.Errorf("failed to list strokes: %w", err)
	}
	return strokes, nil
}

// SetLiveness toggles the retraction flag of a single stroke. Undo passes
// live=false, redo passes live=true.
func (r *StrokeRepository) SetLiveness(ctx context.Context, strokeID string, live bool) error {
	updates := map[string]any{"deleted": !live}
	if live {
		updates["deleted_at"] = nil
	} else {
		now := time.Now()
		updates["deleted_at"] = &now
	}

	result := r.db.WithContext(ctx).Model(&Stroke{}).
		Where("stroke_id = ?", strokeID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set stroke liveness: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStrokeNotFound
	}
	return nil
}

// SetLivenessForSession toggles the retraction flag of every stroke in a
// session. clear-canvas passes live=false. The flip keeps no record of the
// previous per-stroke state, so it is not reversible stroke by stroke.
func (r *StrokeRepository) SetLivenessForSession(ctx context.Context, sessionID string, live bool) error {
	updates := map[string]any{"deleted": !live}
	if live {
		updates["deleted_at"] = nil
	} else {
		now := time.Now()
		updates["deleted_at"] = &now
	}

	err := r.db.WithContext(ctx).Model(&Stroke{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to set session liveness: %w", err)
	}
	return nil
}

// DeleteForSession physically removes all strokes of a session. Used only
// when the session itself is deleted.
func (r *StrokeRepository) DeleteForSession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Delete(&Stroke{}, "session_id = ?", sessionID).Error; err != nil {
		return fmt.Errorf("failed to delete session strokes: %w", err)
	}
	return nil
}

// UserRepository handles user persistence using GORM.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create saves a new user.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindByEmail retrieves a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// StampLogin records a successful login.
func (r *UserRepository) StampLogin(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to stamp login: %w", err)
	}
	return nil
}
