package board

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	domain "github.com/example/whiteboard-sync/domain/board"
)

// cursorPalette holds high-contrast cursor colors. A color is picked
// uniformly at random on join and stays stable for the membership.
var cursorPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
	"#BB8FCE", "#85C1E9", "#F8B500", "#FF6F61",
}

func randomCursorColor() string {
	return cursorPalette[rand.IntN(len(cursorPalette))]
}

// Participant is one connection's presence inside a Room. ID, UserID, Name
// and CursorColor are immutable after join; cursor state is guarded by the
// room lock.
type Participant struct {
	ID          string
	UserID      string
	Name        string
	CursorColor string

	sender   Sender
	joinedAt time.Time
	cursor   *domain.Position
	throttle cursorThrottle
}

// View returns the public presence record.
func (p *Participant) View() domain.Participant {
	v := domain.Participant{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		CursorColor: p.CursorColor,
	}
	if p.cursor != nil {
		c := *p.cursor
		v.Cursor = &c
	}
	return v
}

// Room is the ephemeral, in-memory participant set for one session. It
// holds no durable data: a crash loses presence, never stroke history.
type Room struct {
	sessionID string

	mu           sync.RWMutex
	participants map[string]*Participant
}

// NewRoom creates an empty room for a session.
func NewRoom(sessionID string) *Room {
	return &Room{
		sessionID:    sessionID,
		participants: make(map[string]*Participant),
	}
}

// SessionID returns the session this room belongs to.
func (r *Room) SessionID() string {
	return r.sessionID
}

// Add inserts a participant.
func (r *Room) Add(p *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.ID] = p
}

// Remove deletes a participant and returns it together with the remaining
// member count. Returns nil if the connection was not a member.
func (r *Room) Remove(connID string) (*Participant, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return nil, len(r.participants)
	}
	delete(r.participants, connID)
	return p, len(r.participants)
}

// Get returns a participant by connection id.
func (r *Room) Get(connID string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[connID]
	return p, ok
}

// Count returns the number of participants.
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Participants returns the public presence list in join order.
func (r *Room) Participants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		members = append(members, p)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].joinedAt.Before(members[j].joinedAt)
	})

	views := make([]domain.Participant, 0, len(members))
	for _, p := range members {
		views = append(views, p.View())
	}
	return views
}

// Broadcast sends an event to every participant except the excluded
// connection id. Pass an empty exclude to reach everyone. Delivery is best
// effort; a dead connection is reaped by its own read loop.
func (r *Room) Broadcast(exclude, event string, payload any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, p := range r.participants {
		if id == exclude {
			continue
		}
		_ = p.sender.Send(event, payload)
	}
}

// UpdateCursor records the latest cursor position for a connection and
// reports whether a broadcast is due under the throttle. The recorded
// position is always the newest one; positions arriving inside the throttle
// window are kept for the snapshot but never queued for broadcast.
func (r *Room) UpdateCursor(connID string, pos domain.Position, now time.Time, interval time.Duration) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return domain.Participant{}, false
	}
	c := pos
	p.cursor = &c
	if !p.throttle.allow(now, interval) {
		return domain.Participant{}, false
	}
	return p.View(), true
}
