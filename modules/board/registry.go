package board

import "sync"

// Registry is the in-process index of active rooms. It is a narrow seam: a
// distributed presence layer can replace the in-memory implementation
// without touching router logic.
type Registry interface {
	// GetOrCreate returns the room for a session, creating an empty one on
	// first call. It never fails.
	GetOrCreate(sessionID string) *Room
	// Join inserts a participant into the session's room, creating the room
	// if needed, and returns it. The insertion happens under the registry
	// lock so a concurrent RemoveIfEmpty can never evict the room between
	// its resolution and the membership change.
	Join(sessionID string, p *Participant) *Room
	// Get returns the room for a session if one is active.
	Get(sessionID string) (*Room, bool)
	// RemoveIfEmpty evicts the room if its participant set is empty. Only
	// empty-membership eviction ever removes a room.
	RemoveIfEmpty(sessionID string)
	// Len returns the number of active rooms.
	Len() int
}

type memoryRegistry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewMemoryRegistry creates the in-process room registry.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{
		rooms: make(map[string]*Room),
	}
}

func (r *memoryRegistry) GetOrCreate(sessionID string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[sessionID]
	if !ok {
		room = NewRoom(sessionID)
		r.rooms[sessionID] = room
	}
	return room
}

func (r *memoryRegistry) Join(sessionID string, p *Participant) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[sessionID]
	if !ok {
		room = NewRoom(sessionID)
		r.rooms[sessionID] = room
	}
	room.Add(p)
	return room
}

func (r *memoryRegistry) Get(sessionID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[sessionID]
	return room, ok
}

func (r *memoryRegistry) RemoveIfEmpty(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[sessionID]
	if ok && room.Count() == 0 {
		delete(r.rooms, sessionID)
	}
}

func (r *memoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
