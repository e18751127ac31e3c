package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	domain "github.com/example/whiteboard-sync/domain/board"
	"github.com/example/whiteboard-sync/modules/store"
)

type fakeDirectory struct {
	sessions map[string]*store.Session
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{sessions: make(map[string]*store.Session)}
	for _, id := range ids {
		d.sessions[id] = &store.Session{SessionID: id, Name: "test"}
	}
	return d
}

func (d *fakeDirectory) FindByID(_ context.Context, sessionID string) (*store.Session, error) {
	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return s, nil
}

type fakeStrokeStore struct {
	mu      sync.Mutex
	strokes map[string]*store.Stroke
	order   []string

	failInsert bool
}

func newFakeStrokeStore() *fakeStrokeStore {
	return &fakeStrokeStore{strokes: make(map[string]*store.Stroke)}
}

func (s *fakeStrokeStore) Insert(_ context.Context, stroke *store.Stroke) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return false, errors.New("disk full")
	}
	if _, ok := s.strokes[stroke.StrokeID]; ok {
		return false, nil
	}
	cp := *stroke
	s.strokes[stroke.StrokeID] = &cp
	s.order = append(s.order, stroke.StrokeID)
	return true, nil
}

func (s *fakeStrokeStore) FindByID(_ context.Context, strokeID string) (*store.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stroke, ok := s.strokes[strokeID]
	if !ok {
		return nil, store.ErrStrokeNotFound
	}
	cp := *stroke
	return &cp, nil
}

func (s *fakeStrokeStore) ListLive(_ context.Context, sessionID string, _ int) ([]store.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Stroke
	for _, id := range s.order {
		stroke := s.strokes[id]
		if stroke.SessionID == sessionID && !stroke.Deleted {
			out = append(out, *stroke)
		}
	}
	return out, nil
}

func (s *fakeStrokeStore) SetLiveness(_ context.Context, strokeID string, live bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stroke, ok := s.strokes[strokeID]
	if !ok {
		return store.ErrStrokeNotFound
	}
	stroke.Deleted = !live
	return nil
}

func (s *fakeStrokeStore) SetLivenessForSession(_ context.Context, sessionID string, live bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stroke := range s.strokes {
		if stroke.SessionID == sessionID {
			stroke.Deleted = !live
		}
	}
	return nil
}

type sentEvent struct {
	Event   string
	Payload any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeSender) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{Event: event, Payload: payload})
	return nil
}

func (f *fakeSender) events(name string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.sent {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) count(name string) int {
	return len(f.events(name))
}

func (f *fakeSender) last(name string) (sentEvent, bool) {
	evs := f.events(name)
	if len(evs) == 0 {
		return sentEvent{}, false
	}
	return evs[len(evs)-1], true
}

func newTestRouter(t *testing.T, sessions ...string) (*Router, *fakeStrokeStore) {
	t.Helper()
	strokes := newFakeStrokeStore()
	logger := slog.New(slog.DiscardHandler)
	r := NewRouter(newFakeDirectory(sessions...), strokes, NewMemoryRegistry(), nil, logger)
	return r, strokes
}

func testStroke(id string) *store.Stroke {
	return &store.Stroke{
		StrokeID: id,
		Tool:     "pen",
		Points: []domain.StrokePoint{
			{X: 1, Y: 2, Pressure: 0.5, Timestamp: 100},
			{X: 3, Y: 4, Pressure: 0.6, Timestamp: 116},
		},
		Color:       "#000000",
		StrokeWidth: 2,
		Opacity:     1,
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	conn := &fakeSender{}

	err := r.Join(context.Background(), conn, "c1", "missing", "Alice", "")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if len(conn.sent) != 0 {
		t.Fatalf("expected no events on failed join, got %d", len(conn.sent))
	}
	if got := r.registry.Len(); got != 0 {
		t.Fatalf("expected no room to be created, got %d", got)
	}
}

func TestJoinDeliversSnapshotAndAnnounces(t *testing.T) {
	r, strokes := newTestRouter(t, "s1")
	ctx := context.Background()

	s := testStroke("st1")
	s.SessionID = "s1"
	if _, err := strokes.Insert(ctx, s); err != nil {
		t.Fatal(err)
	}

	alice := &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", "u1"); err != nil {
		t.Fatal(err)
	}

	bob := &fakeSender{}
	if err := r.Join(ctx, bob, "c2", "s1", "", ""); err != nil {
		t.Fatal(err)
	}

	// The joiner gets the snapshot, not the announcement.
	ev, ok := bob.last(EventSessionState)
	if !ok {
		t.Fatal("joiner did not receive session-state")
	}
	state := ev.Payload.(SessionStatePayload)
	if len(state.Strokes) != 1 || state.Strokes[0].StrokeID != "st1" {
		t.Fatalf("unexpected snapshot strokes: %+v", state.Strokes)
	}
	if len(state.Participants) != 2 {
		t.Fatalf("expected 2 participants in snapshot, got %d", len(state.Participants))
	}
	if state.Participants[0].ID != "c1" || state.Participants[1].ID != "c2" {
		t.Fatalf("expected join order c1,c2, got %s,%s",
			state.Participants[0].ID, state.Participants[1].ID)
	}
	if bob.count(EventUserJoined) != 0 {
		t.Fatal("joiner received its own user-joined announcement")
	}

	// Existing members get the announcement, not the snapshot.
	joined, ok := alice.last(EventUserJoined)
	if !ok {
		t.Fatal("existing member did not receive user-joined")
	}
	p := joined.Payload.(UserJoinedPayload)
	if p.ParticipantID != "c2" {
		t.Fatalf("expected announcement for c2, got %s", p.ParticipantID)
	}
	if p.Name != "Anonymous" {
		t.Fatalf("expected empty name to default to Anonymous, got %q", p.Name)
	}
	if p.CursorColor == "" {
		t.Fatal("expected an assigned cursor color")
	}
}

func TestSubmitStrokeBroadcastsToOthersOnly(t *testing.T) {
	r, strokes := newTestRouter(t, "s1")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", "u2"); err != nil {
		t.Fatal(err)
	}

	if err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1")); err != nil {
		t.Fatal(err)
	}

	if alice.count(EventStrokeDrawn) != 0 {
		t.Fatal("requester received its own stroke-drawn")
	}
	ev, ok := bob.last(EventStrokeDrawn)
	if !ok {
		t.Fatal("other member did not receive stroke-drawn")
	}
	payload := ev.Payload.(StrokeDrawnPayload)
	if payload.Stroke.StrokeID != "st1" || payload.ParticipantID != "c1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Stroke.UserID != "u1" {
		t.Fatalf("expected stroke stamped with submitter user id, got %q", payload.Stroke.UserID)
	}

	persisted, err := strokes.FindByID(ctx, "st1")
	if err != nil {
		t.Fatal(err)
	}
	if persisted.SessionID != "s1" || persisted.Deleted {
		t.Fatalf("unexpected persisted stroke: %+v", persisted)
	}
}

func TestSubmitStrokeDuplicateBroadcastsOnce(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1")); err != nil {
			t.Fatal(err)
		}
	}

	if got := bob.count(EventStrokeDrawn); got != 1 {
		t.Fatalf("expected exactly 1 stroke-drawn broadcast, got %d", got)
	}
}

func TestSubmitStrokePersistFailureSuppressesBroadcast(t *testing.T) {
	r, strokes := newTestRouter(t, "s1")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}

	strokes.failInsert = true
	err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1"))
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if bob.count(EventStrokeDrawn) != 0 {
		t.Fatal("broadcast happened despite persistence failure")
	}
}

func TestSubmitStrokeRejectsUnknownTool(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	alice := &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}

	s := testStroke("st1")
	s.Tool = "spraycan"
	if err := r.SubmitStroke(ctx, "c1", "s1", s); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestSubmitStrokeRequiresMembership(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	if err := r.SubmitStroke(ctx, "ghost", "s1", testStroke("st1")); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("expected ErrNotInSession, got %v", err)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	r, strokes := newTestRouter(t, "s1")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1")); err != nil {
		t.Fatal(err)
	}

	if err := r.Undo(ctx, "c1", "s1", "st1"); err != nil {
		t.Fatal(err)
	}
	ev, ok := bob.last(EventStrokeUndone)
	if !ok {
		t.Fatal("other member did not receive stroke-undone")
	}
	undone := ev.Payload.(StrokeUndonePayload)
	if undone.StrokeID != "st1" {
		t.Fatalf("unexpected undone stroke id: %s", undone.StrokeID)
	}
	if alice.count(EventStrokeUndone) != 0 {
		t.Fatal("requester received its own stroke-undone")
	}
	live, err := strokes.ListLive(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Fatalf("expected no live strokes after undo, got %d", len(live))
	}

	if err := r.Redo(ctx, "c1", "s1", "st1"); err != nil {
		t.Fatal(err)
	}
	ev, ok = bob.last(EventStrokeRedone)
	if !ok {
		t.Fatal("other member did not receive stroke-redone")
	}
	redone := ev.Payload.(StrokeRedonePayload)
	if redone.Stroke.StrokeID != "st1" || len(redone.Stroke.Points) != 2 {
		t.Fatalf("redo must carry the full stroke, got %+v", redone.Stroke)
	}
	live, err = strokes.ListLive(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 {
		t.Fatalf("expected 1 live stroke after redo, got %d", len(live))
	}
}

func TestClearCanvasBroadcastsToAll(t *testing.T) {
	r, strokes := newTestRouter(t, "s1")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1")); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitStroke(ctx, "c2", "s1", testStroke("st2")); err != nil {
		t.Fatal(err)
	}

	if err := r.ClearCanvas(ctx, "c1", "s1"); err != nil {
		t.Fatal(err)
	}

	// Unlike every other broadcast, the requester hears this one too.
	if alice.count(EventCanvasCleared) != 1 {
		t.Fatal("requester did not receive canvas-cleared")
	}
	if bob.count(EventCanvasCleared) != 1 {
		t.Fatal("other member did not receive canvas-cleared")
	}

	live, err := strokes.ListLive(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Fatalf("expected empty canvas after clear, got %d live strokes", len(live))
	}
}

func TestCursorThrottleDropsIntermediatePositions(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	r.now = func() time.Time { return clock }

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}

	// First move opens the window, the next two fall inside it.
	for i := 0; i < 3; i++ {
		clock = base.Add(time.Duration(i) * 2 * time.Millisecond)
		if err := r.MoveCursor(ctx, "c1", "s1", domain.Position{X: float64(i), Y: 0}); err != nil {
			t.Fatal(err)
		}
	}
	if got := bob.count(EventCursorUpdate); got != 1 {
		t.Fatalf("expected 1 cursor-update inside throttle window, got %d", got)
	}

	// After the window expires the newest position goes out.
	clock = base.Add(DefaultCursorInterval + time.Millisecond)
	if err := r.MoveCursor(ctx, "c1", "s1", domain.Position{X: 99, Y: 42}); err != nil {
		t.Fatal(err)
	}
	ev, _ := bob.last(EventCursorUpdate)
	pos := ev.Payload.(CursorUpdatePayload)
	if pos.Position.X != 99 || pos.Position.Y != 42 {
		t.Fatalf("expected newest position, got %+v", pos.Position)
	}
	if alice.count(EventCursorUpdate) != 0 {
		t.Fatal("requester received its own cursor-update")
	}
}

func TestDisconnectAnnouncesAndEvictsEmptyRoom(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}

	r.Disconnect("c2")
	ev, ok := alice.last(EventUserLeft)
	if !ok {
		t.Fatal("remaining member did not receive user-left")
	}
	left := ev.Payload.(UserLeftPayload)
	if left.ParticipantID != "c2" || left.Name != "Bob" {
		t.Fatalf("unexpected user-left payload: %+v", left)
	}
	if got := r.registry.Len(); got != 1 {
		t.Fatalf("room evicted while still occupied, registry len %d", got)
	}

	r.Disconnect("c1")
	if got := r.registry.Len(); got != 0 {
		t.Fatalf("expected empty registry after last leave, got %d", got)
	}

	// Idempotent for unknown connections.
	r.Disconnect("c1")
	r.Disconnect("never-joined")
}

func TestRejoinAfterDisconnectGetsFullSnapshot(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	alice := &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1")); err != nil {
		t.Fatal(err)
	}
	r.Disconnect("c1")

	// Stroke history survives the room eviction.
	again := &fakeSender{}
	if err := r.Join(ctx, again, "c9", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	ev, ok := again.last(EventSessionState)
	if !ok {
		t.Fatal("rejoin did not receive session-state")
	}
	state := ev.Payload.(SessionStatePayload)
	if len(state.Strokes) != 1 {
		t.Fatalf("expected durable stroke in rejoin snapshot, got %d", len(state.Strokes))
	}
	if len(state.Participants) != 1 {
		t.Fatalf("expected fresh presence after rejoin, got %d", len(state.Participants))
	}
}

func TestRejoinSwitchesRooms(t *testing.T) {
	r, _ := newTestRouter(t, "s1", "s2")
	ctx := context.Background()

	alice, bob := &fakeSender{}, &fakeSender{}
	if err := r.Join(ctx, alice, "c1", "s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, bob, "c2", "s1", "Bob", ""); err != nil {
		t.Fatal(err)
	}

	// Joining a second session implicitly leaves the first.
	if err := r.Join(ctx, alice, "c1", "s2", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	ev, ok := bob.last(EventUserLeft)
	if !ok {
		t.Fatal("old room was not notified of the implicit leave")
	}
	if ev.Payload.(UserLeftPayload).ParticipantID != "c1" {
		t.Fatalf("unexpected user-left: %+v", ev.Payload)
	}

	if err := r.SubmitStroke(ctx, "c1", "s1", testStroke("st1")); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("expected ErrNotInSession in the old room, got %v", err)
	}
	if err := r.SubmitStroke(ctx, "c1", "s2", testStroke("st2")); err != nil {
		t.Fatal(err)
	}
}

func TestJoinRacingLastLeave(t *testing.T) {
	r, _ := newTestRouter(t, "s1")
	ctx := context.Background()

	// A new connection joins while the last member disconnects. The joiner
	// must always end up in the registered room and stay able to submit.
	for i := 0; i < 200; i++ {
		leaver := &fakeSender{}
		leaverID := fmt.Sprintf("old-%d", i)
		if err := r.Join(ctx, leaver, leaverID, "s1", "Old", ""); err != nil {
			t.Fatal(err)
		}

		joiner := &fakeSender{}
		joinerID := fmt.Sprintf("new-%d", i)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Disconnect(leaverID)
		}()
		var joinErr error
		go func() {
			defer wg.Done()
			joinErr = r.Join(ctx, joiner, joinerID, "s1", "New", "")
		}()
		wg.Wait()
		if joinErr != nil {
			t.Fatal(joinErr)
		}

		if err := r.SubmitStroke(ctx, joinerID, "s1", testStroke(fmt.Sprintf("st-%d", i))); err != nil {
			t.Fatalf("iteration %d: joiner lost its membership: %v", i, err)
		}
		if got := r.registry.Len(); got != 1 {
			t.Fatalf("iteration %d: expected 1 registered room, got %d", i, got)
		}
		r.Disconnect(joinerID)
	}
}

func TestConcurrentStrokeSubmissions(t *testing.T) {
	r, strokes := newTestRouter(t, "s1")
	ctx := context.Background()

	const writers = 8
	senders := make([]*fakeSender, writers)
	for i := range senders {
		senders[i] = &fakeSender{}
		if err := r.Join(ctx, senders[i], fmt.Sprintf("c%d", i), "s1", fmt.Sprintf("user-%d", i), ""); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s := testStroke(fmt.Sprintf("st-%d-%d", i, j))
				if err := r.SubmitStroke(ctx, fmt.Sprintf("c%d", i), "s1", s); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()

	live, err := strokes.ListLive(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != writers*10 {
		t.Fatalf("expected %d persisted strokes, got %d", writers*10, len(live))
	}
	// Each member hears everyone else's strokes but not its own.
	for i, s := range senders {
		if got := s.count(EventStrokeDrawn); got != (writers-1)*10 {
			t.Fatalf("sender %d heard %d stroke-drawn events, expected %d", i, got, (writers-1)*10)
		}
	}
}
