package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"MChat/tools/security"
)

// fakeTransport stands in for a gorilla conn. autoPong answers every ping
// through the registered pong handler, like a healthy peer.
type fakeTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	pings       int
	pongHandler func(string) error
	autoPong    bool
	failWrites  bool
	closed      bool
}

func (f *fakeTransport) WriteMessage(mt int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errWriteFailed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeTransport) WriteControl(mt int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	if f.failWrites {
		f.mu.Unlock()
		return errWriteFailed
	}
	f.pings++
	h := f.pongHandler
	auto := f.autoPong
	f.mu.Unlock()
	if auto && h != nil {
		go h("")
	}
	return nil
}

func (f *fakeTransport) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeTransport) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	f.pongHandler = h
	f.mu.Unlock()
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeTransport) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var errWriteFailed = &writeErr{}

type writeErr struct{}

func (*writeErr) Error() string { return "write failed" }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func testConf() ManagerConf {
	// ping cycle long enough that registry tests never see probes
	return ManagerConf{
		PingInterval: time.Hour,
		PongDeadline: time.Hour,
		WriteWait:    time.Second,
		SendQueue:    16,
	}
}

func ident(id, name string) *security.Identity {
	return &security.Identity{UserID: id, Username: name}
}

func TestAdmitAndSnapshot(t *testing.T) {
	m := NewConnManager(testConf())
	defer m.Close()

	a := m.NewConn(ident("1", "A"), &fakeTransport{})
	b := m.NewConn(ident("2", "B"), &fakeTransport{})
	anon := m.NewConn(nil, &fakeTransport{})
	m.Admit(a)
	m.Admit(b)
	m.Admit(anon)

	if m.Len() != 3 {
		t.Fatalf("expected 3 connections, got %d", m.Len())
	}

	online := m.SnapshotIdentities()
	if len(online) != 2 {
		t.Fatalf("unbound connection must not appear in presence, got %d entries", len(online))
	}
	seen := map[string]string{}
	for _, id := range online {
		seen[id.UserID] = id.Username
	}
	if seen["1"] != "A" || seen["2"] != "B" {
		t.Fatalf("unexpected snapshot %v", seen)
	}
}

func TestMultipleConnectionsSameIdentity(t *testing.T) {
	m := NewConnManager(testConf())
	defer m.Close()

	c1 := m.NewConn(ident("1", "A"), &fakeTransport{})
	c2 := m.NewConn(ident("1", "A"), &fakeTransport{})
	m.Admit(c1)
	m.Admit(c2)

	// never deduplicated: one presence entry per connection
	if got := len(m.SnapshotIdentities()); got != 2 {
		t.Fatalf("expected 2 presence entries for 2 devices, got %d", got)
	}

	matched := 0
	m.ForEachWithIdentity("1", func(w *WsConn) { matched++ })
	if matched != 2 {
		t.Fatalf("expected fn applied to 2 connections, got %d", matched)
	}

	m.Remove(c1)
	matched = 0
	m.ForEachWithIdentity("1", func(w *WsConn) { matched++ })
	if matched != 1 {
		t.Fatalf("expected 1 connection after remove, got %d", matched)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	m := NewConnManager(testConf())

	changes := 0
	m.SetHooks(nil, func() { changes++ })

	tr := &fakeTransport{}
	w := m.NewConn(ident("1", "A"), tr)
	m.Admit(w)
	m.Remove(w)
	m.Remove(w)
	m.Remove(w)

	if m.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", m.Len())
	}
	if !tr.isClosed() {
		t.Fatal("transport not closed on remove")
	}
	// one admit + one effective remove
	if changes != 2 {
		t.Fatalf("expected 2 membership changes, got %d", changes)
	}
}

func TestIdentityStableForConnectionLifetime(t *testing.T) {
	m := NewConnManager(testConf())
	defer m.Close()

	w := m.NewConn(ident("7", "G"), &fakeTransport{})
	m.Admit(w)

	for i := 0; i < 3; i++ {
		online := m.SnapshotIdentities()
		if len(online) != 1 || online[0].UserID != "7" || online[0].Username != "G" {
			t.Fatalf("identity drifted: %v", online)
		}
	}
	m.Remove(w)
	if len(m.SnapshotIdentities()) != 0 {
		t.Fatal("identity still present after removal")
	}
}

func TestForEachWithIdentityNoMatches(t *testing.T) {
	m := NewConnManager(testConf())
	defer m.Close()

	m.Admit(m.NewConn(ident("1", "A"), &fakeTransport{}))
	called := false
	m.ForEachWithIdentity("nobody", func(w *WsConn) { called = true })
	if called {
		t.Fatal("fn must not run for an identity with no connections")
	}
}

func TestPresencePayloadEmptyList(t *testing.T) {
	payload := BuildPresence(nil)
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if string(decoded["online"]) != "[]" {
		t.Fatalf("empty presence must encode as [], got %s", decoded["online"])
	}
}
