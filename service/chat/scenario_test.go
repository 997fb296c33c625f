package chat

import (
	"context"
	"testing"
	"time"
)

// End to end against fakes: two users connect, one messages the other,
// then the recipient's transport goes half-open and presence shrinks.
func TestRelayScenario(t *testing.T) {
	m := NewConnManager(heartbeatConf())
	mon := NewMonitor(m)
	presence := NewBroadcaster(m, nil)
	m.SetHooks(mon.Start, presence.Broadcast)
	store := &memMsgStore{}
	router := NewRouter(m, store, newMemFileStore())

	trA := &fakeTransport{autoPong: true}
	trB := &fakeTransport{autoPong: true}
	a := m.NewConn(ident("1", "A"), trA)
	b := m.NewConn(ident("2", "B"), trB)
	m.Admit(a)
	m.Admit(b)

	// both see a 2-entry presence snapshot
	for _, tr := range []*fakeTransport{trA, trB} {
		waitFor(t, time.Second, func() bool {
			last := tr.lastFrame()
			return last != nil && len(decodePresence(t, last)) == 2
		})
	}

	// A -> B
	framesBeforeA := trA.frameCount()
	router.Route(context.Background(), a, envelope(t, "2", "hi", nil))

	waitFor(t, time.Second, func() bool { return trB.frameCount() >= 2 })
	d := decodeDelivery(t, trB.lastFrame())
	if d.Text != "hi" || d.Sender != "1" || d.Recipient != "2" || d.File != nil {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if d.ID == "" {
		t.Fatal("delivery must carry the persisted id")
	}

	time.Sleep(20 * time.Millisecond)
	if trA.frameCount() != framesBeforeA {
		t.Fatal("sender connection received traffic from its own send")
	}

	// B dies without closing; next probe window evicts it
	trB.mu.Lock()
	trB.autoPong = false
	trB.mu.Unlock()

	waitFor(t, time.Second, func() bool { return m.Len() == 1 })
	waitFor(t, time.Second, func() bool {
		last := trA.lastFrame()
		if last == nil {
			return false
		}
		online := decodePresence(t, last)
		return len(online) == 1 && online[0].UserID == "1"
	})
	m.Close()
}
