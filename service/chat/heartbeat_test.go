package chat

import (
	"sync/atomic"
	"testing"
	"time"
)

func heartbeatConf() ManagerConf {
	return ManagerConf{
		PingInterval: 20 * time.Millisecond,
		PongDeadline: 10 * time.Millisecond,
		WriteWait:    time.Second,
		SendQueue:    16,
	}
}

func TestSilentPeerIsEvicted(t *testing.T) {
	m := NewConnManager(heartbeatConf())
	mon := NewMonitor(m)

	var refreshes atomic.Int32
	m.SetHooks(mon.Start, func() { refreshes.Add(1) })

	tr := &fakeTransport{} // never pongs
	w := m.NewConn(ident("1", "A"), tr)
	m.Admit(w)

	// one probe-plus-deadline window, with slack
	waitFor(t, time.Second, func() bool { return m.Len() == 0 })

	if !tr.isClosed() {
		t.Fatal("dead transport must be force closed")
	}
	if w.State() != StateDead {
		t.Fatalf("expected Dead, got %v", w.State())
	}
	if n := refreshes.Load(); n < 2 {
		t.Fatalf("expected presence refresh on admit and eviction, got %d", n)
	}
}

func TestPongingPeerSurvives(t *testing.T) {
	m := NewConnManager(heartbeatConf())
	mon := NewMonitor(m)
	m.SetHooks(mon.Start, nil)

	tr := &fakeTransport{autoPong: true}
	w := m.NewConn(ident("1", "A"), tr)
	m.Admit(w)

	// several full probe cycles
	waitFor(t, time.Second, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.pings >= 3
	})

	if m.Len() != 1 {
		t.Fatal("healthy connection evicted")
	}
	if w.State() == StateDead {
		t.Fatal("healthy connection marked dead")
	}
	m.Close()
}

func TestProbeWriteFailureEvicts(t *testing.T) {
	m := NewConnManager(heartbeatConf())
	mon := NewMonitor(m)
	m.SetHooks(mon.Start, nil)

	tr := &fakeTransport{failWrites: true}
	w := m.NewConn(ident("1", "A"), tr)
	m.Admit(w)

	waitFor(t, time.Second, func() bool { return m.Len() == 0 })
	if w.State() != StateDead {
		t.Fatalf("expected Dead after probe write failure, got %v", w.State())
	}
}

func TestEvictionTriggersPresenceToRemaining(t *testing.T) {
	m := NewConnManager(heartbeatConf())
	mon := NewMonitor(m)
	presence := NewBroadcaster(m, nil)
	m.SetHooks(mon.Start, presence.Broadcast)

	healthy := &fakeTransport{autoPong: true}
	silent := &fakeTransport{}
	a := m.NewConn(ident("1", "A"), healthy)
	b := m.NewConn(ident("2", "B"), silent)
	m.Admit(a)
	m.Admit(b)

	waitFor(t, time.Second, func() bool { return m.Len() == 1 })

	// the survivor's latest presence frame no longer lists user 2
	waitFor(t, time.Second, func() bool {
		last := healthy.lastFrame()
		if last == nil {
			return false
		}
		return string(last) == `{"online":[{"userid":"1","username":"A"}]}`
	})
	m.Close()
}
