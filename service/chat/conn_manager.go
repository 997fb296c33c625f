package chat

import (
	"sync"
	"time"

	"MChat/logger"
	"MChat/tools/ids"
	"MChat/tools/security"
)

// ManagerConf carries the per-connection timings. Zero values fall back to
// the defaults the clients are written against.
type ManagerConf struct {
	PingInterval time.Duration // probe cycle
	PongDeadline time.Duration // death timer armed with each probe
	WriteWait    time.Duration
	SendQueue    int
}

func (c *ManagerConf) norm() {
	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.PongDeadline <= 0 {
		c.PongDeadline = time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// ConnManager owns the set of open connections. Nothing else mutates
// membership; admit/remove fire the registered hooks so liveness and
// presence follow every membership change.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*WsConn
	byUser map[string]map[string]*WsConn // userid -> conn_id -> conn

	conf ManagerConf

	onAdmit  func(*WsConn) // liveness start
	onChange func()        // presence refresh
}

func NewConnManager(conf ManagerConf) *ConnManager {
	conf.norm()
	return &ConnManager{
		byConn: make(map[string]*WsConn),
		byUser: make(map[string]map[string]*WsConn),
		conf:   conf,
	}
}

func (m *ConnManager) Conf() ManagerConf { return m.conf }

// SetHooks wires the liveness monitor and presence broadcaster in. Must be
// called before the first Admit.
func (m *ConnManager) SetHooks(onAdmit func(*WsConn), onChange func()) {
	m.onAdmit = onAdmit
	m.onChange = onChange
}

// NewConn builds the registry record for a freshly upgraded transport.
// identity may be nil (unbound admission).
func (m *ConnManager) NewConn(identity *security.Identity, t Transport) *WsConn {
	return &WsConn{
		ConnID:   ids.GenerateString(),
		Identity: identity,
		Conn:     t,
		Send:     make(chan []byte, m.conf.SendQueue),
		pongCh:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Admit adds the connection to the active set, starts its writer and
// liveness cycle, then publishes presence.
func (m *ConnManager) Admit(w *WsConn) {
	m.mu.Lock()
	m.byConn[w.ConnID] = w
	if w.Bound() {
		mm := m.byUser[w.Identity.UserID]
		if mm == nil {
			mm = make(map[string]*WsConn)
			m.byUser[w.Identity.UserID] = mm
		}
		mm[w.ConnID] = w
	}
	m.mu.Unlock()

	go w.writePump(m.conf.WriteWait)
	if m.onAdmit != nil {
		m.onAdmit(w)
	}
	if m.onChange != nil {
		m.onChange()
	}
	if w.Bound() {
		logger.Infof("[registry] admit conn=%s user=%s", w.ConnID, w.Identity.UserID)
	} else {
		logger.Infof("[registry] admit conn=%s unbound", w.ConnID)
	}
}

// Remove takes the connection out of the active set, closes it, and
// publishes presence. Idempotent: a second call is a no-op.
func (m *ConnManager) Remove(w *WsConn) {
	m.mu.Lock()
	_, present := m.byConn[w.ConnID]
	if present {
		delete(m.byConn, w.ConnID)
		if w.Bound() {
			if mm := m.byUser[w.Identity.UserID]; mm != nil {
				delete(mm, w.ConnID)
				if len(mm) == 0 {
					delete(m.byUser, w.Identity.UserID)
				}
			}
		}
	}
	m.mu.Unlock()

	if !present {
		return
	}
	w.shutdown()
	if m.onChange != nil {
		m.onChange()
	}
	logger.Infof("[registry] remove conn=%s", w.ConnID)
}

// ForEachWithIdentity applies fn to every active connection bound to
// userID. Zero, one, or many matches; connections are never deduplicated.
func (m *ConnManager) ForEachWithIdentity(userID string, fn func(*WsConn)) {
	m.mu.RLock()
	mm := m.byUser[userID]
	conns := make([]*WsConn, 0, len(mm))
	for _, w := range mm {
		conns = append(conns, w)
	}
	m.mu.RUnlock()

	for _, w := range conns {
		fn(w)
	}
}

// SnapshotIdentities returns {userid, username} for every bound
// connection at this moment. Unbound connections occupy a slot but are
// excluded from presence.
func (m *ConnManager) SnapshotIdentities() []security.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]security.Identity, 0, len(m.byConn))
	for _, w := range m.byConn {
		if w.Bound() {
			out = append(out, *w.Identity)
		}
	}
	return out
}

// SnapshotConns returns every active connection, bound or not.
func (m *ConnManager) SnapshotConns() []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WsConn, 0, len(m.byConn))
	for _, w := range m.byConn {
		out = append(out, w)
	}
	return out
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// Close force-closes everything; used on shutdown.
func (m *ConnManager) Close() {
	for _, w := range m.SnapshotConns() {
		m.Remove(w)
	}
}
