package chat

import (
	"time"

	"MChat/logger"

	"github.com/gorilla/websocket"
)

// Monitor runs the liveness cycle for each admitted connection:
//
//	Probing -> AwaitingPong -> (Probing | Dead)
//
// Every PingInterval a probe goes out unless one is already outstanding,
// and a death timer with the much shorter PongDeadline is armed. The pong
// cancels the timer; the timer firing first evicts the connection. That
// bounds detection of a half-open transport to one probe-plus-deadline
// window. A Dead connection is never probed again.
type Monitor struct {
	mgr *ConnManager
}

func NewMonitor(mgr *ConnManager) *Monitor {
	return &Monitor{mgr: mgr}
}

// Start hooks the transport's pong callback and launches the cycle.
func (m *Monitor) Start(w *WsConn) {
	w.Conn.SetPongHandler(func(string) error {
		select {
		case w.pongCh <- struct{}{}:
		default:
		}
		return nil
	})
	go m.run(w)
}

func (m *Monitor) run(w *WsConn) {
	conf := m.mgr.Conf()
	ticker := time.NewTicker(conf.PingInterval)
	defer ticker.Stop()

	var death *time.Timer
	var deathC <-chan time.Time
	stopDeath := func() {
		if death != nil {
			death.Stop()
			death, deathC = nil, nil
		}
	}
	defer stopDeath()

	for {
		select {
		case <-w.done:
			return

		case <-ticker.C:
			if w.State() == StateAwaitingPong {
				continue // probe already outstanding, let the death timer decide
			}
			deadline := time.Now().Add(conf.WriteWait)
			if err := w.Conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				logger.Infof("[liveness] probe err conn=%s err=%v", w.ConnID, err)
				w.setState(StateDead)
				m.mgr.Remove(w)
				return
			}
			w.setState(StateAwaitingPong)
			death = time.NewTimer(conf.PongDeadline)
			deathC = death.C

		case <-w.pongCh:
			if w.State() == StateAwaitingPong {
				w.setState(StateProbing)
				stopDeath()
			}

		case <-deathC:
			w.setState(StateDead)
			logger.Infof("[liveness] no pong, evict conn=%s", w.ConnID)
			m.mgr.Remove(w)
			return
		}
	}
}
