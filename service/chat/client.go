package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"MChat/logger"
	"MChat/tools/security"

	"github.com/gorilla/websocket"
)

// Transport is the subset of *websocket.Conn the gateway drives. Tests
// substitute fake transports; production always passes the gorilla conn.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Liveness states. A connection starts in Probing; every probe moves it to
// AwaitingPong; the ack moves it back; the death timer moves it to Dead.
type LivenessState int32

const (
	StateProbing LivenessState = iota
	StateAwaitingPong
	StateDead
)

// WsConn is one admitted connection. Identity is fixed at handshake time:
// nil means the connection is unbound (admitted without a valid token) and
// it never changes afterwards.
type WsConn struct {
	ConnID   string
	Identity *security.Identity
	Conn     Transport
	Send     chan []byte

	state  atomic.Int32
	pongCh chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

func (w *WsConn) Bound() bool { return w.Identity != nil }

func (w *WsConn) State() LivenessState {
	return LivenessState(w.state.Load())
}

func (w *WsConn) setState(s LivenessState) {
	w.state.Store(int32(s))
}

// trySend queues a payload for the writer goroutine without ever blocking
// the caller. Slow or closed connections drop the payload.
func (w *WsConn) trySend(data []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.Send <- data:
		return true
	default:
		logger.Warnf("[WS] send queue full, drop conn=%s", w.ConnID)
		return false
	}
}

// shutdown releases the connection's scoped resources exactly once: the
// done channel stops the writer and the liveness cycle, then the transport
// is closed. Safe on every exit path.
func (w *WsConn) shutdown() {
	w.closeOnce.Do(func() {
		close(w.done)
		_ = w.Conn.Close()
	})
}

// writePump is the single writer for this connection. All outbound frames
// (presence, deliveries) flow through Send.
func (w *WsConn) writePump(writeWait time.Duration) {
	for {
		select {
		case <-w.done:
			return
		case payload := <-w.Send:
			_ = w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[WS] write err conn=%s err=%v", w.ConnID, err)
				w.shutdown()
				return
			}
		}
	}
}
