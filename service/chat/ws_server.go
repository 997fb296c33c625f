package chat

import (
	"net"
	"net/http"

	"MChat/logger"
	"MChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server ties the registry, liveness monitor, presence broadcaster and
// message router to the websocket endpoint.
type Server struct {
	mgr      *ConnManager
	monitor  *Monitor
	presence *Broadcaster
	router   *Router
	jwt      security.Options
}

func NewServer(mgr *ConnManager, store MessageStore, files AttachmentStore, mirror PresenceMirror, jwt security.Options) *Server {
	s := &Server{
		mgr:      mgr,
		monitor:  NewMonitor(mgr),
		presence: NewBroadcaster(mgr, mirror),
		router:   NewRouter(mgr, store, files),
		jwt:      jwt,
	}
	// membership changes drive liveness and presence
	mgr.SetHooks(s.monitor.Start, s.presence.Broadcast)
	return s
}

func (s *Server) ConnMgr() *ConnManager { return s.mgr }

// HandleWS upgrades the request, binds an identity from the token cookie
// if one verifies, admits the connection and runs its read loop until the
// transport goes away.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[WS] upgrade err: %v", err)
		return
	}
	ws.SetReadLimit(1 << 20) // 1MB

	// verification failure admits the connection unbound instead of
	// rejecting it; unbound sessions hold a slot but stay out of presence
	var identity *security.Identity
	if token, cerr := c.Cookie(security.TokenCookie); cerr == nil && token != "" {
		id, verr := security.Verify(s.jwt, token)
		if verr != nil {
			logger.Infof("[WS] token verify failed, admitting unbound err=%v", verr)
		} else {
			identity = id
		}
	}

	w := s.mgr.NewConn(identity, ws)
	s.mgr.Admit(w)
	defer s.mgr.Remove(w)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s", w.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", w.ConnID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", w.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.router.Route(c.Request.Context(), w, data)
	}
}
