package httpadapter

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fakhriadk/calmbot/internal/app/conversation"
	"github.com/fakhriadk/calmbot/internal/observability"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wsOutbound struct {
	Type   string                   `json:"type"`
	View   *conversation.View       `json:"view,omitempty"`
	Result *conversation.SendResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// viewSlot keeps only the newest view; views are full snapshots, so
// skipping intermediate ones loses nothing.
type viewSlot struct {
	mu     sync.Mutex
	latest *conversation.View
	ready  chan struct{}
}

func newViewSlot() *viewSlot {
	return &viewSlot{ready: make(chan struct{}, 1)}
}

func (s *viewSlot) put(v conversation.View) {
	s.mu.Lock()
	if s.latest == nil || v.Version >= s.latest.Version {
		s.latest = &v
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *viewSlot) take() *conversation.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.latest
	s.latest = nil
	return v
}

// handleWebSocket starts (or joins) the caller's session and streams every
// view to the client. The client sends {"type":"send","text":"..."}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observability.LoggerFromContext(ctx)

	m, err := s.svc.Sessions.Start(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	uid := currentUser(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	views := newViewSlot()
	unwatch := m.Watch(views.put)
	defer unwatch()
	views.put(m.View())

	outbound := make(chan wsOutbound, 8)
	done := make(chan struct{})
	closing := make(chan struct{})
	defer close(closing)

	go func() {
		defer close(done)
		conn.SetReadLimit(64 * 1024)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			s.svc.Sessions.Touch(uid)
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			var in wsInbound
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("websocket read failed", "error", err)
				}
				return
			}
			s.svc.Sessions.Touch(uid)

			if in.Type != "send" {
				select {
				case outbound <- wsOutbound{Type: "error", Error: "unknown message type"}:
				case <-closing:
					return
				}
				continue
			}

			go func(text string) {
				res, err := m.Send(ctx, text)
				out := wsOutbound{Type: "result", Result: &res}
				switch {
				case err != nil:
					out = wsOutbound{Type: "error", Error: err.Error()}
				case res.User == nil:
					return
				case res.Err != nil:
					out.Error = res.Err.Error()
				}
				select {
				case outbound <- out:
				case <-closing:
				}
			}(in.Text)
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		var msg any
		select {
		case <-done:
			return
		case <-views.ready:
			v := views.take()
			if v == nil {
				continue
			}
			msg = wsOutbound{Type: "view", View: v}
		case out := <-outbound:
			msg = out
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		payload, err := json.Marshal(msg)
		if err != nil {
			log.Error("websocket encode failed", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn("websocket write failed", "error", err)
			return
		}
	}
}
