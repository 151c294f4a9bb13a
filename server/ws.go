package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zawasasa/note-blog-generator/workflow"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsQueue     = 256
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsInbound struct {
	Type string `json:"type"`
}

type wsOutbound struct {
	Type       string             `json:"type"`
	State      string             `json:"state,omitempty"`
	Fragment   string             `json:"fragment,omitempty"`
	Banner     string             `json:"banner,omitempty"`
	Generation uint64             `json:"generation,omitempty"`
	Snapshot   *workflow.Snapshot `json:"snapshot,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// handleWS streams the cookie session's events to the browser.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}
	sess, ok := s.store.get(c.Value)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	s.serveEvents(w, r, sess)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.get(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	s.serveEvents(w, r, sess)
}

// serveEvents sends a snapshot, then every state change and fragment in order. A
// subscriber dropped for falling behind gets a fresh snapshot and continues.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request, sess *session) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		s.logger.Printf("[ws] set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, wsQueue)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	go s.pumpEvents(ctx, sess.machine, writeCh)

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWS(ctx, writeCh, wsOutbound{Type: "pong"})
		case "reset":
			sess.machine.Reset()
		case "dismiss":
			sess.machine.DismissBanner()
		default:
			pushWS(ctx, writeCh, wsOutbound{Type: "error", Message: "unsupported type: " + in.Type})
		}
	}
}

func (s *Server) pumpEvents(ctx context.Context, m *workflow.Machine, writeCh chan<- wsOutbound) {
	for ctx.Err() == nil {
		snap, events, unsubscribe := m.Subscribe()
		if !pushWS(ctx, writeCh, wsOutbound{Type: "snapshot", Snapshot: &snap, State: snap.State.String()}) {
			unsubscribe()
			return
		}
		dropped := forwardEvents(ctx, events, writeCh)
		unsubscribe()
		if !dropped {
			return
		}
		s.logger.Printf("[ws] subscriber fell behind, resyncing")
	}
}

// forwardEvents copies events until ctx ends (false) or the machine drops the
// subscription (true).
func forwardEvents(ctx context.Context, events <-chan workflow.Event, writeCh chan<- wsOutbound) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return true
			}
			out := wsOutbound{Type: "state", State: ev.State.String(), Banner: ev.Banner, Generation: ev.Generation}
			if ev.Kind == workflow.EventFragment {
				out = wsOutbound{Type: "fragment", Fragment: ev.Fragment, Generation: ev.Generation}
			}
			if !pushWS(ctx, writeCh, out) {
				return false
			}
		}
	}
}

// pushWS blocks until the writer takes the message; fragments must not be skipped.
func pushWS(ctx context.Context, writeCh chan<- wsOutbound, out wsOutbound) bool {
	select {
	case writeCh <- out:
		return true
	case <-ctx.Done():
		return false
	}
}
