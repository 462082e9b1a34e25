// Package overlay pushes copilot state to the transient desktop
// overlay over a local websocket.
package overlay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"taskmind/internal/copilot"
)

type State string

const (
	StateHidden     State = "hidden"
	StateListening  State = "listening"
	StateThinking   State = "thinking"
	StateResponding State = "responding"
	StateManual     State = "manual"
)

// Auto-hide is a UI-layer policy driven off the response: confident
// answers linger longer.
const (
	hideDelayLow  = 8 * time.Second  // confidence <= 0.7
	hideDelayHigh = 12 * time.Second // confidence > 0.7
)

// Event is the overlay's view of copilot state.
type Event struct {
	State       State             `json:"state"`
	Response    *copilot.Response `json:"response,omitempty"`
	IsListening bool              `json:"isListening"`
	Transcript  string            `json:"transcript,omitempty"`
	Status      string            `json:"status,omitempty"`
}

type command struct {
	Cmd string `json:"cmd"`
}

// Hub fans overlay events out to connected UI clients and feeds
// dismiss commands back.
type Hub struct {
	log       *slog.Logger
	onDismiss func()
	upgrader  ws.Upgrader

	mu        sync.Mutex
	wmu       sync.Mutex // gorilla allows one concurrent writer per conn
	conns     map[*ws.Conn]struct{}
	listening bool
	last      Event
	hideTimer *time.Timer
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: map[*ws.Conn]struct{}{},
		last:  Event{State: StateHidden},
		upgrader: ws.Upgrader{
			// local-only endpoint, the overlay connects from file://
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// OnDismiss registers the callback fired when the UI dismisses the
// overlay.
func (h *Hub) OnDismiss(f func()) { h.onDismiss = f }

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("overlay upgrade failed", "err", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	last := h.last
	h.mu.Unlock()

	// late joiners get the current state straight away
	h.send(conn, last)

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *ws.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}

		if cmd.Cmd == "dismiss" {
			h.Hide()
			if h.onDismiss != nil {
				h.onDismiss()
			}
		}
	}
}

// ShowResponse surfaces a response and arms the auto-hide timer.
func (h *Hub) ShowResponse(resp *copilot.Response) {
	delay := hideDelayLow
	if resp.Confidence > 0.7 {
		delay = hideDelayHigh
	}

	h.mu.Lock()
	if h.hideTimer != nil {
		h.hideTimer.Stop()
	}
	h.hideTimer = time.AfterFunc(delay, h.Hide)
	h.mu.Unlock()

	h.broadcast(Event{State: StateResponding, Response: resp, IsListening: h.isListening()})
}

func (h *Hub) Thinking(status string) {
	h.broadcast(Event{State: StateThinking, IsListening: h.isListening(), Status: status})
}

func (h *Hub) Listening(listening bool, transcript string) {
	h.mu.Lock()
	h.listening = listening
	h.mu.Unlock()

	state := StateHidden
	if listening {
		state = StateListening
	}
	h.broadcast(Event{State: state, IsListening: listening, Transcript: transcript})
}

func (h *Hub) Hide() {
	h.mu.Lock()
	if h.hideTimer != nil {
		h.hideTimer.Stop()
		h.hideTimer = nil
	}
	h.mu.Unlock()

	h.broadcast(Event{State: StateHidden, IsListening: h.isListening()})
}

func (h *Hub) isListening() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.listening
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	h.last = ev
	conns := make([]*ws.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.send(c, ev)
	}
}

func (h *Hub) send(conn *ws.Conn, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal overlay event", "err", err)
		return
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()

	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		h.log.Debug("overlay write failed", "err", err)
	}
}
