package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulse-dev/pulse/pkg/pulse"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// clientBuffer is the per-connection send queue; slow consumers past
	// this point are dropped rather than backpressuring the graph.
	clientBuffer = 64
)

// event is one message pushed to WebSocket clients.
type event struct {
	Type string   `json:"type"` // "register" or "state"
	Unit unitJSON `json:"unit"`
}

// hub fans registry activity out to WebSocket clients: one "register"
// event per (re-)registration and one "state" event per committed change
// of any registered unit.
type hub struct {
	registry *pulse.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	clients  map[*client]struct{}
	watching map[string]func()
	closed   bool

	cancelOnRegister func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(registry *pulse.Registry, logger *slog.Logger) *hub {
	h := &hub{
		registry: registry,
		logger:   logger,
		clients:  make(map[*client]struct{}),
		watching: make(map[string]func()),
	}

	for _, handle := range registry.All() {
		h.watch(handle)
	}
	h.cancelOnRegister = registry.OnRegister(func(handle *pulse.Handle) {
		h.watch(handle)
		h.broadcast(event{Type: "register", Unit: handleJSON(handle)})
	})
	return h
}

// watch attaches a change watcher to the handle's current unit. A swap
// under the same identity re-enters here via OnRegister, replacing the
// watcher bound to the old unit.
func (h *hub) watch(handle *pulse.Handle) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if cancel, ok := h.watching[handle.Name()]; ok {
		cancel()
	}
	h.mu.Unlock()

	cancel := handle.Watch(func() {
		h.broadcast(event{Type: "state", Unit: handleJSON(handle)})
	})

	h.mu.Lock()
	h.watching[handle.Name()] = cancel
	h.mu.Unlock()
}

func (h *hub) broadcast(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow client: drop it instead of blocking notification paths.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// close cancels all watchers and disconnects every client.
func (h *hub) close() {
	h.cancelOnRegister()

	h.mu.Lock()
	h.closed = true
	for _, cancel := range h.watching {
		cancel()
	}
	h.watching = make(map[string]func())
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func handleJSON(h *pulse.Handle) unitJSON {
	return unitJSON{
		Name:  h.Name(),
		Kind:  h.Kind(),
		State: h.State(),
	}
}

// handleWS upgrades the connection and streams graph events. The initial
// message is a full unit listing so clients never start from a blind
// state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	handles := s.registry.All()
	units := make([]unitJSON, 0, len(handles))
	for _, h := range handles {
		units = append(units, handleJSON(h))
	}
	if initial, err := json.Marshal(map[string]any{"type": "hello", "units": units}); err == nil {
		c.send <- initial
	}

	s.hub.add(c)
	go c.writePump(s.logger)
	go c.readPump(s.hub)
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *client) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; clients are read-only. It exists
// to notice closed connections and to service pong deadlines.
func (c *client) readPump(h *hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
