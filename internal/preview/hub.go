package preview

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	maxClientBytes = 1024
)

type outbound struct {
	kind int
	data []byte
}

type client struct {
	conn *websocket.Conn
	send chan outbound
}

// hub fans frames and messages out to websocket clients. A client whose queue
// is full is disconnected rather than slowing the others down.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	queue   int
	closed  bool
	dropped atomic.Uint64
	logger  *zap.Logger
}

func newHub(queue int, logger *zap.Logger) *hub {
	if queue <= 0 {
		queue = 1
	}
	return &hub{clients: make(map[*client]struct{}), queue: queue, logger: logger}
}

func (h *hub) add(conn *websocket.Conn) (*client, bool) {
	c := &client{conn: conn, send: make(chan outbound, h.queue)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("preview client connected", zap.String("remote", conn.RemoteAddr().String()), zap.Int("clients", n))
	go h.writeLoop(c)
	return c, true
}

// remove must be called with h.mu held.
func (h *hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *hub) drop(c *client) {
	h.mu.Lock()
	h.remove(c)
	h.mu.Unlock()
}

func (h *hub) broadcast(m outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			h.dropped.Add(1)
			h.logger.Warn("dropping slow preview client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.remove(c)
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.remove(c)
	}
}

func (h *hub) writeLoop(c *client) {
	defer c.conn.Close()
	for m := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
			h.logger.Debug("preview write failed", zap.Error(err))
			h.drop(c)
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// readLoop discards client input and unregisters the client once the
// connection fails.
func (h *hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxClientBytes)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("preview client read error", zap.Error(err))
			}
			h.drop(c)
			return
		}
	}
}
