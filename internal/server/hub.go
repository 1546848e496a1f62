package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/webgen/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Reload clients only ever send close frames.
	maxReloadMessage = 512
)

var reloadMessage = []byte(`{"type":"reload"}`)

// reloadClient is a gallery or preview page waiting for catalog changes.
type reloadClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans catalog changes out to every reload client.
type hub struct {
	logger logging.Logger

	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]*reloadClient
	closed       bool

	broadcast  chan []byte
	register   chan *reloadClient
	unregister chan *websocket.Conn
}

func newHub(logger logging.Logger) *hub {
	return &hub{
		logger:     logger.WithComponent("reload-hub"),
		clients:    make(map[*websocket.Conn]*reloadClient),
		broadcast:  make(chan []byte),
		register:   make(chan *reloadClient),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clientsMutex.Lock()
			if h.closed {
				h.clientsMutex.Unlock()
				close(client.send)
				continue
			}
			h.clients[client.conn] = client
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(ctx, "Reload client connected", "clients", count)

		case conn := <-h.unregister:
			h.clientsMutex.Lock()
			if client, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(client.send)
			}
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(ctx, "Reload client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.clientsMutex.Lock()
			for conn, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than stall the hub.
					delete(h.clients, conn)
					close(client.send)
				}
			}
			h.clientsMutex.Unlock()
		}
	}
}

// send queues message for every client unless ctx ends first.
func (h *hub) send(ctx context.Context, message []byte) {
	select {
	case h.broadcast <- message:
	case <-ctx.Done():
	}
}

func (h *hub) count() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// closeAll ends every client and refuses new ones.
func (h *hub) closeAll() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	h.closed = true
	for conn, client := range h.clients {
		delete(h.clients, conn)
		close(client.send)
	}
}

func (s *Server) handleReloadSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		s.logger.Warn(r.Context(), err, "Reload socket upgrade failed")
		return
	}
	conn.SetReadLimit(maxReloadMessage)

	client := &reloadClient{conn: conn, send: make(chan []byte, 16)}
	select {
	case s.hub.register <- client:
	case <-s.lifetime.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go s.writeReloads(client)
	s.readReloads(client)
}

// readReloads drains the connection until the peer goes away.
func (s *Server) readReloads(c *reloadClient) {
	defer func() {
		select {
		case s.hub.unregister <- c.conn:
		case <-s.lifetime.Done():
		}
	}()

	for {
		if _, _, err := c.conn.Read(s.lifetime); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && s.lifetime.Err() == nil {
				s.logger.Debug(context.Background(), "Reload socket closed", "error", err.Error())
			}
			return
		}
	}
}

func (s *Server) writeReloads(c *reloadClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
