package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	sendBuffer = 16
)

// Hub fans delivered signals out to websocket subscribers. Slow subscribers
// lose messages instead of blocking the pick path.
type Hub struct {
	log          *logger.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn  *websocket.Conn
	class models.SignalClass
	send  chan []byte
	once  sync.Once
}

type Option func(*Hub)

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 && d < pongWait {
			h.pingInterval = d
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func NewHub(lgr *logger.Logger, opts ...Option) *Hub {
	if lgr == nil {
		lgr = logger.Nop()
	}
	h := &Hub{
		log:          lgr,
		upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		pingInterval: 30 * time.Second,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/signals", h.Subscribe)
}

// Subscribe upgrades the request. An optional class query parameter limits the
// stream to one signal class.
func (h *Hub) Subscribe(c echo.Context) error {
	class := models.SignalClass(c.QueryParam("class"))
	if class != "" && !class.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown class")
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}
	cl := &client{conn: conn, class: class, send: make(chan []byte, sendBuffer)}
	h.add(cl)
	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// Broadcast queues d for every matching subscriber.
func (h *Hub) Broadcast(d *models.Delivery) {
	if d == nil {
		return
	}
	msg, err := json.Marshal(d)
	if err != nil {
		h.log.Error("marshal delivery", logger.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if cl.class != "" && cl.class != d.Class {
			continue
		}
		select {
		case cl.send <- msg:
		default:
			h.log.Debug("subscriber lagging, dropping signal", logger.String("id", d.Signal.ID))
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	cls := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		cls = append(cls, cl)
	}
	h.mu.Unlock()
	for _, cl := range cls {
		h.remove(cl)
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("subscriber connected", logger.String("class", string(cl.class)))
}

func (h *Hub) remove(cl *client) {
	cl.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		close(cl.send)
		_ = cl.conn.Close()
	})
}

// readPump only services control frames; subscribers do not send data.
func (h *Hub) readPump(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(cl)
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
