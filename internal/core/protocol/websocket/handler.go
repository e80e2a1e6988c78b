// Package websocket serves the cell protocol over gorilla websockets.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	QueueSize      int
	MaxMessageSize int64
	BufferSize     int
	// AllowedOrigins empty means any origin.
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   25 * time.Second,
		QueueSize:      256,
		MaxMessageSize: 64 * 1024,
		BufferSize:     4096,
	}
}

// Handler upgrades HTTP requests and runs one connection per request.
type Handler struct {
	config   Config
	ingress  *protocol.Ingress
	upgrader websocket.Upgrader
	logger   log.Log

	mu      sync.RWMutex
	clients map[string]*Connection

	accepted      atomic.Int64
	upgradeErrors atomic.Int64
}

func NewHandler(config Config, ingress *protocol.Ingress, logger log.Log) *Handler {
	if logger == nil {
		logger = log.Provide()
	}
	h := &Handler{
		config:  config,
		ingress: ingress,
		logger:  logger.With(log.String("protocol", "websocket")),
		clients: make(map[string]*Connection),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.BufferSize,
		WriteBufferSize: config.BufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP blocks for the lifetime of the connection. The username is
// taken from the "name" query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.upgradeErrors.Add(1)
		h.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}
	if h.config.MaxMessageSize > 0 {
		ws.SetReadLimit(h.config.MaxMessageSize)
	}

	client := newConnection(ws, h.config, h.ingress.Codec().Binary())
	if h.config.ReadTimeout > 0 {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		})
	}

	ctx := context.WithoutCancel(r.Context())
	openCtx, cancelOpen := context.WithTimeout(ctx, 5*time.Second)
	conn, err := h.ingress.Open(openCtx, client, r.URL.Query().Get("name"))
	cancelOpen()
	if err != nil {
		h.logger.Error("Failed to register connection", log.String("client_id", client.ID()), log.Error(err))
		_ = client.Close("registration failed")
		return
	}
	h.track(client, true)
	h.accepted.Add(1)

	logger := h.logger.With(log.String("client_id", client.ID()), log.Hex("connection_id", uint64(conn)))
	logger.Info("Client connected", log.String("remote_addr", client.RemoteAddr().String()))

	writerDone := make(chan error, 1)
	go func() { writerDone <- client.writeLoop() }()

	for {
		data, err := client.receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("WebSocket read error", log.Error(err))
			}
			break
		}
		h.ingress.Receive(conn, data)
	}

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	h.ingress.Close(closeCtx, conn)
	cancel()
	h.track(client, false)
	_ = client.Close("connection closed")
	if err = <-writerDone; err != nil {
		logger.Debug("Writer stopped", log.Error(err))
	}
	logger.Info("Client disconnected")
}

func (h *Handler) track(c *Connection, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.clients[c.ID()] = c
	} else {
		delete(h.clients, c.ID())
	}
}

// Metrics summarizes the handler.
type Metrics struct {
	Active        int               `json:"active"`
	Accepted      int64             `json:"accepted"`
	UpgradeErrors int64             `json:"upgrade_errors"`
	Clients       []ConnectionStats `json:"clients,omitempty"`
}

func (h *Handler) Metrics() Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := Metrics{
		Active:        len(h.clients),
		Accepted:      h.accepted.Load(),
		UpgradeErrors: h.upgradeErrors.Load(),
	}
	for _, c := range h.clients {
		m.Clients = append(m.Clients, c.Stats())
	}
	return m
}
