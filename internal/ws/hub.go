package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/metrics"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// Engine computes dashboard snapshots for stream clients.
type Engine interface {
	Compute(req *request.DashboardRequest) (dashboard.Snapshot, error)
}

// Options tune connection keepalive and buffering.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     16,
	}
}

func OptionsFromConfig(cfg config.WSConfig) Options {
	return Options{
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		MaxMessageSize: cfg.MaxMessageSize,
		SendBuffer:     cfg.SendBuffer,
	}
}

// pingPeriod must be less than PongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Hub tracks dashboard stream clients and serves the WebSocket upgrade.
type Hub struct {
	engine   Engine
	encoder  *Encoder
	opts     Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub. m may be nil.
func NewHub(engine Engine, opts Options, m *metrics.Metrics, logger *zap.Logger) (*Hub, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	return &Hub{
		engine:  engine,
		encoder: enc,
		opts:    opts,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
			Subprotocols:    Subprotocols,
		},
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}, nil
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("dashboard hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.setGauge()
			h.logger.Debug("client registered",
				zap.String("connID", client.connID),
				zap.String("protocol", string(client.protocol)),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.setGauge()
			h.logger.Debug("client unregistered", zap.String("connID", client.connID))
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
	if h.metrics != nil {
		h.metrics.WSClients.Set(0)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setGauge() {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(h.ClientCount()))
	}
}

// drop schedules a client for removal without blocking the caller.
func (h *Hub) drop(c *Client) {
	go func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
}

// ServeHTTP upgrades the connection and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Negotiate subprotocol - the upgrader picks the first requested protocol
	// we support; no match means plain JSON.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	protocol := Protocol(conn.Subprotocol())
	if protocol == "" {
		protocol = ProtocolJSON
	}

	client := newClient(h, conn, uuid.New().String(), protocol)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	client.enqueue(connectedMessage(client.connID))

	go client.writePump()
	go client.computeLoop()
	go client.readPump()
}
