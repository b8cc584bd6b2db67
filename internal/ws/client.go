package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/request"
)

type frame struct {
	msgType int
	data    []byte
}

type computeJob struct {
	id         uint64
	generation uint64
	req        *request.DashboardRequest
}

// Client represents a WebSocket client connection.
//
// Compute requests are handled off the read loop by a single worker. A newer
// request supersedes any older one: a queued request is replaced, and a
// result that finishes after a newer request arrived is dropped unsent.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	connID   string
	protocol Protocol
	logger   *zap.Logger

	send       chan frame
	pending    chan computeJob
	generation atomic.Uint64
	done       chan struct{}
	closeOnce  sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, connID string, protocol Protocol) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		connID:   connID,
		protocol: protocol,
		logger:   h.logger.With(zap.String("connID", connID)),
		send:     make(chan frame, h.opts.SendBuffer),
		pending:  make(chan computeJob, 1),
		done:     make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(msgType, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(f.msgType, f.data); err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// computeLoop evaluates the latest pending request until the client closes.
func (c *Client) computeLoop() {
	for {
		select {
		case <-c.done:
			return
		case job := <-c.pending:
			start := time.Now()
			snap, err := c.hub.engine.Compute(job.req)
			if job.generation != c.generation.Load() {
				c.superseded(job)
				continue
			}
			if err != nil {
				c.enqueue(errorMessage(job.id, err))
				continue
			}
			if c.hub.metrics != nil {
				c.hub.metrics.ObserveSnapshot(start, snap.Surface.Cells())
			}
			c.enqueue(snapshotMessage(job.id, &snap))
		}
	}
}

// submit queues a compute request, replacing one that has not started.
// Only the read loop calls submit.
func (c *Client) submit(id uint64, req *request.DashboardRequest) {
	job := computeJob{id: id, generation: c.generation.Add(1), req: req}
	for {
		select {
		case c.pending <- job:
			return
		default:
		}
		select {
		case old := <-c.pending:
			c.superseded(old)
		default:
		}
	}
}

func (c *Client) superseded(job computeJob) {
	c.logger.Debug("compute superseded", zap.Uint64("id", job.id))
	if c.hub.metrics != nil {
		c.hub.metrics.SnapshotsSuperseded.Inc()
	}
}

// enqueue encodes msg for the client's protocol and hands it to the write
// pump. A client whose buffer is full is disconnected.
func (c *Client) enqueue(msg *Downstream) {
	msgType, data, err := c.hub.encoder.Encode(c.protocol, msg)
	if err != nil {
		c.logger.Error("encoding message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	select {
	case c.send <- frame{msgType: msgType, data: data}:
	case <-c.done:
	default:
		// Buffer full, schedule disconnect
		c.logger.Warn("send buffer full, disconnecting slow client")
		c.hub.drop(c)
	}
}

// handleMessage processes an incoming upstream message.
func (c *Client) handleMessage(msgType int, data []byte) {
	msg, err := c.decodeUpstream(msgType, data)
	if err != nil {
		c.logger.Debug("failed to parse upstream message",
			zap.String("protocol", string(c.protocol)),
			zap.Error(err),
		)
		c.enqueue(errorMessage(0, err))
		return
	}

	switch msg.Type {
	case TypePing:
		c.enqueue(pongMessage())
	case TypeCompute:
		c.submit(msg.ID, msg.Request)
	}
}

func (c *Client) decodeUpstream(msgType int, data []byte) (*Upstream, error) {
	raw, err := c.hub.encoder.unwrap(c.protocol, msgType, data)
	if err != nil {
		return nil, err
	}
	return parseUpstream(raw)
}
