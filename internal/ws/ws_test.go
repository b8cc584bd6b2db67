package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/metrics"
	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// mockEngine echoes the requested spot as the quoted price. A request for
// spot 1 blocks until release is closed.
type mockEngine struct {
	started chan struct{}
	release chan struct{}
}

func newMockEngine() *mockEngine {
	return &mockEngine{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (m *mockEngine) Compute(req *request.DashboardRequest) (dashboard.Snapshot, error) {
	if req.Spot <= 0 {
		errs := &request.ValidationErrors{}
		errs.Add("spot", "must be greater than 0")
		return dashboard.Snapshot{}, errs
	}
	if req.Spot == 1 {
		m.started <- struct{}{}
		<-m.release
	}
	return dashboard.Snapshot{Quote: dashboard.Quote{Price: req.Spot}}, nil
}

type testConn struct {
	t        *testing.T
	conn     *websocket.Conn
	protocol Protocol
	enc      *Encoder
}

func startHub(t *testing.T, engine Engine, m *metrics.Metrics) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub, err := NewHub(engine, DefaultOptions(), m, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, protocols ...string) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dialer := websocket.Dialer{Subprotocols: protocols, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	enc, err := NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	protocol := Protocol(conn.Subprotocol())
	if protocol == "" {
		protocol = ProtocolJSON
	}
	return &testConn{t: t, conn: conn, protocol: protocol, enc: enc}
}

func (c *testConn) send(msg *Upstream) {
	c.t.Helper()
	msgType, data, err := c.enc.Encode(c.protocol, msg)
	if err != nil {
		c.t.Fatal(err)
	}
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		c.t.Fatal(err)
	}
}

func (c *testConn) read() *Downstream {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var msg Downstream
	if err := c.enc.Decode(c.protocol, msgType, data, &msg); err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	return &msg
}

func compute(id uint64, spot float64) *Upstream {
	return &Upstream{Type: TypeCompute, ID: id, Request: &request.DashboardRequest{
		OptionRequest: request.OptionRequest{Spot: spot, Strike: 100, Volatility: 0.2, Kind: "call"},
	}}
}

func TestComputeAllProtocols(t *testing.T) {
	_, srv, _ := startHub(t, newMockEngine(), nil)

	for _, p := range []Protocol{ProtocolJSON, ProtocolZstdJSON, ProtocolProtobuf} {
		t.Run(string(p), func(t *testing.T) {
			c := dial(t, srv, string(p))
			if c.protocol != p {
				t.Fatalf("expected protocol %s, got %s", p, c.protocol)
			}

			msg := c.read()
			if msg.Type != TypeConnected || msg.ConnectionID == "" {
				t.Fatalf("expected connected message, got %+v", msg)
			}

			c.send(compute(7, 42))
			msg = c.read()
			if msg.Type != TypeSnapshot || msg.ID != 7 {
				t.Fatalf("expected snapshot 7, got %+v", msg)
			}
			if msg.Snapshot.Quote.Price != 42 {
				t.Errorf("expected price 42, got %v", msg.Snapshot.Quote.Price)
			}

			c.send(&Upstream{Type: TypePing})
			if msg = c.read(); msg.Type != TypePong {
				t.Errorf("expected pong, got %+v", msg)
			}
		})
	}
}

func TestDefaultProtocolIsJSON(t *testing.T) {
	_, srv, _ := startHub(t, newMockEngine(), nil)
	c := dial(t, srv)
	if c.protocol != ProtocolJSON {
		t.Fatalf("expected json protocol, got %s", c.protocol)
	}
	if msg := c.read(); msg.Type != TypeConnected {
		t.Fatalf("expected connected, got %+v", msg)
	}
}

func TestComputeValidationError(t *testing.T) {
	_, srv, _ := startHub(t, newMockEngine(), nil)
	c := dial(t, srv, string(ProtocolJSON))
	c.read()

	c.send(compute(3, -1))
	msg := c.read()
	if msg.Type != TypeError || msg.ID != 3 {
		t.Fatalf("expected error for request 3, got %+v", msg)
	}
	if len(msg.Details) != 1 || msg.Details[0].Field != "spot" {
		t.Errorf("expected spot detail, got %+v", msg.Details)
	}
}

func TestMalformedMessage(t *testing.T) {
	_, srv, _ := startHub(t, newMockEngine(), nil)
	c := dial(t, srv, string(ProtocolJSON))
	c.read()

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)); err != nil {
		t.Fatal(err)
	}
	msg := c.read()
	if msg.Type != TypeError || !strings.Contains(msg.Error, "unknown message type") {
		t.Errorf("expected unknown type error, got %+v", msg)
	}

	// the connection survives a bad message
	c.send(&Upstream{Type: TypePing})
	if msg = c.read(); msg.Type != TypePong {
		t.Errorf("expected pong, got %+v", msg)
	}
}

func TestNewerRequestSupersedesOlder(t *testing.T) {
	engine := newMockEngine()
	m := metrics.New()
	_, srv, _ := startHub(t, engine, m)
	c := dial(t, srv, string(ProtocolJSON))
	c.read()

	c.send(compute(1, 1))
	<-engine.started

	c.send(compute(2, 2))
	c.send(compute(3, 3))

	// the pong proves requests 2 and 3 were read before 1 finishes
	c.send(&Upstream{Type: TypePing})
	if msg := c.read(); msg.Type != TypePong {
		t.Fatalf("expected pong, got %+v", msg)
	}
	close(engine.release)

	msg := c.read()
	if msg.Type != TypeSnapshot || msg.ID != 3 {
		t.Fatalf("expected only snapshot 3, got %+v", msg)
	}

	c.send(&Upstream{Type: TypePing})
	if msg = c.read(); msg.Type != TypePong {
		t.Fatalf("expected no stale snapshots, got %+v", msg)
	}

	if got := testutil.ToFloat64(m.SnapshotsSuperseded); got != 2 {
		t.Errorf("expected 2 superseded snapshots, got %v", got)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	m := metrics.New()
	hub, srv, cancel := startHub(t, newMockEngine(), m)
	c := dial(t, srv, string(ProtocolJSON))
	c.read()

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	if got := testutil.ToFloat64(m.WSClients); got != 1 {
		t.Errorf("expected gauge 1, got %v", got)
	}

	cancel()

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := c.conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("expected normal closure, got %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestEncoderRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	snap := dashboard.Snapshot{Quote: dashboard.Quote{
		Params: pricing.Params{Spot: 100, Strike: 95, Maturity: 0.5, Volatility: 0.3, Kind: pricing.Put},
		Price:  4.25,
	}}

	for _, p := range []Protocol{ProtocolJSON, ProtocolZstdJSON, ProtocolProtobuf} {
		msgType, data, err := enc.Encode(p, snapshotMessage(9, &snap))
		if err != nil {
			t.Fatalf("%s: encode: %v", p, err)
		}
		wantType := websocket.BinaryMessage
		if p == ProtocolJSON {
			wantType = websocket.TextMessage
		}
		if msgType != wantType {
			t.Errorf("%s: expected message type %d, got %d", p, wantType, msgType)
		}

		var got Downstream
		if err := enc.Decode(p, msgType, data, &got); err != nil {
			t.Fatalf("%s: decode: %v", p, err)
		}
		if got.ID != 9 || got.Snapshot.Quote.Price != 4.25 || got.Snapshot.Quote.Params.Kind != pricing.Put {
			t.Errorf("%s: unexpected round trip %+v", p, got.Snapshot.Quote)
		}
	}
}

func TestEncoderRejectsForeignAny(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	var v Downstream
	if err := enc.Decode(ProtocolProtobuf, websocket.BinaryMessage, []byte{0xff, 0x01}, &v); err == nil {
		t.Error("expected error for garbage frame")
	}
	if err := enc.Decode(ProtocolJSON, websocket.BinaryMessage, []byte("{}"), &v); err == nil {
		t.Error("expected error for binary frame on json protocol")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
