package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// dialTestHub serves the hub over httptest and dials one client.
func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		h.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestConnectGreeting(t *testing.T) {
	h := NewHub(bus.New())
	conn := dialTestHub(t, h)

	f := readFrame(t, conn)
	assert.Equal(t, FrameConnected, f.Type)
	assert.NotEmpty(t, f.Message)
	assert.False(t, f.Timestamp.IsZero())
}

func TestPingPong(t *testing.T) {
	h := NewHub(bus.New())
	conn := dialTestHub(t, h)
	readFrame(t, conn) // connected

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))

	f := readFrame(t, conn)
	assert.Equal(t, FramePong, f.Type)
}

func TestInvalidClientMessageIsIgnored(t *testing.T) {
	h := NewHub(bus.New())
	conn := dialTestHub(t, h)
	readFrame(t, conn) // connected

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))

	// The garbage was skipped; the ping still got its pong.
	f := readFrame(t, conn)
	assert.Equal(t, FramePong, f.Type)
}

func TestBusEventsAreRelayed(t *testing.T) {
	b := bus.New()
	h := NewHub(b)
	h.Start()
	defer h.Stop()

	conn := dialTestHub(t, h)
	readFrame(t, conn) // connected

	b.Publish(bus.EventHeartbeatReceived, bus.HeartbeatResult{
		Service:   "svc",
		Check:     "basic",
		Timestamp: time.Now(),
		Pulse:     pulse.Pulse{Status: pulse.StatusHealthy, ResponseTime: 42},
		Success:   true,
	})

	f := readFrame(t, conn)
	assert.Equal(t, FrameHeartbeatUpdate, f.Type)
	assert.False(t, f.Urgent)

	b.Publish(bus.EventFlatlineDetected, bus.FlatlineDetected{
		Service:             "svc",
		ConsecutiveFailures: 3,
		Severity:            bus.FlatlineSeverityWarning,
		Timestamp:           time.Now(),
	})

	f = readFrame(t, conn)
	assert.Equal(t, FrameFlatline, f.Type)
	assert.True(t, f.Urgent)
}

func TestActiveConnectionsTracksLifecycle(t *testing.T) {
	h := NewHub(bus.New())
	conn := dialTestHub(t, h)
	readFrame(t, conn) // connected

	assert.Equal(t, 1, h.ActiveConnections())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return h.ActiveConnections() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCloseAllDisconnectsClients(t *testing.T) {
	h := NewHub(bus.New())
	conn := dialTestHub(t, h)
	readFrame(t, conn) // connected

	h.CloseAll()
	require.Eventually(t, func() bool {
		return h.ActiveConnections() == 0
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Error(t, err)
}

func TestBroadcastWithNoClientsIsNoOp(t *testing.T) {
	h := NewHub(bus.New())
	assert.NotPanics(t, func() {
		h.BroadcastFrame(Frame{Type: FrameHeartbeatUpdate, Timestamp: time.Now()})
	})
}
