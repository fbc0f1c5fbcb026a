package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhooyr.io/websocket"
)

const defaultWaitTime = 100 * time.Millisecond

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if cfg.InstanceID == "" {
		cfg.InstanceID = "test"
	}

	router, err := Main(ctx, testLogger(), cfg, nil)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, "ws" + strings.TrimPrefix(server.URL, "http") + "/"
}

func dial(t *testing.T, ctx context.Context, u string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

func peerCount(t *testing.T, server *httptest.Server) int {
	t.Helper()

	resp, err := server.Client().Get(server.URL + "/stats")
	require.NoError(t, err)

	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	s := Stats{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s.Peers
}

func waitForPeers(t *testing.T, server *httptest.Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return peerCount(t, server) == n }, 2*time.Second, 10*time.Millisecond)
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	typ, b, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)
	return b
}

func expectSilence(t *testing.T, ctx context.Context, conn *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, defaultWaitTime)
	defer cancel()

	_, b, err := conn.Read(ctx)
	assert.Error(t, err, "unexpected message %v", b)
}

func TestE2E(t *testing.T) {
	ctx := context.Background()
	server, u := newTestServer(t, Config{MaxPeers: 10, QueueSize: 16})

	resp, err := server.Client().Get(server.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "test", resp.Header.Get("Instance-ID"))

	resp, err = server.Client().Get(server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode, "plain request did not require upgrade")

	a := dial(t, ctx, u)
	b := dial(t, ctx, u)
	c := dial(t, ctx, u)
	waitForPeers(t, server, 3)

	record := []byte{15, 255, 0, 255, 13, 0, 123, 0, 33, 0, 225, 0}
	require.NoError(t, a.Write(ctx, websocket.MessageBinary, record))

	assert.Equal(t, record, read(t, ctx, b))
	assert.Equal(t, record, read(t, ctx, c))

	// the sender never hears its own stroke; b's reply proves a's reader is live
	require.NoError(t, b.Write(ctx, websocket.MessageBinary, []byte{1}))
	assert.Equal(t, []byte{1}, read(t, ctx, a))
	assert.Equal(t, []byte{1}, read(t, ctx, c))

	// disconnect cleanup
	require.NoError(t, b.Close(websocket.StatusNormalClosure, "bye"))
	waitForPeers(t, server, 2)

	require.NoError(t, a.Write(ctx, websocket.MessageBinary, record))
	assert.Equal(t, record, read(t, ctx, c))
	expectSilence(t, ctx, a)
}

func TestE2E_PerSenderOrder(t *testing.T) {
	ctx := context.Background()
	server, u := newTestServer(t, Config{QueueSize: 256})

	a := dial(t, ctx, u)
	b := dial(t, ctx, u)
	waitForPeers(t, server, 2)

	for i := 0; i < 100; i++ {
		require.NoError(t, a.Write(ctx, websocket.MessageBinary, []byte{byte(i)}))
	}

	for i := 0; i < 100; i++ {
		assert.Equal(t, []byte{byte(i)}, read(t, ctx, b))
	}
}

func TestE2E_Capacity(t *testing.T) {
	ctx := context.Background()
	server, u := newTestServer(t, Config{MaxPeers: 1, QueueSize: 1})

	dial(t, ctx, u)
	waitForPeers(t, server, 1)

	_, resp, err := websocket.Dial(ctx, u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestE2E_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, err := Main(ctx, testLogger(), Config{InstanceID: "test", QueueSize: 1}, nil)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	defer server.Close()

	conn := dial(t, context.Background(), "ws"+strings.TrimPrefix(server.URL, "http")+"/")
	waitForPeers(t, server, 1)

	cancel()

	rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer rcancel()

	_, _, err = conn.Read(rctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestMainRequiresInstanceID(t *testing.T) {
	_, err := Main(context.Background(), testLogger(), Config{}, nil)
	assert.Error(t, err)
}
