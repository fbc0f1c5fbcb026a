package client

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"manualpilot/scribble/internal"
	"manualpilot/scribble/stroke"
	"nhooyr.io/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.HandlerOptions{}.NewTextHandler(io.Discard))
}

func startHub(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router, err := internal.Main(ctx, testLogger(), internal.Config{InstanceID: "test", QueueSize: 64}, nil)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/"
}

type canvas struct {
	lock sync.Mutex
	got  []stroke.Drawable
}

func (c *canvas) Paint(d stroke.Drawable) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.got = append(c.got, d)
}

func (c *canvas) strokes() []stroke.Drawable {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]stroke.Drawable(nil), c.got...)
}

func TestClientDrawsForPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := startHub(t)

	alice, err := Dial(ctx, u, testLogger())
	require.NoError(t, err)
	defer alice.Close()

	bob, err := Dial(ctx, u, testLogger())
	require.NoError(t, err)
	defer bob.Close()

	aliceCanvas := &canvas{}
	bobCanvas := &canvas{}

	go func() { _ = alice.Run(ctx, aliceCanvas) }()
	go func() { _ = bob.Run(ctx, bobCanvas) }()

	// wait until both are registered: bob keeps sending a dot until alice sees one
	require.Eventually(t, func() bool {
		_ = bob.Send(ctx, stroke.Drawable{Brush: stroke.DefaultBrush})
		return len(aliceCanvas.strokes()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	local := &canvas{}
	pen := NewPen(stroke.Brush{Size: 15, Color: stroke.Color{R: 0xFF, B: 0xFF}}, alice.Sink(ctx, local))
	require.NoError(t, pen.Press(13, 123))
	require.NoError(t, pen.Move(33, 225))
	pen.Release()

	require.Len(t, local.strokes(), 2, "strokes are painted locally first")

	require.Eventually(t, func() bool { return len(bobCanvas.strokes()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, local.strokes(), bobCanvas.strokes())
	assert.Equal(t, "#ff00ff", bobCanvas.strokes()[1].Brush.Color.String())

	for _, d := range aliceCanvas.strokes() {
		assert.Equal(t, stroke.Drawable{Brush: stroke.DefaultBrush}, d, "alice received her own stroke")
	}
}

func TestClientSkipsMalformed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := startHub(t)

	raw, _, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	defer raw.Close(websocket.StatusNormalClosure, "")

	c, err := Dial(ctx, u, testLogger())
	require.NoError(t, err)
	defer c.Close()

	got := &canvas{}
	go func() { _ = c.Run(ctx, got) }()

	valid := stroke.Encode(stroke.Drawable{Stroke: stroke.Stroke{X1: 1, Y1: 2, X2: 3, Y2: 4}, Brush: stroke.DefaultBrush})

	require.Eventually(t, func() bool {
		_ = raw.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3})
		_ = raw.Write(ctx, websocket.MessageBinary, make([]byte, 40))
		_ = raw.Write(ctx, websocket.MessageBinary, valid)
		return len(got.strokes()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	for _, d := range got.strokes() {
		assert.Equal(t, stroke.Stroke{X1: 1, Y1: 2, X2: 3, Y2: 4}, d.Stroke)
	}
}

func TestClientRunStopsOnClose(t *testing.T) {
	ctx := context.Background()
	u := startHub(t)

	c, err := Dial(ctx, u, testLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, SurfaceFunc(func(stroke.Drawable) {})) }()

	_ = c.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
