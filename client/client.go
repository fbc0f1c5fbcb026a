// Package client connects a drawing surface to a scribble hub.
package client

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"manualpilot/scribble/stroke"
	"nhooyr.io/websocket"
)

// Surface paints strokes. Rendering is up to the implementation.
type Surface interface {
	Paint(d stroke.Drawable)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(d stroke.Drawable)

func (f SurfaceFunc) Paint(d stroke.Drawable) { f(d) }

// readLimit is well above a record so an oversized message is dropped as
// malformed instead of tearing down the connection.
const readLimit = 1024

type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// Dial connects to the hub's join endpoint, e.g. "ws://localhost:8080/".
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", url, err)
	}

	conn.SetReadLimit(readLimit)

	return &Client{conn: conn, logger: logger}, nil
}

// Send encodes d and writes it as one binary message.
func (c *Client) Send(ctx context.Context, d stroke.Drawable) error {
	return c.conn.Write(ctx, websocket.MessageBinary, stroke.Encode(d))
}

// Run paints every stroke relayed by the hub until the connection closes or
// ctx is done. Malformed records are logged and skipped. A normal closure
// returns nil.
func (c *Client) Run(ctx context.Context, surface Surface) error {
	for {
		_, b, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return err
		}

		d, err := stroke.Decode(b)
		if err != nil {
			c.logger.Warn("dropped malformed stroke", slog.String("error", err.Error()), slog.Int("size", len(b)))
			continue
		}

		surface.Paint(d)
	}
}

// Sink returns a Pen callback that paints each stroke on local first and
// then sends it. Send failures are logged; drawing is best-effort.
func (c *Client) Sink(ctx context.Context, local Surface) func(stroke.Drawable) {
	return func(d stroke.Drawable) {
		if local != nil {
			local.Paint(d)
		}

		if err := c.Send(ctx, d); err != nil {
			c.logger.Warn("failed to send stroke", slog.String("error", err.Error()))
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
