package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"manualpilot/scribble/client"
	"manualpilot/scribble/discovery"
	"manualpilot/scribble/stroke"
)

const (
	canvasWidth  = 800
	canvasHeight = 600
)

type options struct {
	url      string
	discover bool
	strokes  int
	interval time.Duration
	size     int
	color    string
	seed     int64
	linger   time.Duration
	verbose  bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "scribble-bot",
		Short: "Connect to a scribble hub and draw random strokes",
		Long: `scribble-bot joins a scribble hub, draws a random walk on the shared
canvas and counts the strokes other peers draw while it is connected.`,
		Example: `  scribble-bot --url ws://localhost:8080/ --strokes 500 --interval 10ms
  scribble-bot --discover --color "#0000ff" --size 5`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "ws://localhost:8080/", "hub join endpoint")
	flags.BoolVar(&opts.discover, "discover", false, "find a hub on the local network over mDNS")
	flags.IntVar(&opts.strokes, "strokes", 200, "number of strokes to draw")
	flags.DurationVar(&opts.interval, "interval", 20*time.Millisecond, "delay between strokes")
	flags.IntVar(&opts.size, "size", int(stroke.DefaultBrush.Size), "brush size (0-255)")
	flags.StringVar(&opts.color, "color", stroke.DefaultBrush.Color.String(), "brush color as #rrggbb")
	flags.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random walk seed")
	flags.DurationVar(&opts.linger, "linger", time.Second, "time to keep receiving after the last stroke")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every received stroke")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	lvl := slog.LevelInfo
	if opts.verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.HandlerOptions{Level: lvl}.NewTextHandler(os.Stderr))

	brush, err := stroke.NewBrush(opts.size, opts.color)
	if err != nil {
		return err
	}

	url := opts.url
	if opts.discover {
		url, err = discovery.Browse(3 * time.Second)
		if err != nil {
			return err
		}
		logger.Info("discovered hub", slog.String("url", url))
	}

	c, err := client.Dial(ctx, url, logger)
	if err != nil {
		return err
	}

	//goland:noinspection GoUnhandledErrorResult
	defer c.Close()

	var received atomic.Int64
	surface := client.SurfaceFunc(func(d stroke.Drawable) {
		received.Add(1)
		logger.Debug("stroke",
			slog.Int("size", int(d.Brush.Size)),
			slog.String("color", d.Brush.Color.String()),
			slog.Any("from", [2]uint16{d.Stroke.X1, d.Stroke.Y1}),
			slog.Any("to", [2]uint16{d.Stroke.X2, d.Stroke.Y2}),
		)
	})

	rctx, rcancel := context.WithCancel(ctx)
	defer rcancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(rctx, surface) }()

	var sent int
	pen := client.NewPen(brush, func(d stroke.Drawable) {
		if err := c.Send(ctx, d); err != nil {
			logger.Warn("failed to send stroke", slog.String("error", err.Error()))
			return
		}
		sent++
	})

	walk := newWalk(opts.seed)
	if err := draw(ctx, pen, walk, opts.strokes, opts.interval); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(opts.linger):
	}

	logger.Info("finished", slog.Int("sent", sent), slog.Int64("received", received.Load()))
	return nil
}

func draw(ctx context.Context, pen *client.Pen, w *walk, n int, interval time.Duration) error {
	x, y := w.next()
	if err := pen.Press(x, y); err != nil {
		return err
	}
	defer pen.Release()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 1; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// lift the pen now and then so the canvas gets separate scribbles
		if w.rng.Intn(50) == 0 {
			pen.Release()
			x, y = w.jump()
			if err := pen.Press(x, y); err != nil {
				return err
			}
			continue
		}

		x, y = w.next()
		if err := pen.Move(x, y); err != nil {
			return err
		}
	}

	return nil
}

type walk struct {
	rng  *rand.Rand
	x, y int
}

func newWalk(seed int64) *walk {
	w := &walk{rng: rand.New(rand.NewSource(seed))}
	w.jump()
	return w
}

func (w *walk) jump() (int, int) {
	w.x = w.rng.Intn(canvasWidth)
	w.y = w.rng.Intn(canvasHeight)
	return w.x, w.y
}

func (w *walk) next() (int, int) {
	w.x = clamp(w.x+w.rng.Intn(21)-10, 0, canvasWidth-1)
	w.y = clamp(w.y+w.rng.Intn(21)-10, 0, canvasHeight-1)
	return w.x, w.y
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
