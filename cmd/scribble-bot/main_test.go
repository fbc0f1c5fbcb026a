package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manualpilot/scribble/client"
	"manualpilot/scribble/stroke"
)

func TestWalkStaysOnCanvas(t *testing.T) {
	w := newWalk(42)
	for i := 0; i < 10000; i++ {
		x, y := w.next()
		require.True(t, x >= 0 && x < canvasWidth, "x=%d", x)
		require.True(t, y >= 0 && y < canvasHeight, "y=%d", y)
	}
}

func TestDraw(t *testing.T) {
	var got []stroke.Drawable
	pen := client.NewPen(stroke.DefaultBrush, func(d stroke.Drawable) { got = append(got, d) })

	require.NoError(t, draw(context.Background(), pen, newWalk(7), 30, time.Millisecond))

	assert.Len(t, got, 30)
	assert.False(t, pen.Drawing())

	first := got[0].Stroke
	assert.Equal(t, first.X1, first.X2)
	assert.Equal(t, first.Y1, first.Y2)
}

func TestFlags(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--strokes", "5", "--color", "#00ff00", "-v"}))

	strokes, err := cmd.Flags().GetInt("strokes")
	require.NoError(t, err)
	assert.Equal(t, 5, strokes)

	color, err := cmd.Flags().GetString("color")
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", color)
}

func TestRunRejectsBadBrush(t *testing.T) {
	err := run(context.Background(), &options{size: 300, color: "#ffffff"})
	assert.ErrorIs(t, err, stroke.ErrOutOfRange)
}
