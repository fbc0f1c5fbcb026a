// Package stroke defines the drawing primitives exchanged between scribble
// clients and the fixed 12 byte record they travel in.
package stroke

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrOutOfRange  = errors.New("stroke: value out of range")
	ErrColorFormat = errors.New("stroke: color must be #rrggbb")
)

// Named brush sizes.
const (
	SizeTiny   uint8 = 1
	SizeSmall  uint8 = 5
	SizeMedium uint8 = 10
	SizeLarge  uint8 = 15
	SizeXLarge uint8 = 20
)

// Named brush colors.
var (
	Black = Color{0x00, 0x00, 0x00}
	White = Color{0xFF, 0xFF, 0xFF}
	Red   = Color{0xFF, 0x00, 0x00}
	Green = Color{0x00, 0xFF, 0x00}
	Blue  = Color{0x00, 0x00, 0xFF}
)

// Cap is the line cap and join style. It is the same on every client and
// never transmitted.
const Cap = "round"

type Color struct {
	R, G, B uint8
}

// ParseColor accepts "#rrggbb" or "rrggbb" in either case.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrColorFormat, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrColorFormat, s)
	}

	return RGB(uint32(v)), nil
}

// RGB builds a color from a 0xRRGGBB value. Bits above 24 are ignored.
func RGB(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Uint32 returns the color as 0xRRGGBB.
func (c Color) Uint32() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type Brush struct {
	Size  uint8
	Color Color
}

// DefaultBrush is what a client starts drawing with.
var DefaultBrush = Brush{Size: SizeMedium, Color: Red}

// NewBrush rejects sizes outside 0-255 instead of clamping or wrapping them.
func NewBrush(size int, color string) (Brush, error) {
	if size < 0 || size > math.MaxUint8 {
		return Brush{}, fmt.Errorf("%w: brush size %d", ErrOutOfRange, size)
	}

	c, err := ParseColor(color)
	if err != nil {
		return Brush{}, err
	}

	return Brush{Size: uint8(size), Color: c}, nil
}

// Stroke is a line segment from (X1, Y1) to (X2, Y2).
type Stroke struct {
	X1, Y1, X2, Y2 uint16
}

// NewStroke rejects coordinates outside 0-65535.
func NewStroke(x1, y1, x2, y2 int) (Stroke, error) {
	for _, v := range [...]int{x1, y1, x2, y2} {
		if v < 0 || v > math.MaxUint16 {
			return Stroke{}, fmt.Errorf("%w: coordinate %d", ErrOutOfRange, v)
		}
	}

	return Stroke{X1: uint16(x1), Y1: uint16(y1), X2: uint16(x2), Y2: uint16(y2)}, nil
}

// Drawable pairs a stroke with the brush it was drawn with. It is the unit
// of transmission and of painting.
type Drawable struct {
	Stroke Stroke
	Brush  Brush
}
