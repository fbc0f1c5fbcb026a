package client

import (
	"sync"

	"manualpilot/scribble/stroke"
)

// Pen turns pointer press, move and release samples into strokes. Each
// stroke runs from the previous sample to the current one and carries the
// brush active when it was drawn. Strokes are emitted in sample order.
type Pen struct {
	lock    sync.Mutex
	brush   stroke.Brush
	drawing bool
	prevX   uint16
	prevY   uint16
	emit    func(stroke.Drawable)
}

func NewPen(brush stroke.Brush, emit func(stroke.Drawable)) *Pen {
	return &Pen{brush: brush, emit: emit}
}

func (p *Pen) SetBrush(b stroke.Brush) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.brush = b
}

func (p *Pen) Brush() stroke.Brush {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.brush
}

func (p *Pen) Drawing() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.drawing
}

// Press starts drawing with a dot at (x, y).
func (p *Pen) Press(x, y int) error {
	s, err := stroke.NewStroke(x, y, x, y)
	if err != nil {
		return err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	p.drawing = true
	p.draw(s)
	return nil
}

// Move draws from the previous sample to (x, y). It does nothing unless the
// pen is pressed.
func (p *Pen) Move(x, y int) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.drawing {
		return nil
	}

	s, err := stroke.NewStroke(int(p.prevX), int(p.prevY), x, y)
	if err != nil {
		return err
	}

	p.draw(s)
	return nil
}

// Release ends drawing. Leaving the canvas counts as a release.
func (p *Pen) Release() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.drawing = false
}

func (p *Pen) draw(s stroke.Stroke) {
	p.prevX, p.prevY = s.X2, s.Y2
	if p.emit != nil {
		p.emit(stroke.Drawable{Stroke: s, Brush: p.brush})
	}
}
