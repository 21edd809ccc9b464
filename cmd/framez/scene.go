package main

import (
	"context"
	"image/color"
	"sync"

	"github.com/gogpu/gg/surface"
	"github.com/zoobzio/framez"
)

var (
	background = color.RGBA{R: 16, G: 16, B: 24, A: 255}
	ballColor  = color.RGBA{R: 240, G: 180, B: 40, A: 255}
)

// fallbackStep is used when a frame carries no usable delta.
const fallbackStep = 1.0 / 60

// bouncer is the demo scene: a ball bouncing off the surface edges.
// Update runs on the update thread and paint on the render thread.
type bouncer struct {
	w, h, r float64
	limit   uint64 // frames to run, 0 for no limit

	mu     sync.Mutex
	x, y   float64
	vx, vy float64 // pixels per second
}

func newBouncer(width, height int, limit uint64) *bouncer {
	w, h := float64(width), float64(height)
	r := min(w, h) / 10
	return &bouncer{
		w: w, h: h, r: r,
		limit: limit,
		x:     w / 2, y: h / 2,
		vx: w / 2, vy: h / 3,
	}
}

func (b *bouncer) Update(_ context.Context, f framez.Frame) (framez.UpdateStatus, error) {
	if b.limit > 0 && f.Number > b.limit {
		return framez.UpdateStatus{}, framez.ErrStopRequested
	}

	dt := f.LastFrameDelta.Seconds()
	if dt <= 0 || dt > 0.25 {
		dt = fallbackStep
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.x, b.vx = bounce(b.x+b.vx*dt, b.vx, b.r, b.w-b.r)
	b.y, b.vy = bounce(b.y+b.vy*dt, b.vy, b.r, b.h-b.r)
	return framez.UpdateStatus{KeepUpdating: true}, nil
}

// bounce reflects p into [lo, hi] and flips v when it hit an edge.
func bounce(p, v, lo, hi float64) (float64, float64) {
	switch {
	case p < lo:
		return 2*lo - p, -v
	case p > hi:
		return 2*hi - p, -v
	}
	return p, v
}

func (b *bouncer) position() (float64, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.x, b.y
}

func (b *bouncer) paint(dst surface.Surface, _ framez.Frame) {
	x, y := b.position()
	dst.Clear(background)
	p := surface.NewPath()
	p.Circle(x, y, b.r)
	dst.Fill(p, surface.DefaultFillStyle().WithColor(ballColor))
}
