// Package benchmarks measures the pipeline's hot paths: marker recording,
// statistics, the vsync → update → render handshake and surface
// replacement.
package benchmarks

import (
	"context"

	"github.com/zoobzio/framez"
)

// chanVSync delivers one vsync per value sent on ticks.
type chanVSync struct {
	ticks chan struct{}
}

func newChanVSync() *chanVSync {
	return &chanVSync{ticks: make(chan struct{})}
}

func (c *chanVSync) Wait(ctx context.Context) error {
	select {
	case <-c.ticks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signalSurface reports every presented frame on presented.
type signalSurface struct {
	presented chan uint64
}

func newSignalSurface() *signalSurface {
	return &signalSurface{presented: make(chan uint64, 1)}
}

func (s *signalSurface) Draw(framez.Frame) error { return nil }
func (s *signalSurface) Flush() error { return nil }

func (s *signalSurface) Present() error {
	select {
	case s.presented <- 0:
	default:
	}
	return nil
}

// busyScene asks for an update on every vsync.
var busyScene = framez.SceneFunc(func(context.Context, framez.Frame) (framez.UpdateStatus, error) {
	return framez.UpdateStatus{KeepUpdating: true}, nil
})

// nopSink drops everything.
type nopSink struct{}

func (nopSink) OnMarker(framez.Marker) {}
func (nopSink) OnStats(framez.StageStats) {}
