package framez

import (
	"context"
	"fmt"
	"log/slog"
)

// renderThread draws and presents frames on the current surface and
// serves surface replacement between frames.
//
// surface and generation are only touched by the render loop.
type renderThread struct {
	hub    *hub
	perf   *perfServer
	logger *slog.Logger

	surface    RenderSurface
	generation uint64 // incremented on every adopted surface
	drawn      bool   // Draw was called on surface

	thread *thread
}

func newRenderThread(cfg config, h *hub, perf *perfServer, surface RenderSurface) *renderThread {
	r := &renderThread{
		hub:     h,
		perf:    perf,
		logger:  cfg.logger,
		surface: surface,
		thread:  newThread("render", cfg.logger),
	}
	if surface != nil {
		r.generation = 1
	}
	return r
}

func (r *renderThread) run(_ context.Context) {
	r.hub.renderStarted()
	defer r.hub.renderExited()
	r.hub.threadStarted()

	for {
		work, ok := r.hub.renderReady()
		if !ok {
			return
		}

		if work.replace {
			r.replace(work)
			continue
		}

		if err := r.render(work.frame); err != nil {
			r.logger.Error("render failed", "frame", work.frame.Number, "surface", r.generation, "error", err)
			r.hub.fail(fmt.Errorf("render frame %d: %w", work.frame.Number, err))
			return
		}
		r.hub.renderFinished()
	}
}

// replace flushes the old surface before acknowledging, so the caller
// may destroy it as soon as ReplaceSurface returns. A surface that was
// never drawn on has nothing to flush and is not touched.
func (r *renderThread) replace(work renderWork) {
	if r.surface != nil && r.drawn {
		if err := callSafely(r.surface.Flush); err != nil {
			r.logger.Warn("flushing replaced surface failed", "surface", r.generation, "error", err)
		}
	}
	r.surface = work.surface
	r.drawn = false
	r.generation++
	r.logger.Debug("surface replaced", "surface", r.generation)
	r.hub.surfaceReplaced(work.replaceSeq)
}

func (r *renderThread) render(frame Frame) error {
	s := r.surface
	if s == nil {
		return nil
	}
	gen := r.generation

	r.perf.mark(MarkerRenderStart, frame.Number, gen)
	r.drawn = true
	if err := callSafely(func() error { return s.Draw(frame) }); err != nil {
		return err
	}
	r.perf.mark(MarkerSwapStart, frame.Number, gen)
	if err := callSafely(s.Present); err != nil {
		return err
	}
	r.perf.mark(MarkerSwapEnd, frame.Number, gen)
	r.perf.mark(MarkerRenderEnd, frame.Number, gen)
	return nil
}
