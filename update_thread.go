package framez

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"
)

// updateThread advances the scene once per released cycle.
type updateThread struct {
	hub    *hub
	perf   *perfServer
	scene  Scene
	notify chan<- struct{}
	logger *slog.Logger

	fps *fpsTracker

	thread *thread
}

func newUpdateThread(cfg config, h *hub, perf *perfServer, scene Scene, notify chan<- struct{}) *updateThread {
	u := &updateThread{
		hub:    h,
		perf:   perf,
		scene:  scene,
		notify: notify,
		logger: cfg.logger,
		thread: newThread("update", cfg.logger),
	}
	if cfg.fpsWindow > 0 {
		u.fps = newFPSTracker(cfg.clock, cfg.logger, cfg.fpsWindow)
	}
	return u
}

func (u *updateThread) run(ctx context.Context) {
	u.hub.threadStarted()

	for {
		// Returns false on stop, before the scene is touched.
		frame, ok := u.hub.updateReady()
		if !ok {
			return
		}

		start := u.perf.mark(MarkerUpdateStart, frame.Number, 0)
		if !frame.released.IsZero() {
			u.perf.span(ContextVSyncLatency, frame.released, start.Stamp)
		}

		var status UpdateStatus
		err := callSafely(func() error {
			var err error
			status, err = u.scene.Update(ctx, frame)
			return err
		})
		if err != nil {
			if errors.Is(err, ErrStopRequested) {
				u.logger.Info("scene requested stop", "frame", frame.Number)
				u.hub.stop()
				return
			}
			u.logger.Error("scene update failed", "frame", frame.Number, "error", err)
			u.hub.fail(fmt.Errorf("update frame %d: %w", frame.Number, err))
			return
		}

		u.perf.mark(MarkerUpdateEnd, frame.Number, 0)

		if status.NotifyEvents {
			select {
			case u.notify <- struct{}{}:
			default:
				// A notification is already pending; the event loop will
				// see this one too.
			}
		}
		if u.fps != nil {
			u.fps.track(frame.LastFrameDelta)
		}

		u.hub.updateFinished(status)
	}
}

// fpsTracker logs the update rate once per window.
type fpsTracker struct {
	clock  clockz.Clock
	logger *slog.Logger
	window time.Duration

	since  time.Time
	frames int
	delta  time.Duration
}

func newFPSTracker(clock clockz.Clock, logger *slog.Logger, window time.Duration) *fpsTracker {
	return &fpsTracker{clock: clock, logger: logger, window: window, since: clock.Now()}
}

func (f *fpsTracker) track(delta time.Duration) {
	f.frames++
	f.delta += delta

	now := f.clock.Now()
	elapsed := now.Sub(f.since)
	if elapsed < f.window {
		return
	}
	f.logger.Info("fps",
		"fps", float64(f.frames)/elapsed.Seconds(),
		"frames", f.frames,
		"avg_delta_ms", float64(f.delta.Microseconds())/float64(f.frames)/1e3)
	f.since = now
	f.frames = 0
	f.delta = 0
}
