package framez

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// VSyncSource is the platform's vertical sync primitive.
//
// Wait blocks until the next vertical blank and returns nil, or returns
// ctx.Err() once ctx is done. ErrVSyncUnavailable makes the notifier
// switch to the timer fallback; any other error counts as a missed vsync.
type VSyncSource interface {
	Wait(ctx context.Context) error
}

// maxVSyncFailures consecutive errors switch the notifier to the timer.
const maxVSyncFailures = 3

// TimerVSync is a VSyncSource driven by a fixed-interval ticker. It is
// the fallback when no display vsync is available (headless, tests) and
// ticks at DefaultVSyncInterval (≈60 Hz) unless configured otherwise.
type TimerVSync struct {
	clock    clockz.Clock
	interval time.Duration

	once  sync.Once
	ticks <-chan time.Time
	stop  func()
}

// NewTimerVSync returns a timer source. The ticker starts on the first Wait.
func NewTimerVSync(clock clockz.Clock, interval time.Duration) *TimerVSync {
	if interval <= 0 {
		interval = DefaultVSyncInterval
	}
	return &TimerVSync{clock: clock, interval: interval}
}

func (t *TimerVSync) init() {
	ticker := t.clock.NewTicker(t.interval)
	t.ticks = ticker.C()
	t.stop = ticker.Stop
}

// Wait blocks until the next tick.
func (t *TimerVSync) Wait(ctx context.Context) error {
	t.once.Do(t.init)
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.ticks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the ticker.
func (t *TimerVSync) Stop() {
	t.once.Do(t.init)
	t.stop()
}

// vsyncNotifier turns vsync events into hub notifications and counts
// absolute vsync ticks.
type vsyncNotifier struct {
	hub     *hub
	perf    *perfServer
	metrics *Metrics
	logger  *slog.Logger

	clock    clockz.Clock
	interval time.Duration
	source   VSyncSource

	thread *thread
	ticks  uint64 // owned by the loop
}

func newVSyncNotifier(cfg config, h *hub, perf *perfServer, metrics *Metrics) *vsyncNotifier {
	return &vsyncNotifier{
		hub:      h,
		perf:     perf,
		metrics:  metrics,
		logger:   cfg.logger,
		clock:    cfg.clock,
		interval: cfg.vsyncInterval,
		source:   cfg.vsync,
		thread:   newThread("vsync", cfg.logger),
	}
}

func (n *vsyncNotifier) run(ctx context.Context) {
	n.hub.threadStarted()

	var timer *TimerVSync
	useTimer := func(reason string) VSyncSource {
		timer = NewTimerVSync(n.clock, n.interval)
		n.logger.Warn("vsync falling back to timer",
			"reason", reason,
			"interval", n.interval)
		return timer
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	src := n.source
	if src == nil {
		src = useTimer("no vsync source")
	}

	failures := 0
	for {
		err := src.Wait(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			atomic.AddInt64(&n.metrics.InvalidVSyncs, 1)
			failures++
			if timer == nil && (errors.Is(err, ErrVSyncUnavailable) || failures >= maxVSyncFailures) {
				src = useTimer(err.Error())
				failures = 0
			}
			continue
		}
		failures = 0

		n.ticks++
		stamp := NewFrameTimeStamp(n.ticks, n.clock.Now())
		if !n.hub.vsyncReady(n.ticks, stamp) {
			return
		}
		n.perf.markVSync(n.ticks, stamp)
	}
}
