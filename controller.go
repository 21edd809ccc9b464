package framez

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Controller owns the pipeline: the hub and the vsync, update and render
// threads. It is the only type applications use to drive frame pacing.
//
// Lifecycle:
//   - New builds the hub first, then the three thread objects
//   - Initialize prepares the hub
//   - Start launches the threads and returns once all three are running
//   - Pause/Resume/RequestUpdate/RequestUpdateOnce only schedule work
//   - Stop stops the hub and joins vsync, then update, then render
//
// A stopped Controller cannot be restarted. Stats, Metrics and Err stay
// readable after Stop.
//
// Thread Safety:
// All methods are safe for concurrent use. Stop may also be called from
// Scene, RenderSurface and Sink callbacks; it then joins every thread but
// the one the callback runs on, which exits once the callback returns.
type Controller struct {
	id     string
	logger *slog.Logger

	metrics Metrics

	hub    *hub
	perf   *perfServer
	vsync  *vsyncNotifier
	update *updateThread
	render *renderThread

	// Cancelled when the hub stops, by Stop or by a fatal error.
	ctx    context.Context
	cancel context.CancelFunc

	notify chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool

	// Serialises ReplaceSurface callers. Never taken by pipeline threads.
	replaceMu sync.Mutex
}

// New creates a pipeline for scene drawing on surface. surface may be nil
// for a headless pipeline and provided later with ReplaceSurface.
//
// Returns ErrNilScene without a scene, and ErrInvalidRefreshRate when
// WithRefreshRate is below 1.
func New(scene Scene, surface RenderSurface, opts ...Option) (*Controller, error) {
	if scene == nil {
		return nil, ErrNilScene
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.refreshRate < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRefreshRate, cfg.refreshRate)
	}
	if cfg.vsyncInterval <= 0 {
		cfg.vsyncInterval = DefaultVSyncInterval
	}

	id := uuid.NewString()
	cfg.logger = cfg.logger.With("pipeline", id)

	c := &Controller{
		id:     id,
		logger: cfg.logger,
		notify: make(chan struct{}, 1),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.hub = newHub(cfg, &c.metrics)
	c.hub.onStop = c.cancel
	c.perf = newPerfServer(cfg)
	c.perf.fault = c.hub.fail
	c.vsync = newVSyncNotifier(cfg, c.hub, c.perf, &c.metrics)
	c.update = newUpdateThread(cfg, c.hub, c.perf, scene, c.notify)
	c.render = newRenderThread(cfg, c.hub, c.perf, surface)

	return c, nil
}

// ID returns the pipeline's unique id, also attached to every log record.
func (c *Controller) ID() string {
	return c.id
}

// Initialize prepares the hub. It may be called again until Start.
func (c *Controller) Initialize() error {
	if err := c.hub.initialise(); err != nil {
		return err
	}
	c.logger.Info("pipeline initialised")
	return nil
}

// Start launches the three pipeline threads and returns once they are all
// running.
//
// Returns:
//   - ErrNotInitialised: Initialize was not called
//   - ErrAlreadyStarted: Start was already called
//   - ErrStopped: the pipeline was stopped
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.stopped:
		return ErrStopped
	case c.started:
		return ErrAlreadyStarted
	}
	if err := c.hub.checkStartable(); err != nil {
		return err
	}
	c.started = true

	c.render.thread.start(func() { c.render.run(c.ctx) })
	c.update.thread.start(func() { c.update.run(c.ctx) })
	c.vsync.thread.start(func() { c.vsync.run(c.ctx) })

	if err := c.hub.start(); err != nil {
		return err
	}
	c.logger.Info("pipeline started")
	return nil
}

// Pause freezes update and render after the current cycle. VSync keeps
// ticking so Resume is immediate.
func (c *Controller) Pause() {
	if c.hub.pause() {
		c.perf.mark(MarkerPaused, 0, 0)
		c.logger.Info("pipeline paused")
	}
}

// Resume restarts the cadence and forces one update.
func (c *Controller) Resume() {
	if c.hub.resume() {
		c.perf.mark(MarkerResume, 0, 0)
		c.logger.Info("pipeline resumed")
	}
}

// RequestUpdate asks for at least one more cycle. Requests arriving before
// the next vsync are coalesced into one. Ignored while paused until Resume.
func (c *Controller) RequestUpdate() {
	c.hub.updateRequest()
}

// RequestUpdateOnce runs exactly one cycle while paused and leaves the
// pipeline paused. A call while a previous one has not finished is
// dropped. When not paused it behaves like RequestUpdate.
func (c *Controller) RequestUpdateOnce() {
	c.hub.updateOnce()
}

// SetRenderRefreshRate runs one cycle every n vsyncs, starting at the next
// vsync. n below 1 is rejected with ErrInvalidRefreshRate and the current
// rate is kept.
func (c *Controller) SetRenderRefreshRate(n int) error {
	if err := c.hub.setRenderRefreshRate(n); err != nil {
		return fmt.Errorf("%w: %d", err, n)
	}
	c.logger.Debug("refresh rate changed", "vsyncs_per_render", n)
	return nil
}

// ReplaceSurface switches rendering to s and blocks until the render
// thread has flushed the old surface and adopted s. Once it returns the
// old surface is no longer used and may be destroyed.
//
// Before Start, s is queued and ReplaceSurface returns at once. The
// surface passed to New is then never drawn on, flushed or otherwise used.
//
// Callers must not hold locks that a Scene or RenderSurface callback
// could need while waiting.
//
// Returns ErrNilSurface for a nil s and ErrStopped when the pipeline stops
// before the switch.
func (c *Controller) ReplaceSurface(s RenderSurface) error {
	if s == nil {
		return ErrNilSurface
	}
	c.replaceMu.Lock()
	defer c.replaceMu.Unlock()
	return c.hub.replaceSurface(s)
}

// Stop stops the pipeline and joins the vsync, update and render threads,
// in that order. Once it returns no Scene or RenderSurface call is in
// progress or will be made, and the pipeline threads record no more markers.
//
// Called from a pipeline callback, Stop skips joining the calling thread;
// the guarantee then covers the other two threads, and the calling thread
// finishes the step in progress and exits without being waited for.
//
// Returns ErrAlreadyStopped on a second call.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrAlreadyStopped
	}
	c.stopped = true
	started := c.started
	c.mu.Unlock()

	c.hub.stop()
	c.cancel()

	if started {
		for _, t := range []*thread{c.vsync.thread, c.update.thread, c.render.thread} {
			if t.current() {
				continue
			}
			t.join()
		}
	}
	c.logger.Info("pipeline stopped")
	return nil
}

// Done is closed when the pipeline stops, by Stop or by a fatal error.
// Stop must still be called to join the threads.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the error that stopped the pipeline, or nil.
func (c *Controller) Err() error {
	return c.hub.failure()
}

// Metrics returns a snapshot of the pipeline counters.
func (c *Controller) Metrics() Metrics {
	m := metricsSnapshot(&c.metrics)
	m.State = c.hub.stateName()
	return m
}

// Stats returns a snapshot of every statistic context.
func (c *Controller) Stats() []StageStats {
	return c.perf.stats()
}

// Stat returns a snapshot of one statistic context.
func (c *Controller) Stat(id ContextID) (StageStats, error) {
	return c.perf.stat(id)
}

// AddSink registers a telemetry sink. At most 16 sinks may be registered.
func (c *Controller) AddSink(s Sink) (Subscription, error) {
	return c.perf.addSink(s)
}

// AddContext creates a custom statistic context timed by AddMarker.
func (c *Controller) AddContext(name string) ContextID {
	return c.perf.addContext(name)
}

// RemoveContext deletes a statistic context.
func (c *Controller) RemoveContext(id ContextID) error {
	return c.perf.removeContext(id)
}

// SetContextLogging turns periodic logging of a context on or off.
func (c *Controller) SetContextLogging(id ContextID, enabled bool) error {
	return c.perf.setLogging(id, enabled)
}

// AddMarker records a MarkerStart or MarkerEnd for a custom context.
//
//	id := ctrl.AddContext("layout")
//	ctrl.AddMarker(framez.MarkerStart, id)
//	relayout()
//	ctrl.AddMarker(framez.MarkerEnd, id)
func (c *Controller) AddMarker(t MarkerType, id ContextID) error {
	return c.perf.addMarker(t, id)
}

// Notifications delivers a value when a Scene update asked for the event
// loop to run (UpdateStatus.NotifyEvents). Notifications coalesce.
func (c *Controller) Notifications() <-chan struct{} {
	return c.notify
}

// ProcessEvents runs fn bracketed by PROCESS_EVENT markers, timing it in
// the Event context. It is meant for the application's event loop.
func (c *Controller) ProcessEvents(fn func()) {
	c.perf.mark(MarkerProcessEventsStart, 0, 0)
	defer c.perf.mark(MarkerProcessEventsEnd, 0, 0)
	fn()
}
