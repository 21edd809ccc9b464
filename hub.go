package framez

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type hubState int

const (
	stateCreated hubState = iota
	stateInitialised
	stateRunning
	statePaused
	stateStopped
)

func (s hubState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateInitialised:
		return "initialised"
	case stateRunning:
		return "running"
	case statePaused:
		return "paused"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// cyclePhase is where the current frame is in
// WAIT_VSYNC → UPDATE → RENDER → WAIT_VSYNC.
type cyclePhase int

const (
	phaseWaitVSync cyclePhase = iota
	phaseUpdate
	phaseRender
)

type onceState int

const (
	onceNone onceState = iota
	onceArmed
	onceInFlight
)

// pipelineThreads is the number of workers start waits for: vsync, update, render.
const pipelineThreads = 3

// renderWork is what the render thread is released for: either a frame
// or a surface replacement.
type renderWork struct {
	frame      Frame
	replace    bool
	surface    RenderSurface
	replaceSeq uint64
}

// hub is the single source of truth for pipeline state and the only thing
// the worker threads block on.
//
// Every field below mu is guarded by it. Waits use one condition variable
// with explicit predicates; every state change broadcasts, so a stop
// wakes all waiters whatever they wait for.
//
// Lifecycle:
//   - initialise: created → initialised
//   - start: waits for the three workers, then → running
//   - pause/resume: running ⇄ paused
//   - stop or fail: any → stopped (terminal)
type hub struct {
	logger        *slog.Logger
	metrics       *Metrics
	frameTime     *frameTime
	vsyncInterval time.Duration
	idleLimit     int
	onStop        func() // called under mu when the hub stops; must not block

	mu   sync.Mutex
	cond *sync.Cond

	state hubState
	phase cyclePhase
	err   error

	vsyncsPerRender int
	skip            int            // vsyncs counted towards the next cycle
	pending         bool           // a vsync released a cycle not yet taken by update
	pendingTick     uint64         // tick of the releasing vsync
	pendingStamp    FrameTimeStamp // stamp of the releasing vsync

	requested bool // level-triggered update request
	once      onceState
	idle      int // consecutive updates that asked for nothing more
	sleeping  bool

	frameNumber uint64
	current     Frame

	threadsStarted int
	renderAlive    bool

	replacement    RenderSurface
	replacePending bool
	replaceSeq     uint64
	replaceAck     uint64
}

func newHub(cfg config, metrics *Metrics) *hub {
	h := &hub{
		logger:          cfg.logger,
		metrics:         metrics,
		frameTime:       newFrameTime(cfg.clock, cfg.vsyncInterval*time.Duration(cfg.refreshRate)),
		vsyncInterval:   cfg.vsyncInterval,
		idleLimit:       cfg.idleFrames,
		vsyncsPerRender: cfg.refreshRate,
	}
	h.cond = sync.NewCond(&h.mu)
	atomic.StoreInt64(&metrics.RefreshRate, int64(cfg.refreshRate))
	return h
}

// Event-side operations.

func (h *hub) initialise() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateCreated:
		h.state = stateInitialised
		h.logger.Debug("hub initialised")
		return nil
	case stateInitialised:
		return nil
	case stateStopped:
		return ErrStopped
	default:
		return ErrAlreadyStarted
	}
}

// checkStartable reports whether start may be called.
func (h *hub) checkStartable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startableLocked()
}

func (h *hub) startableLocked() error {
	switch h.state {
	case stateInitialised:
		return nil
	case stateCreated:
		return ErrNotInitialised
	case stateStopped:
		return ErrStopped
	default:
		return ErrAlreadyStarted
	}
}

// start waits until every worker has reported in, then starts the cadence.
func (h *hub) start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.startableLocked(); err != nil {
		return err
	}

	for h.threadsStarted < pipelineThreads && h.state != stateStopped {
		h.cond.Wait()
	}
	if h.state == stateStopped {
		return ErrStopped
	}

	h.state = stateRunning
	h.frameTime.resume()
	h.cond.Broadcast()
	h.logger.Debug("hub running")
	return nil
}

// stop moves to the terminal state and wakes every waiter.
// It returns false when the hub was already stopped.
func (h *hub) stop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked()
}

func (h *hub) stopLocked() bool {
	if h.state == stateStopped {
		return false
	}
	h.state = stateStopped
	h.frameTime.suspend()
	if h.onStop != nil {
		h.onStop()
	}
	h.cond.Broadcast()
	h.logger.Debug("hub stopped")
	return true
}

// fail records the first fatal error and stops the hub.
func (h *hub) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
	h.stopLocked()
}

func (h *hub) pause() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateRunning {
		return false
	}
	h.state = statePaused
	h.frameTime.suspend()
	h.cond.Broadcast()
	return true
}

// resume forces one update so the screen catches up straight away.
func (h *hub) resume() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != statePaused {
		return false
	}
	h.state = stateRunning
	if h.once == onceArmed {
		h.once = onceNone
	}
	h.requested = true
	h.sleeping = false
	h.idle = 0
	h.frameTime.resume()
	h.cond.Broadcast()
	return true
}

func (h *hub) updateRequest() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateStopped {
		return
	}
	h.requested = true
	h.wakeLocked()
	h.cond.Broadcast()
}

// updateOnce arms a single cycle while paused. A call while one is armed
// or in flight is dropped. Outside pause it is an ordinary request.
func (h *hub) updateOnce() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateStopped:
		return false
	case statePaused:
		if h.once != onceNone {
			return false
		}
		h.once = onceArmed
	default:
		h.requested = true
		h.wakeLocked()
	}
	h.cond.Broadcast()
	return true
}

// wakeLocked leaves the idle state. Called under mu.
func (h *hub) wakeLocked() {
	h.idle = 0
	if !h.sleeping {
		return
	}
	h.sleeping = false
	if h.state == stateRunning {
		h.frameTime.wakeUp()
	}
	h.logger.Debug("pipeline waking up")
}

func (h *hub) setRenderRefreshRate(n int) error {
	if n < 1 {
		return ErrInvalidRefreshRate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vsyncsPerRender = n
	h.frameTime.setMinimumFrameInterval(h.vsyncInterval * time.Duration(n))
	atomic.StoreInt64(&h.metrics.RefreshRate, int64(n))
	return nil
}

// replaceSurface hands s to the render thread and blocks until it has
// flushed the old surface and adopted s. Before the render thread runs
// the surface is queued and the call returns at once.
// Callers must be serialised.
func (h *hub) replaceSurface(s RenderSurface) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == stateStopped {
		return ErrStopped
	}

	h.replaceSeq++
	seq := h.replaceSeq
	h.replacement = s
	h.replacePending = true
	h.cond.Broadcast()

	if !h.renderAlive {
		return nil
	}

	for h.replaceAck < seq {
		if h.state == stateStopped || !h.renderAlive {
			if h.replacePending {
				h.replacement = nil
				h.replacePending = false
			}
			return ErrStopped
		}
		h.cond.Wait()
	}
	return nil
}

// Worker-side operations.

func (h *hub) threadStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threadsStarted++
	h.cond.Broadcast()
}

// vsyncReady counts a vsync and releases a cycle every vsyncsPerRender
// ticks. It never blocks on pipeline progress. It returns false once the
// hub is stopped.
func (h *hub) vsyncReady(tick uint64, stamp FrameTimeStamp) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateStopped:
		return false
	case stateRunning, statePaused:
	default:
		return true
	}

	atomic.AddInt64(&h.metrics.VSyncs, 1)
	h.frameTime.setSyncTime(tick)

	h.skip++
	if h.skip < h.vsyncsPerRender {
		return true
	}
	h.skip = 0

	if h.pending {
		// The previous release has not been taken yet.
		if h.phase != phaseWaitVSync {
			atomic.AddInt64(&h.metrics.DroppedVSyncs, 1)
		}
		h.pendingTick, h.pendingStamp = tick, stamp
		return true
	}

	h.pending = true
	h.pendingTick, h.pendingStamp = tick, stamp
	h.cond.Broadcast()
	return true
}

// canRunLocked reports whether a released cycle may start. Called under mu.
func (h *hub) canRunLocked() bool {
	switch h.state {
	case stateRunning:
		return !h.sleeping || h.requested
	case statePaused:
		return h.once == onceArmed
	default:
		return false
	}
}

// updateReady blocks until a cycle is released, then starts it.
// It returns false when the hub stops.
func (h *hub) updateReady() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if h.state == stateStopped {
			return Frame{}, false
		}
		if h.phase == phaseWaitVSync && h.pending && h.canRunLocked() {
			break
		}
		h.cond.Wait()
	}

	h.pending = false
	h.requested = false
	h.phase = phaseUpdate
	if h.state == statePaused {
		h.once = onceInFlight
	}
	h.frameNumber++

	p := h.frameTime.predict()
	h.current = Frame{
		Number:         h.frameNumber,
		VSync:          h.pendingTick,
		LastFrameDelta: p.lastFrameDelta,
		LastSync:       p.lastSync,
		NextSync:       p.nextSync,
		released:       h.pendingStamp,
	}
	return h.current, true
}

// updateFinished hands the frame to the render thread.
func (h *hub) updateFinished(status UpdateStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == stateStopped {
		return
	}
	h.phase = phaseRender
	atomic.AddInt64(&h.metrics.Updates, 1)

	if status.KeepUpdating || h.requested {
		h.idle = 0
	} else {
		h.idle++
		if h.idleLimit > 0 && h.idle >= h.idleLimit && h.state == stateRunning && !h.sleeping {
			h.sleeping = true
			h.frameTime.sleep()
			atomic.AddInt64(&h.metrics.Sleeps, 1)
			h.logger.Debug("pipeline sleeping", "idle_frames", h.idle)
		}
	}
	h.cond.Broadcast()
}

// renderReady blocks until there is a surface replacement or a frame to
// render. Replacements are served first. It returns false when the hub stops.
func (h *hub) renderReady() (renderWork, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if h.state == stateStopped {
			return renderWork{}, false
		}
		if h.replacePending {
			w := renderWork{replace: true, surface: h.replacement, replaceSeq: h.replaceSeq}
			h.replacement = nil
			h.replacePending = false
			return w, true
		}
		if h.phase == phaseRender {
			return renderWork{frame: h.current}, true
		}
		h.cond.Wait()
	}
}

// renderFinished closes the cycle.
func (h *hub) renderFinished() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.phase = phaseWaitVSync
	if h.once == onceInFlight {
		h.once = onceNone
	}
	atomic.AddInt64(&h.metrics.Renders, 1)
	h.cond.Broadcast()
}

func (h *hub) surfaceReplaced(seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replaceAck = seq
	atomic.AddInt64(&h.metrics.SurfaceReplacements, 1)
	h.cond.Broadcast()
}

func (h *hub) renderStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renderAlive = true
	h.cond.Broadcast()
}

func (h *hub) renderExited() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renderAlive = false
	h.cond.Broadcast()
}

// Diagnostics.

func (h *hub) stateName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.String()
}

func (h *hub) failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *hub) isSleeping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sleeping
}
