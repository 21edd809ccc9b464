package framez

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// ContextID names a statistic context.
type ContextID uint32

// Built-in statistic contexts.
const (
	ContextUpdate       ContextID = iota + 1 // UPDATE_START → UPDATE_END
	ContextRender                            // RENDER_START → RENDER_END
	ContextSwap                              // SWAP_START → SWAP_END
	ContextEvent                             // PROCESS_EVENT_START → PROCESS_EVENT_END
	ContextVSyncLatency                      // releasing vsync → UPDATE_START

	firstCustomContext
)

// StageStats is a snapshot of one statistic context. Durations are in seconds.
type StageStats struct {
	Context ContextID
	Name    string
	Count   uint64
	Min     float64
	Max     float64
	Total   float64
	Mean    float64
	StdDev  float64
}

// statContext times one stage. Built-in contexts select markers by
// filter; custom contexts only see MarkerStart/MarkerEnd addressed to them.
type statContext struct {
	id         ContextID
	name       string
	filter     MarkerFilter
	stats      *FrameTimeStats
	logging    bool
	lastReport FrameTimeStamp
}

func (c *statContext) process(m Marker) {
	switch {
	case m.Type.Filter() == FilterCustom:
		if m.Context != c.id {
			return
		}
	case c.filter == 0 || !m.IsFilterEnabled(c.filter):
		return
	}

	switch m.Type.Kind() {
	case KindStart:
		c.stats.StartTime(m.Stamp)
	case KindEnd:
		c.stats.EndTime(m.Stamp)
	}
}

func (c *statContext) snapshot() StageStats {
	mean, stddev := c.stats.CalculateMean()
	return StageStats{
		Context: c.id,
		Name:    c.name,
		Count:   c.stats.RunCount(),
		Min:     c.stats.MinTime(),
		Max:     c.stats.MaxTime(),
		Total:   c.stats.TotalTime(),
		Mean:    mean,
		StdDev:  stddev,
	}
}

type sinkEntry struct {
	id   uint64
	sink Sink
}

// perfServer turns markers into statistics and fans them out to sinks.
//
// Markers arrive from all three pipeline threads and the caller; contexts
// are guarded by mu and sinks by sinksMu so a slow sink never blocks
// context registration.
type perfServer struct {
	clock      clockz.Clock
	logger     *slog.Logger
	interval   time.Duration // report period, 0 disables periodic reports
	logMarkers bool

	vsyncTick atomic.Uint64 // last vsync tick, stamped into every marker

	// Called when a sink panics. Set by the controller to fail the pipeline.
	fault func(error)

	mu       sync.Mutex
	contexts []*statContext
	nextID   ContextID

	sinksMu  sync.RWMutex
	sinks    []sinkEntry
	nextSink uint64
}

func newPerfServer(cfg config) *perfServer {
	p := &perfServer{
		clock:      cfg.clock,
		logger:     cfg.logger,
		interval:   cfg.statsInterval,
		logMarkers: cfg.logMarkers,
		nextID:     firstCustomContext,
	}
	p.contexts = []*statContext{
		p.newContext(ContextUpdate, "Update", FilterUpdate),
		p.newContext(ContextRender, "Render", FilterRender),
		p.newContext(ContextSwap, "Swap", FilterSwap),
		p.newContext(ContextEvent, "Event", FilterEventProcess),
		p.newContext(ContextVSyncLatency, "VSyncToUpdate", 0),
	}
	return p
}

func (p *perfServer) newContext(id ContextID, name string, filter MarkerFilter) *statContext {
	return &statContext{
		id:      id,
		name:    name,
		filter:  filter,
		stats:   NewFrameTimeStats(),
		logging: true,
	}
}

// now stamps the current instant with the last vsync tick.
func (p *perfServer) now() FrameTimeStamp {
	return NewFrameTimeStamp(p.vsyncTick.Load(), p.clock.Now())
}

// mark records a pipeline marker at the current instant.
func (p *perfServer) mark(t MarkerType, frame, surface uint64) Marker {
	m := Marker{Type: t, Stamp: p.now(), Frame: frame, Surface: surface}
	p.record(m)
	return m
}

// markVSync records a V_SYNC marker for tick at stamp.
func (p *perfServer) markVSync(tick uint64, stamp FrameTimeStamp) {
	p.vsyncTick.Store(tick)
	p.record(Marker{Type: MarkerVSync, Stamp: stamp})
}

func (p *perfServer) record(m Marker) {
	var reports []StageStats

	p.mu.Lock()
	for _, c := range p.contexts {
		c.process(m)
		if m.Type == MarkerVSync {
			if r, ok := p.tick(c, m.Stamp); ok {
				reports = append(reports, r)
			}
		}
	}
	p.mu.Unlock()

	if p.logMarkers {
		p.logger.Debug("marker",
			"type", m.Type.String(),
			"frame", m.Frame,
			"vsync", m.Stamp.Frame,
			"surface", m.Surface)
	}

	sinks := p.snapshotSinks()
	for _, s := range sinks {
		p.deliver(func() { s.OnMarker(m) })
	}
	for _, r := range reports {
		for _, s := range sinks {
			p.deliver(func() { s.OnStats(r) })
		}
	}
}

// deliver calls a sink with panic recovery. A panicking sink is fatal to
// the pipeline, the same as a panicking Scene.
func (p *perfServer) deliver(call func()) {
	err := callSafely(func() error {
		call()
		return nil
	})
	if err == nil {
		return
	}
	p.logger.Error("sink failed", "error", err)
	if p.fault != nil {
		p.fault(fmt.Errorf("telemetry sink: %w", err))
	}
}

// tick reports and resets a context once per interval. Called under mu.
func (p *perfServer) tick(c *statContext, stamp FrameTimeStamp) (StageStats, bool) {
	if p.interval <= 0 {
		return StageStats{}, false
	}
	if c.lastReport.IsZero() {
		c.lastReport = stamp
		return StageStats{}, false
	}
	if stamp.Sub(c.lastReport) < uint64(p.interval/time.Microsecond) {
		return StageStats{}, false
	}
	c.lastReport = stamp

	if c.stats.RunCount() == 0 {
		return StageStats{}, false
	}
	r := c.snapshot()
	c.stats.Reset()

	if c.logging {
		p.logger.Info("frame stats",
			"context", r.Name,
			"count", r.Count,
			"min_ms", r.Min*1e3,
			"max_ms", r.Max*1e3,
			"mean_ms", r.Mean*1e3,
			"stddev_ms", r.StdDev*1e3,
			"total_ms", r.Total*1e3)
	}
	return r, true
}

// span feeds an explicit start/end pair into a context.
func (p *perfServer) span(id ContextID, start, end FrameTimeStamp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c := p.find(id); c != nil {
		c.stats.StartTime(start)
		c.stats.EndTime(end)
	}
}

// find returns the context for id. Called under mu.
func (p *perfServer) find(id ContextID) *statContext {
	for _, c := range p.contexts {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (p *perfServer) addContext(name string) ContextID {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.contexts = append(p.contexts, p.newContext(id, name, 0))
	return id
}

func (p *perfServer) removeContext(id ContextID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.IndexFunc(p.contexts, func(c *statContext) bool { return c.id == id })
	if i < 0 {
		return ErrUnknownContext
	}
	p.contexts = slices.Delete(p.contexts, i, i+1)
	return nil
}

func (p *perfServer) setLogging(id ContextID, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.find(id)
	if c == nil {
		return ErrUnknownContext
	}
	c.logging = enabled
	return nil
}

// addMarker records a custom START or END for a context.
func (p *perfServer) addMarker(t MarkerType, id ContextID) error {
	if t != MarkerStart && t != MarkerEnd {
		return ErrInvalidMarker
	}
	p.mu.Lock()
	known := p.find(id) != nil
	p.mu.Unlock()
	if !known {
		return ErrUnknownContext
	}
	p.record(Marker{Type: t, Stamp: p.now(), Context: id})
	return nil
}

func (p *perfServer) stats() []StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StageStats, 0, len(p.contexts))
	for _, c := range p.contexts {
		out = append(out, c.snapshot())
	}
	return out
}

func (p *perfServer) stat(id ContextID) (StageStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.find(id)
	if c == nil {
		return StageStats{}, ErrUnknownContext
	}
	return c.snapshot(), nil
}

func (p *perfServer) addSink(s Sink) (Subscription, error) {
	p.sinksMu.Lock()
	defer p.sinksMu.Unlock()
	if len(p.sinks) >= maxSinks {
		return Subscription{}, ErrTooManySinks
	}
	p.nextSink++
	id := p.nextSink
	p.sinks = append(p.sinks, sinkEntry{id: id, sink: s})

	return Subscription{unsubscribe: func() error {
		return p.removeSink(id)
	}}, nil
}

func (p *perfServer) removeSink(id uint64) error {
	p.sinksMu.Lock()
	defer p.sinksMu.Unlock()
	i := slices.IndexFunc(p.sinks, func(e sinkEntry) bool { return e.id == id })
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	p.sinks = slices.Delete(p.sinks, i, i+1)
	return nil
}

func (p *perfServer) snapshotSinks() []Sink {
	p.sinksMu.RLock()
	defer p.sinksMu.RUnlock()
	if len(p.sinks) == 0 {
		return nil
	}
	out := make([]Sink, len(p.sinks))
	for i, e := range p.sinks {
		out[i] = e.sink
	}
	return out
}
