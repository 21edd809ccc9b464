package framez

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// manualVSync delivers exactly one vsync per tick call.
type manualVSync struct {
	ticks chan struct{}
}

func newManualVSync() *manualVSync {
	return &manualVSync{ticks: make(chan struct{})}
}

func (m *manualVSync) Wait(ctx context.Context) error {
	select {
	case <-m.ticks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *manualVSync) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ticks <- struct{}{}:
	case <-time.After(waitTimeout):
		t.Fatal("vsync was not taken by the notifier")
	}
}

// countingScene counts updates and reports a fixed status.
type countingScene struct {
	updates      atomic.Int64
	keepUpdating atomic.Bool
	notify       atomic.Bool
	onUpdate     func(Frame) error
}

func (s *countingScene) Update(_ context.Context, f Frame) (UpdateStatus, error) {
	s.updates.Add(1)
	if s.onUpdate != nil {
		if err := s.onUpdate(f); err != nil {
			return UpdateStatus{}, err
		}
	}
	return UpdateStatus{KeepUpdating: s.keepUpdating.Load(), NotifyEvents: s.notify.Load()}, nil
}

func newBusyScene() *countingScene {
	s := &countingScene{}
	s.keepUpdating.Store(true)
	return s
}

// recordingSurface records what the render thread does with it.
type recordingSurface struct {
	mu       sync.Mutex
	frames   []uint64
	presents int
	flushes  int
	drawErr  func(Frame) error
	onCall   func()
}

func (s *recordingSurface) Draw(f Frame) error {
	if s.onCall != nil {
		s.onCall()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawErr != nil {
		if err := s.drawErr(f); err != nil {
			return err
		}
	}
	s.frames = append(s.frames, f.Number)
	return nil
}

func (s *recordingSurface) Present() error {
	if s.onCall != nil {
		s.onCall()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presents++
	return nil
}

func (s *recordingSurface) Flush() error {
	if s.onCall != nil {
		s.onCall()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *recordingSurface) draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSurface) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// recordingSink keeps every marker and stats report it receives.
type recordingSink struct {
	mu      sync.Mutex
	markers []Marker
	reports []StageStats
	onCall  func()
}

func (s *recordingSink) OnMarker(m Marker) {
	if s.onCall != nil {
		s.onCall()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, m)
}

func (s *recordingSink) OnStats(r StageStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

func (s *recordingSink) snapshot() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

func (s *recordingSink) ofType(types ...MarkerType) []Marker {
	var out []Marker
	for _, m := range s.snapshot() {
		for _, t := range types {
			if m.Type == t {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// startPipeline initialises and starts ctrl and stops it at cleanup.
func startPipeline(t *testing.T, ctrl *Controller) {
	t.Helper()
	require.NoError(t, ctrl.Initialize())
	require.NoError(t, ctrl.Start())
	t.Cleanup(func() { _ = ctrl.Stop() })
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, waitTimeout, time.Millisecond, msg)
}

func renders(c *Controller) int64 { return c.Metrics().Renders }
func vsyncs(c *Controller) int64  { return c.Metrics().VSyncs }
