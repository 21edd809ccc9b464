package integration

import (
	"bytes"
	"context"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gg/surface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/framez"
	"github.com/zoobzio/framez/ggsurface"
	"github.com/zoobzio/framez/telemetry"
)

// counterScene draws its update count as a grey level, so every frame
// differs from the previous one.
type counterScene struct {
	n atomic.Uint64
}

func (s *counterScene) Update(context.Context, framez.Frame) (framez.UpdateStatus, error) {
	s.n.Add(1)
	return framez.UpdateStatus{KeepUpdating: true}, nil
}

func (s *counterScene) paint(dst surface.Surface, _ framez.Frame) {
	dst.Clear(color.Gray{Y: uint8(s.n.Load())})
}

func TestFullStack(t *testing.T) {
	scene := &counterScene{}
	first := ggsurface.New(32, 32, scene.paint)
	second := ggsurface.New(32, 32, scene.paint)
	defer second.Close()

	ctrl, err := framez.New(scene, first,
		framez.WithVSyncInterval(time.Millisecond),
		framez.WithStatsInterval(10*time.Millisecond))
	require.NoError(t, err)

	var trace bytes.Buffer
	tw, err := telemetry.NewTraceWriter(&trace, ctrl.ID(), time.Now())
	require.NoError(t, err)
	_, err = ctrl.AddSink(tw)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	_, err = ctrl.AddSink(telemetry.NewCollector(reg, ctrl.ID()))
	require.NoError(t, err)
	telemetry.RegisterPipelineMetrics(reg, ctrl.ID(), ctrl.Metrics)

	require.NoError(t, ctrl.Initialize())
	require.NoError(t, ctrl.Start())

	require.Eventually(t, func() bool { return ctrl.Metrics().Renders >= 10 }, 2*time.Second, time.Millisecond)
	require.NoError(t, ctrl.ReplaceSurface(second))
	require.NoError(t, first.Close(), "old surface may be destroyed once ReplaceSurface returned")

	target := ctrl.Metrics().Renders + 10
	require.Eventually(t, func() bool { return ctrl.Metrics().Renders >= target }, 2*time.Second, time.Millisecond)
	require.NoError(t, ctrl.Stop())
	require.NoError(t, ctrl.Err(), "closed surface was never used after the switch")
	require.NoError(t, tw.Err())

	// Every frame in the trace alternates update then render, and
	// surface 2 is the only one used after its first appearance.
	type frameState struct{ updateEnded, rendered bool }
	frames := map[uint64]*frameState{}
	var lastFrame uint64
	switched := false
	stats, markers := 0, 0
	err = telemetry.ReadTrace(&trace, func(r telemetry.Record) error {
		switch r.Kind {
		case telemetry.KindStats:
			stats++
			return nil
		case telemetry.KindMarker:
			markers++
		default:
			return nil
		}
		switch r.Marker {
		case "UPDATE_START":
			assert.Greater(t, r.Frame, lastFrame, "frames start in order")
			if prev := frames[lastFrame]; lastFrame > 0 && prev != nil {
				assert.True(t, prev.rendered, "update %d started before render %d ended", r.Frame, lastFrame)
			}
			lastFrame = r.Frame
			frames[r.Frame] = &frameState{}
		case "UPDATE_END":
			frames[r.Frame].updateEnded = true
		case "RENDER_START":
			assert.True(t, frames[r.Frame].updateEnded, "render %d before its update ended", r.Frame)
			if r.Surface == 2 {
				switched = true
			}
			if switched {
				assert.Equal(t, uint64(2), r.Surface)
			}
		case "RENDER_END":
			frames[r.Frame].rendered = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Positive(t, stats, "periodic stats reached the trace")

	assert.Equal(t, float64(ctrl.Metrics().Renders), counterValue(t, reg, "framez_renders_total"))
	assert.Equal(t, float64(markers), counterValue(t, reg, "framez_markers_total"), "both sinks saw every marker")
	presented, _ := second.Stats()
	assert.Positive(t, presented)
}

// counterValue sums the named counter over all its series.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		return sum
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestIndependentPipelines(t *testing.T) {
	const n = 4
	limits := []uint64{5, 10, 15, 20}

	var wg sync.WaitGroup
	results := make([]framez.Metrics, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			limit := limits[i]
			scene := framez.SceneFunc(func(_ context.Context, f framez.Frame) (framez.UpdateStatus, error) {
				if f.Number > limit {
					return framez.UpdateStatus{}, framez.ErrStopRequested
				}
				return framez.UpdateStatus{KeepUpdating: true}, nil
			})
			ctrl, err := framez.New(scene, ggsurface.New(8, 8, nil), framez.WithVSyncInterval(time.Millisecond))
			if err != nil {
				errs[i] = err
				return
			}
			if err := ctrl.Initialize(); err != nil {
				errs[i] = err
				return
			}
			if err := ctrl.Start(); err != nil {
				errs[i] = err
				return
			}
			select {
			case <-ctrl.Done():
			case <-time.After(5 * time.Second):
			}
			errs[i] = ctrl.Stop()
			results[i] = ctrl.Metrics()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(limits[i]), results[i].Renders, "pipeline %d", i)
		assert.Equal(t, "stopped", results[i].State)
	}
}

func TestEventLoop(t *testing.T) {
	var events atomic.Int64
	scene := framez.SceneFunc(func(context.Context, framez.Frame) (framez.UpdateStatus, error) {
		return framez.UpdateStatus{NotifyEvents: true}, nil
	})
	ctrl, err := framez.New(scene, nil, framez.WithVSyncInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, ctrl.Initialize())
	require.NoError(t, ctrl.Start())
	defer ctrl.Stop()

	// A typical application loop: drain events when the pipeline asks,
	// and request another frame whenever something changed.
	deadline := time.After(2 * time.Second)
	for events.Load() < 10 {
		select {
		case <-ctrl.Notifications():
			ctrl.ProcessEvents(func() { events.Add(1) })
			ctrl.RequestUpdate()
		case <-deadline:
			t.Fatalf("only %d event rounds", events.Load())
		}
	}

	s, err := ctrl.Stat(framez.ContextEvent)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), s.Count)
}
