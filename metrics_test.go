package framez

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsStructure(t *testing.T) {
	ctrl, err := New(newBusyScene(), nil)
	require.NoError(t, err)

	m := ctrl.Metrics()
	assert.Zero(t, m.VSyncs, "VSyncs should start at 0")
	assert.Zero(t, m.InvalidVSyncs, "InvalidVSyncs should start at 0")
	assert.Zero(t, m.DroppedVSyncs, "DroppedVSyncs should start at 0")
	assert.Zero(t, m.Updates, "Updates should start at 0")
	assert.Zero(t, m.Renders, "Renders should start at 0")
	assert.Zero(t, m.Sleeps, "Sleeps should start at 0")
	assert.Zero(t, m.SurfaceReplacements, "SurfaceReplacements should start at 0")
	assert.Equal(t, int64(1), m.RefreshRate, "default refresh rate is every vsync")
	assert.Equal(t, "created", m.State)

	require.NoError(t, ctrl.Initialize())
	assert.Equal(t, "initialised", ctrl.Metrics().State)
}

func TestMetricsTrackRefreshRate(t *testing.T) {
	ctrl, err := New(newBusyScene(), nil, WithRefreshRate(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), ctrl.Metrics().RefreshRate)

	require.NoError(t, ctrl.SetRenderRefreshRate(2))
	assert.Equal(t, int64(2), ctrl.Metrics().RefreshRate)
}

func TestMetricsCountCycles(t *testing.T) {
	vs := newManualVSync()
	ctrl, err := New(newBusyScene(), &recordingSurface{}, WithVSyncSource(vs))
	require.NoError(t, err)
	startPipeline(t, ctrl)

	for i := 1; i <= 10; i++ {
		vs.tick(t)
		waitFor(t, func() bool { return renders(ctrl) == int64(i) }, "cycle completed")
	}

	m := ctrl.Metrics()
	assert.Equal(t, int64(10), m.VSyncs)
	assert.Equal(t, int64(10), m.Updates)
	assert.Equal(t, int64(10), m.Renders)
	assert.Zero(t, m.DroppedVSyncs)
	assert.Zero(t, m.Sleeps, "a busy scene never sleeps")
}

func TestMetricsSnapshotIsConsistent(t *testing.T) {
	var m Metrics
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				atomic.AddInt64(&m.Updates, 1)
				atomic.AddInt64(&m.Renders, 1)
			}
		}
	}()

	deadline := time.Now().Add(20 * time.Millisecond)
	for time.Now().Before(deadline) {
		s := metricsSnapshot(&m)
		// Renders is loaded after Updates and never lags behind the
		// Updates value the writer had already published.
		assert.GreaterOrEqual(t, s.Renders+1, s.Updates)
	}
	close(stop)
	wg.Wait()

	s := metricsSnapshot(&m)
	assert.Equal(t, s.Updates, s.Renders)
	assert.Empty(t, s.State, "snapshot leaves state to the controller")
}
