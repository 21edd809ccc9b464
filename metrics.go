package framez

import "sync/atomic"

// Metrics provides observability data for a running pipeline.
// Counters are updated with atomic operations by the pipeline threads.
type Metrics struct {
	// VSync Counters
	VSyncs        int64 // Valid vsync notifications received
	InvalidVSyncs int64 // Source errors counted as missed vsyncs
	DroppedVSyncs int64 // Vsyncs that released a cycle while one was still pending

	// Cycle Counters
	Updates int64 // Completed Scene.Update calls
	Renders int64 // Completed render cycles
	Sleeps  int64 // Times the pipeline went idle

	// Surface Counters
	SurfaceReplacements int64 // Acknowledged ReplaceSurface handshakes

	// Configuration
	RefreshRate int64 // Current vsyncs per render

	State string // Hub state at snapshot time
}

// metricsSnapshot copies the counters using atomic loads.
func metricsSnapshot(m *Metrics) Metrics {
	return Metrics{
		VSyncs:              atomic.LoadInt64(&m.VSyncs),
		InvalidVSyncs:       atomic.LoadInt64(&m.InvalidVSyncs),
		DroppedVSyncs:       atomic.LoadInt64(&m.DroppedVSyncs),
		Updates:             atomic.LoadInt64(&m.Updates),
		Renders:             atomic.LoadInt64(&m.Renders),
		Sleeps:              atomic.LoadInt64(&m.Sleeps),
		SurfaceReplacements: atomic.LoadInt64(&m.SurfaceReplacements),
		RefreshRate:         atomic.LoadInt64(&m.RefreshRate),
	}
}
