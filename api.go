// Package framez paces a VSync → Update → Render pipeline across three
// long-lived OS threads and keeps them strictly ordered, bounded and
// cancellable.
//
// The pipeline:
//   - A vsync thread blocks on the display's vertical sync (or a timer
//     fallback at DefaultVSyncInterval when none is available)
//   - An update thread advances the Scene by one tick per released vsync
//   - A render thread draws and presents the result on a RenderSurface
//
// The threads never talk to each other. They rendezvous on one
// mutex-protected hub, and update k+1 never starts before render k
// has finished.
//
// Basic Usage:
//
//	scene := framez.SceneFunc(func(ctx context.Context, f framez.Frame) (framez.UpdateStatus, error) {
//		world.Step(f.LastFrameDelta)
//		return framez.UpdateStatus{KeepUpdating: world.Animating()}, nil
//	})
//
//	ctrl, err := framez.New(scene, surface, framez.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := ctrl.Initialize(); err != nil {
//		return err
//	}
//	if err := ctrl.Start(); err != nil {
//		return err
//	}
//	defer ctrl.Stop()
//
// Control:
//
//	ctrl.Pause()                  // freeze update and render, vsync keeps ticking
//	ctrl.RequestUpdateOnce()      // one redraw while paused
//	ctrl.Resume()
//	ctrl.RequestUpdate()          // wake an idle pipeline
//	ctrl.SetRenderRefreshRate(2)  // one cycle every second vsync
//	ctrl.ReplaceSurface(next)     // blocks until the render thread switched
//
// Diagnostics:
//
// Every stage is bracketed by markers (UPDATE_START, RENDER_END, ...).
// Markers feed per-stage FrameTimeStats, readable through Stats even after
// Stop, and any number of registered Sinks:
//
//	sub, err := ctrl.AddSink(mySink)
//	defer sub.Unsubscribe()
//
// Errors:
//
// A collaborator error or panic is fatal. The pipeline stops on the last
// presented frame and Err reports the cause.
package framez

import (
	"context"
	"time"
)

// Frame describes one update/render cycle.
type Frame struct {
	Number         uint64        // cycle number, starting at 1
	VSync          uint64        // vsync tick that released the cycle
	LastFrameDelta time.Duration // time between the vsyncs of this and the previous cycle
	LastSync       time.Time     // time of the releasing vsync
	NextSync       time.Time     // predicted time the frame reaches the display

	released FrameTimeStamp
}

// UpdateStatus is what a Scene reports after one tick.
type UpdateStatus struct {
	// KeepUpdating asks for another cycle on the next vsync. When it is
	// false and no update was requested, the pipeline goes to sleep after
	// a few idle cycles until RequestUpdate is called.
	KeepUpdating bool

	// NotifyEvents wakes the application's event loop through
	// Controller.Notifications.
	NotifyEvents bool
}

// Scene advances application state. Update is called exactly once per
// cycle on the update thread and must not block on I/O.
type Scene interface {
	Update(ctx context.Context, frame Frame) (UpdateStatus, error)
}

// SceneFunc adapts a function to Scene.
type SceneFunc func(ctx context.Context, frame Frame) (UpdateStatus, error)

// Update calls f.
func (f SceneFunc) Update(ctx context.Context, frame Frame) (UpdateStatus, error) {
	return f(ctx, frame)
}

// RenderSurface is the GPU side of the pipeline. Its methods are only
// called from the render thread.
//
// State written by Scene.Update for a frame is visible to Draw for the
// same frame without further synchronisation.
type RenderSurface interface {
	// Draw issues the draw calls for frame.
	Draw(frame Frame) error

	// Present swaps buffers so the drawn frame becomes visible.
	Present() error

	// Flush completes outstanding work and detaches the surface from the
	// render thread. It is called when the surface is replaced.
	Flush() error
}
