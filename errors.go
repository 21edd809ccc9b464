package framez

import "errors"

// Lifecycle Errors
//
// These errors are returned based on the controller's lifecycle state.

// ErrNotInitialised is returned by Start when Initialize has not been called.
var ErrNotInitialised = errors.New("pipeline not initialised")

// ErrAlreadyStarted is returned when Start (or Initialize) is called on a
// pipeline whose worker threads are already running.
var ErrAlreadyStarted = errors.New("pipeline already started")

// ErrStopped is returned by operations that need a live pipeline once it
// has been stopped, either through Stop or by a fatal error.
// A stopped pipeline cannot be restarted.
var ErrStopped = errors.New("pipeline stopped")

// ErrAlreadyStopped is returned when Stop is called more than once.
var ErrAlreadyStopped = errors.New("pipeline already stopped")

// Configuration Errors
//
// These errors are returned when a value is rejected before it is stored.

// ErrInvalidRefreshRate is returned when the number of vsyncs per render
// is zero or negative. The previous rate stays in effect.
var ErrInvalidRefreshRate = errors.New("refresh rate must be a positive number of vsyncs")

// ErrNilScene is returned by New when no scene collaborator is given.
var ErrNilScene = errors.New("scene is nil")

// ErrNilSurface is returned by ReplaceSurface when the new surface is nil.
var ErrNilSurface = errors.New("surface is nil")

// Telemetry Errors
//
// These errors are returned when managing sinks and statistic contexts.

// ErrAlreadyUnsubscribed is returned when Unsubscribe is called on a
// subscription that was already removed.
var ErrAlreadyUnsubscribed = errors.New("sink already unsubscribed")

// ErrSubscriptionNotFound is returned when a subscription's sink is no
// longer registered. This can occur in rare race conditions.
var ErrSubscriptionNotFound = errors.New("sink not found")

// ErrTooManySinks is returned when registering a sink would exceed maxSinks.
var ErrTooManySinks = errors.New("sink limit exceeded")

// ErrUnknownContext is returned when a statistic context id is not registered.
var ErrUnknownContext = errors.New("unknown statistic context")

// ErrInvalidMarker is returned by AddMarker for marker types that are
// reserved for the pipeline's own threads.
var ErrInvalidMarker = errors.New("marker type cannot be added by callers")

// Pipeline Errors
//
// These errors describe fatal conditions. The pipeline stops when a worker
// reports one, and Err returns it.

// ErrSurfaceLost is returned by RenderSurface implementations when the
// underlying surface or GPU context is gone.
var ErrSurfaceLost = errors.New("render surface lost")

// ErrCollaboratorPanicked wraps a panic recovered from a Scene or
// RenderSurface call.
var ErrCollaboratorPanicked = errors.New("collaborator panicked")

// ErrStopRequested may be returned by Scene.Update to stop the pipeline
// from inside the update thread. It is not reported by Err.
var ErrStopRequested = errors.New("stop requested by scene")

// VSync Errors

// ErrVSyncUnavailable is returned by a VSyncSource when the platform
// primitive cannot be used. The notifier switches to the timer fallback.
var ErrVSyncUnavailable = errors.New("vsync source unavailable")
