package framez

import (
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"
)

// Option configures a Controller during creation.
type Option func(*config)

// config holds internal configuration for controller creation.
type config struct {
	clock         clockz.Clock // Time abstraction for deterministic testing
	logger        *slog.Logger
	refreshRate   int
	vsync         VSyncSource
	vsyncInterval time.Duration
	statsInterval time.Duration
	logMarkers    bool
	fpsWindow     time.Duration
	idleFrames    int
}

// Defaults applied by New before options.
const (
	defaultRefreshRate = 1
	defaultIdleFrames  = 3 // idle updates before the pipeline sleeps
)

func defaultConfig() config {
	return config{
		clock:         clockz.RealClock,
		logger:        nopLogger(),
		refreshRate:   defaultRefreshRate,
		vsyncInterval: DefaultVSyncInterval,
		idleFrames:    defaultIdleFrames,
	}
}

// WithClock sets the clock implementation for time operations.
// Default is clockz.RealClock for production use.
// Use clockz.FakeClock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the structured logger. Default discards everything.
// A nil logger restores the default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l == nil {
			l = nopLogger()
		}
		c.logger = l
	}
}

// WithRefreshRate sets the initial number of vsyncs per update/render
// cycle. Default is 1. New rejects values below 1.
func WithRefreshRate(vsyncsPerRender int) Option {
	return func(c *config) {
		c.refreshRate = vsyncsPerRender
	}
}

// WithVSyncSource sets the platform vsync primitive.
// Default is a TimerVSync at the vsync interval.
func WithVSyncSource(src VSyncSource) Option {
	return func(c *config) {
		c.vsync = src
	}
}

// WithVSyncInterval sets the display period used by the timer fallback
// and by frame prediction. Default is DefaultVSyncInterval.
func WithVSyncInterval(d time.Duration) Option {
	return func(c *config) {
		c.vsyncInterval = d
	}
}

// WithStatsInterval enables periodic statistics reports: every d the
// stage statistics are logged, sent to sinks and reset.
// Default is 0, which keeps statistics cumulative.
func WithStatsInterval(d time.Duration) Option {
	return func(c *config) {
		c.statsInterval = d
	}
}

// WithMarkerLogging logs every marker at debug level.
func WithMarkerLogging(enabled bool) Option {
	return func(c *config) {
		c.logMarkers = enabled
	}
}

// WithFPSTracking logs the update rate averaged over window.
// Default is 0 (disabled).
func WithFPSTracking(window time.Duration) Option {
	return func(c *config) {
		c.fpsWindow = window
	}
}

// WithIdleFrames sets how many consecutive idle updates are tolerated
// before the pipeline sleeps. Default is 3; n <= 0 never sleeps.
func WithIdleFrames(n int) Option {
	return func(c *config) {
		c.idleFrames = n
	}
}
