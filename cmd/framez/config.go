package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zoobzio/framez"
)

// Config holds the run command settings. Fields may be loaded from a JSON
// file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Surface
	Width  int `json:"width"`
	Height int `json:"height"`

	// Pacing
	RefreshRate     int     `json:"refresh_rate"`
	VSyncIntervalMS float64 `json:"vsync_interval_ms"`
	IdleFrames      int     `json:"idle_frames"`

	// Run length; zero runs until interrupted.
	Frames     uint64 `json:"frames"`
	DurationMS int    `json:"duration_ms"`

	// Telemetry
	StatsIntervalMS int    `json:"stats_interval_ms"`
	FPSWindowMS     int    `json:"fps_window_ms"`
	LogMarkers      bool   `json:"log_markers"`
	Trace           string `json:"trace"`
	MetricsAddr     string `json:"metrics_addr"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Width:           320,
		Height:          240,
		RefreshRate:     1,
		VSyncIntervalMS: float64(framez.DefaultVSyncInterval) / float64(time.Millisecond),
		IdleFrames:      3,
		StatsIntervalMS: 1000,
	}
}

// Validate clamps sizes and intervals to safe ranges. A refresh rate below
// one is an error rather than clamped.
func (c *Config) Validate() error {
	if c.RefreshRate < 1 {
		return fmt.Errorf("refresh_rate %d: %w", c.RefreshRate, framez.ErrInvalidRefreshRate)
	}
	if c.Width <= 0 {
		c.Width = 320
	}
	if c.Height <= 0 {
		c.Height = 240
	}
	if c.VSyncIntervalMS <= 0 {
		c.VSyncIntervalMS = float64(framez.DefaultVSyncInterval) / float64(time.Millisecond)
	}
	if c.StatsIntervalMS < 0 {
		c.StatsIntervalMS = 0
	}
	if c.FPSWindowMS < 0 {
		c.FPSWindowMS = 0
	}
	if c.DurationMS < 0 {
		c.DurationMS = 0
	}
	return nil
}

// Load reads configuration from the JSON file at path. A missing file
// yields DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) vsyncInterval() time.Duration {
	return time.Duration(c.VSyncIntervalMS * float64(time.Millisecond))
}

// options translates the configuration into pipeline options.
func (c *Config) options() []framez.Option {
	return []framez.Option{
		framez.WithRefreshRate(c.RefreshRate),
		framez.WithVSyncInterval(c.vsyncInterval()),
		framez.WithIdleFrames(c.IdleFrames),
		framez.WithStatsInterval(time.Duration(c.StatsIntervalMS) * time.Millisecond),
		framez.WithFPSTracking(time.Duration(c.FPSWindowMS) * time.Millisecond),
		framez.WithMarkerLogging(c.LogMarkers),
	}
}
