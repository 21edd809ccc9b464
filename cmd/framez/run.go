package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/zoobzio/framez"
	"github.com/zoobzio/framez/ggsurface"
	"github.com/zoobzio/framez/telemetry"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo scene on a headless surface",
		Long: `Run a bouncing-ball scene through the pipeline on a software surface.
The run ends after --frames rendered frames, after --duration, or on SIGINT.
A summary of the pipeline counters and stage statistics is printed at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := Load(configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", configPath, err)
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cmd.SilenceUsage = true
			logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)
			return runPipeline(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	f := runCmd.Flags()
	f.StringP("config", "c", "", "JSON configuration file")
	f.Uint64P("frames", "n", 0, "Stop after this many frames (0: no limit)")
	f.DurationP("duration", "d", 0, "Stop after this long (0: no limit)")
	f.IntP("refresh-rate", "r", 1, "VSyncs per update/render cycle")
	f.Float64("vsync-ms", 0, "VSync interval of the timer source in milliseconds")
	f.String("trace", "", "Write a CBOR marker trace to this file")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Bool("log-markers", false, "Log every marker at debug level")
	f.Bool("debug", false, "Debug logging")

	return runCmd
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("frames") {
		cfg.Frames, _ = f.GetUint64("frames")
	}
	if f.Changed("duration") {
		d, _ := f.GetDuration("duration")
		cfg.DurationMS = int(d / time.Millisecond)
	}
	if f.Changed("refresh-rate") {
		cfg.RefreshRate, _ = f.GetInt("refresh-rate")
	}
	if f.Changed("vsync-ms") {
		cfg.VSyncIntervalMS, _ = f.GetFloat64("vsync-ms")
	}
	if f.Changed("trace") {
		cfg.Trace, _ = f.GetString("trace")
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = f.GetString("metrics-addr")
	}
	if f.Changed("log-markers") {
		cfg.LogMarkers, _ = f.GetBool("log-markers")
	}
	if f.Changed("debug") {
		cfg.Debug, _ = f.GetBool("debug")
	}
}

// runPipeline runs the demo until it stops on its own, ctx is done or the
// configured duration elapses, then prints a summary to out.
func runPipeline(ctx context.Context, cfg *Config, logger *slog.Logger, out io.Writer) error {
	scene := newBouncer(cfg.Width, cfg.Height, cfg.Frames)
	surf := ggsurface.New(cfg.Width, cfg.Height, scene.paint)
	defer surf.Close()

	opts := append(cfg.options(), framez.WithLogger(logger))
	ctrl, err := framez.New(scene, surf, opts...)
	if err != nil {
		return err
	}
	logger = logger.With("pipeline", ctrl.ID())

	var trace *telemetry.TraceWriter
	if cfg.Trace != "" {
		file, err := os.Create(cfg.Trace)
		if err != nil {
			return fmt.Errorf("create trace: %w", err)
		}
		defer func() { _ = file.Close() }()

		trace, err = telemetry.NewTraceWriter(file, ctrl.ID(), time.Now())
		if err != nil {
			return err
		}
		if _, err := ctrl.AddSink(trace); err != nil {
			return err
		}
	}

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.MetricsAddr, ctrl, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	if err := ctrl.Initialize(); err != nil {
		return err
	}
	if err := ctrl.Start(); err != nil {
		return err
	}

	var deadline <-chan time.Time
	if cfg.DurationMS > 0 {
		timer := time.NewTimer(time.Duration(cfg.DurationMS) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ctrl.Done():
	case <-ctx.Done():
		logger.Info("interrupted")
	case <-deadline:
	}

	if err := ctrl.Stop(); err != nil {
		return err
	}

	writeSummary(out, ctrl, surf)

	if trace != nil {
		if err := trace.Err(); err != nil {
			return err
		}
		logger.Info("trace written", "file", cfg.Trace, "records", trace.Records())
	}
	return ctrl.Err()
}

// serveMetrics exposes the pipeline on addr/metrics. The returned function
// shuts the server down.
func serveMetrics(addr string, ctrl *framez.Controller, logger *slog.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	collector := telemetry.NewCollector(reg, ctrl.ID())
	if _, err := ctrl.AddSink(collector); err != nil {
		return nil, err
	}
	telemetry.RegisterPipelineMetrics(reg, ctrl.ID(), ctrl.Metrics)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func writeSummary(w io.Writer, ctrl *framez.Controller, surf *ggsurface.Surface) {
	m := ctrl.Metrics()
	presented, skipped := surf.Stats()

	fmt.Fprintf(w, "Pipeline %s\n", ctrl.ID())
	fmt.Fprintf(w, "  State            : %s\n", m.State)
	fmt.Fprintf(w, "  VSyncs           : %d (invalid %d, dropped %d)\n", m.VSyncs, m.InvalidVSyncs, m.DroppedVSyncs)
	fmt.Fprintf(w, "  Updates          : %d\n", m.Updates)
	fmt.Fprintf(w, "  Renders          : %d\n", m.Renders)
	fmt.Fprintf(w, "  Presented frames : %d (unchanged %d)\n", presented, skipped)
	fmt.Fprintf(w, "  Frame digest     : %016x\n", surf.Digest())
	if err := ctrl.Err(); err != nil {
		fmt.Fprintf(w, "  Error            : %v\n", err)
	}
	writeStageTable(w, ctrl.Stats())
}

func writeStageTable(w io.Writer, stats []framez.StageStats) {
	fmt.Fprintf(w, "\n%-14s %8s %10s %10s %10s %10s\n", "Stage", "Count", "Mean ms", "Min ms", "Max ms", "StdDev ms")
	for _, s := range stats {
		fmt.Fprintf(w, "%-14s %8d %10.3f %10.3f %10.3f %10.3f\n",
			s.Name, s.Count, s.Mean*1e3, s.Min*1e3, s.Max*1e3, s.StdDev*1e3)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
