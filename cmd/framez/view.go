package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/framez"
	"github.com/zoobzio/framez/telemetry"
)

// traceSummary is what view reports about a trace.
type traceSummary struct {
	Pipeline string                       `json:"pipeline"`
	Started  time.Time                    `json:"started"`
	Duration time.Duration                `json:"duration_ns"`
	Frames   uint64                       `json:"frames"`
	Surfaces []uint64                     `json:"surfaces"`
	Markers  map[string]int               `json:"markers"`
	Stages   map[string]framez.StageStats `json:"stages"`
}

// summarizeTrace folds a trace into a traceSummary. Stage statistics are
// the last report seen for each stage.
func summarizeTrace(r io.Reader) (*traceSummary, error) {
	s := &traceSummary{
		Markers: make(map[string]int),
		Stages:  make(map[string]framez.StageStats),
	}
	err := telemetry.ReadTrace(r, func(rec telemetry.Record) error {
		switch rec.Kind {
		case telemetry.KindHeader:
			s.Pipeline = rec.Pipeline
			s.Started = rec.Started
		case telemetry.KindMarker:
			s.Markers[rec.Marker]++
			s.Frames = max(s.Frames, rec.Frame)
			s.Duration = max(s.Duration, time.Duration(rec.Offset)*time.Microsecond)
			if rec.Surface != 0 && !slices.Contains(s.Surfaces, rec.Surface) {
				s.Surfaces = append(s.Surfaces, rec.Surface)
			}
		case telemetry.KindStats:
			s.Stages[rec.Stage] = framez.StageStats{
				Context: framez.ContextID(rec.Context),
				Name:    rec.Stage,
				Count:   rec.Count,
				Min:     rec.Min,
				Max:     rec.Max,
				Mean:    rec.Mean,
				StdDev:  rec.StdDev,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newViewCmd() *cobra.Command {
	viewCmd := &cobra.Command{
		Use:   "view <trace-file>",
		Short: "Summarise a CBOR trace written by run --trace",
		Long:  `Summarise a trace file, or STDIN when the file name is "-".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			cmd.SilenceUsage = true
			s, err := summarizeTrace(in)
			if err != nil {
				return fmt.Errorf("read trace %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			writeTraceSummary(out, s)
			return nil
		},
	}
	viewCmd.Flags().BoolP("json", "j", false, "JSON output")
	return viewCmd
}

func writeTraceSummary(w io.Writer, s *traceSummary) {
	fmt.Fprintf(w, "Trace of pipeline %s\n", s.Pipeline)
	fmt.Fprintf(w, "  Started  : %s\n", s.Started.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "  Duration : %s\n", s.Duration)
	fmt.Fprintf(w, "  Frames   : %d\n", s.Frames)
	fmt.Fprintf(w, "  Surfaces : %d\n", len(s.Surfaces))

	fmt.Fprintf(w, "\nMarker counts:\n")
	names := make([]string, 0, len(s.Markers))
	for name := range s.Markers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %d\n", name, s.Markers[name])
	}

	if len(s.Stages) == 0 {
		return
	}
	stages := make([]framez.StageStats, 0, len(s.Stages))
	for _, st := range s.Stages {
		stages = append(stages, st)
	}
	slices.SortFunc(stages, func(a, b framez.StageStats) int { return int(a.Context) - int(b.Context) })
	writeStageTable(w, stages)
}

func init() {
	rootCmd.AddCommand(newViewCmd())
}
