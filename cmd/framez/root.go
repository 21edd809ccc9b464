package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "framez",
	Short: "Frame pacing pipeline runner",
	Long: `framez drives a VSync → Update → Render pipeline on a software surface.
It can run a demo scene headless, write a CBOR trace of every marker, expose
Prometheus metrics and summarise a recorded trace.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
