package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "resilience-sim",
	Short: "Urban-infrastructure cascading-failure simulation engine",
	Long: `resilience-sim models a dependency graph of urban infrastructure
(power, water, telecom, transport, healthcare, emergency services) and
Monte-Carlo simulates how a triggering hazard cascades through it, while
a live telemetry pipeline keeps the graph current between runs.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(loadgenCmd)
}

// Commands are defined in separate files:
// - simulateCmd in simulate.go
// - ingestCmd in ingest.go
// - loadgenCmd in loadgen.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
