// Command daysim runs the agent day timeline: a simulated clock walking a
// population of agents through their daily schedules.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/daysim/internal/config"
	"github.com/talgya/daysim/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "daysim",
		Short: "Agent day timeline simulator",
		Long: `daysim walks a population of agents through one simulated day.

Each agent follows a schedule of activity windows. The clock advances in
15-minute steps; at any minute daysim can tell where every agent is, what
they are doing, and the path they have travelled so far.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newSnapshotCmd(),
		newSeedCmd(),
	)
	return rootCmd
}

// loadConfig reads --config (defaults and env when empty), validates it,
// and installs the configured logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			if jsonOut {
				json.NewEncoder(out).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(out, "daysim version %s\n", version)
			}
		},
	}
}
