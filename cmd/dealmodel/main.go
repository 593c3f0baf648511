// Package main provides the dealmodel CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dealmodel/dealmodel/internal/telemetry"
)

var version = "dev"

func main() {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalOpts are the persistent flags shared by every command.
type globalOpts struct {
	project     string
	configPath  string
	inputsPath  string
	modelID     string
	verbose     bool
	jsonOutput  bool
	metricsPath string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:   "dealmodel",
		Short: "Scenario, sensitivity and dependency analysis for deal models",
		Long: `dealmodel runs what-if analysis on a financial deal model: named scenarios
layered on a base case, one- and two-way sensitivity tables, parameter sweeps
and Monte Carlo simulation, plus dependency analysis of spreadsheet formulas.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(g.verbose)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.metricsPath == "" {
				return nil
			}
			return telemetry.WriteTextfile(g.metricsPath)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.project, "project", "", "Project directory (default: current directory)")
	pf.StringVar(&g.configPath, "config", "", "Config file (default: .dealmodel/config.yaml in the project or a parent)")
	pf.StringVar(&g.inputsPath, "inputs", "", "Deal inputs YAML file (default: built-in sample deal)")
	pf.StringVar(&g.modelID, "model", "", "Model id used for stored scenarios (default: derived from the deal name)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&g.jsonOutput, "json", false, "Write results as JSON")
	pf.StringVar(&g.metricsPath, "metrics-file", "", "Write Prometheus metrics to this file after the command")

	rootCmd.AddCommand(
		newGraphCmd(g),
		newScenarioCmd(g),
		newSensitivityCmd(g),
		newMonteCarloCmd(g),
	)
	return rootCmd
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
