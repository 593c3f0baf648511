package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dealmodel/dealmodel/internal/archive"
	"github.com/dealmodel/dealmodel/pkg/models/lbo"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/surface"
)

type monteCarloOpts struct {
	distFile   string
	iterations int
	seed       uint64
	outputs    string
	archive    bool
}

func newMonteCarloCmd(g *globalOpts) *cobra.Command {
	var opts monteCarloOpts

	cmd := &cobra.Command{
		Use:     "montecarlo",
		Aliases: []string{"mc"},
		Short:   "Run a Monte Carlo simulation over the base case",
		Long: `Sample inputs from the distributions in --dist and summarize the resulting
outputs. The distribution file maps input paths to distributions:

  exit_multiple:
    type: triangular
    min: 8
    mode: 10
    max: 12
  senior_debt.rate:
    type: normal
    mean: 0.06
    std_dev: 0.01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("iterations") {
				opts.iterations = a.cfg.Engine.Iterations
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Engine.Seed = opts.seed
			}
			return runMonteCarlo(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.distFile, "dist", "", "YAML file of input distributions (required)")
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 0, "Number of iterations (default: engine.iterations)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed for a reproducible run (default: engine.seed, else time-based)")
	cmd.Flags().StringVar(&opts.outputs, "outputs", defaultOutputs, "Comma-separated output paths")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "Archive the result")
	_ = cmd.MarkFlagRequired("dist")
	return cmd
}

func loadDistributions(path string) (map[string]scenario.Distribution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading distributions: %w", err)
	}
	var dists map[string]scenario.Distribution
	if err := yaml.Unmarshal(data, &dists); err != nil {
		return nil, fmt.Errorf("parsing distributions: %w", err)
	}
	if len(dists) == 0 {
		return nil, fmt.Errorf("%s defines no distributions", path)
	}
	return dists, nil
}

func runMonteCarlo(cmd *cobra.Command, a *app, opts monteCarloOpts) error {
	ctx := cmd.Context()

	dists, err := loadDistributions(opts.distFile)
	if err != nil {
		return err
	}
	m, err := a.newManager(ctx, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Running %d iterations over %d variables...\n", opts.iterations, len(dists))
	res, err := m.RunMonteCarlo(ctx, dists, lbo.Calculate, splitList(opts.outputs), opts.iterations)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d of %d iterations failed and were dropped\n", res.Failed, res.Iterations)
	}
	if err := a.render.MonteCarlo(a.out, res); err != nil {
		return err
	}
	if opts.archive {
		return a.archiveRendered(ctx, nil, archive.KindMonteCarlo, func(r surface.Renderer, w io.Writer) error {
			return r.MonteCarlo(w, res)
		})
	}
	return nil
}
