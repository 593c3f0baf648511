package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/dealmodel/dealmodel/internal/archive"
	"github.com/dealmodel/dealmodel/internal/store"
	"github.com/dealmodel/dealmodel/pkg/models/lbo"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/sensitivity"
	"github.com/dealmodel/dealmodel/pkg/surface"
)

func newSensitivityCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sensitivity",
		Aliases: []string{"sens"},
		Short:   "Sensitivity tables and parameter sweeps",
	}
	cmd.AddCommand(
		newOneWayCmd(g),
		newTwoWayCmd(g),
		newSweepCmd(g),
	)
	return cmd
}

// sensOpts are the flags shared by the sensitivity commands.
type sensOpts struct {
	output     string
	variation  float64
	steps      int
	scenarioID string
	archive    bool
}

func (o *sensOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.output, "output", "irr", "Output path to measure")
	cmd.Flags().Float64Var(&o.variation, "variation", 0, "Relative variation as a fraction (default: engine.variation)")
	cmd.Flags().IntVar(&o.steps, "steps", 0, "Points per input (default: engine.steps)")
	cmd.Flags().StringVar(&o.scenarioID, "scenario", "", "Start from this scenario's inputs instead of the base case")
	cmd.Flags().BoolVar(&o.archive, "archive", false, "Archive the result")
}

// resolve fills unset flags from the engine config.
func (o *sensOpts) resolve(cmd *cobra.Command, a *app) {
	if !cmd.Flags().Changed("variation") {
		o.variation = a.cfg.Engine.Variation
	}
	if !cmd.Flags().Changed("steps") {
		o.steps = a.cfg.Engine.Steps
	}
}

// sensRun is the state a sensitivity command works against. The store is
// only opened when a scenario is named or the result is archived.
type sensRun struct {
	*app
	store   *store.Service
	manager *scenario.Manager[lbo.Inputs]
}

func openSensRun(ctx context.Context, cmd *cobra.Command, g *globalOpts, needStore bool) (*sensRun, error) {
	a, err := newApp(cmd, g)
	if err != nil {
		return nil, err
	}
	run := &sensRun{app: a}
	if needStore {
		if run.store, err = a.openStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if run.manager, err = a.newManager(ctx, run.store); err != nil {
		a.Close()
		return nil, err
	}
	return run, nil
}

// harness builds a sensitivity harness over the chosen starting inputs.
func (r *sensRun) harness(scenarioID string) (*sensitivity.Harness[lbo.Inputs], error) {
	id := firstNonEmpty(scenarioID, scenario.BaseScenarioID)
	inputs, err := r.manager.ScenarioInputs(id)
	if err != nil {
		return nil, err
	}
	return sensitivity.New(&inputs, lbo.Registry(), lbo.Calculate), nil
}

func newOneWayCmd(g *globalOpts) *cobra.Command {
	var opts sensOpts

	cmd := &cobra.Command{
		Use:   "oneway INPUT",
		Short: "Vary one input around its base value",
		Example: `  dealmodel sensitivity oneway exit_multiple --output irr --variation 0.2 --steps 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run, err := openSensRun(ctx, cmd, g, opts.scenarioID != "" || opts.archive)
			if err != nil {
				return err
			}
			defer run.Close()
			opts.resolve(cmd, run.app)

			h, err := run.harness(opts.scenarioID)
			if err != nil {
				return err
			}
			res, err := h.OneWay(args[0], opts.output, opts.variation, opts.steps)
			if err != nil {
				return err
			}
			if err := run.render.OneWay(run.out, res); err != nil {
				return err
			}
			if opts.archive {
				return run.archiveRendered(ctx, run.store, archive.KindSensitivity, func(r surface.Renderer, w io.Writer) error {
					return r.OneWay(w, res)
				})
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func newTwoWayCmd(g *globalOpts) *cobra.Command {
	var opts sensOpts

	cmd := &cobra.Command{
		Use:   "twoway INPUT1 INPUT2",
		Short: "Vary two inputs over a grid",
		Example: `  dealmodel sensitivity twoway exit_multiple senior_debt.rate --output moic`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run, err := openSensRun(ctx, cmd, g, opts.scenarioID != "" || opts.archive)
			if err != nil {
				return err
			}
			defer run.Close()
			opts.resolve(cmd, run.app)

			h, err := run.harness(opts.scenarioID)
			if err != nil {
				return err
			}
			res, err := h.TwoWay(args[0], args[1], opts.output, opts.variation, opts.steps)
			if err != nil {
				return err
			}
			if err := run.render.TwoWay(run.out, res); err != nil {
				return err
			}
			if opts.archive {
				return run.archiveRendered(ctx, run.store, archive.KindSensitivity, func(r surface.Renderer, w io.Writer) error {
					return r.TwoWay(w, res)
				})
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func newSweepCmd(g *globalOpts) *cobra.Command {
	var (
		cfg       scenario.SweepConfig
		outputs   string
		archiveIt bool
	)

	cmd := &cobra.Command{
		Use:   "sweep INPUT",
		Short: "Sweep one input linearly between two values",
		Example: `  dealmodel sensitivity sweep exit_multiple --min 8 --max 12 --steps 9 --outputs irr,moic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run, err := openSensRun(ctx, cmd, g, cfg.ScenarioID != "" || archiveIt)
			if err != nil {
				return err
			}
			defer run.Close()

			cfg.Input = args[0]
			cfg.Outputs = splitList(outputs)
			if !cmd.Flags().Changed("steps") {
				cfg.Steps = run.cfg.Engine.Steps
			}
			res, err := run.manager.RunSensitivity(cfg, lbo.Calculate)
			if err != nil {
				return err
			}
			if err := run.render.Sweep(run.out, res, cfg.Outputs); err != nil {
				return err
			}
			if archiveIt {
				return run.archiveRendered(ctx, run.store, archive.KindSensitivity, func(r surface.Renderer, w io.Writer) error {
					return r.Sweep(w, res, cfg.Outputs)
				})
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&cfg.Min, "min", 0, "First input value")
	cmd.Flags().Float64Var(&cfg.Max, "max", 0, "Last input value")
	cmd.Flags().IntVar(&cfg.Steps, "steps", 0, "Number of points (default: engine.steps)")
	cmd.Flags().StringVar(&outputs, "outputs", defaultOutputs, "Comma-separated output paths")
	cmd.Flags().StringVar(&cfg.ScenarioID, "scenario", "", "Start from this scenario's inputs instead of the base case")
	cmd.Flags().BoolVar(&archiveIt, "archive", false, "Archive the result")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")
	return cmd
}
