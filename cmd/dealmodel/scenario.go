package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dealmodel/dealmodel/internal/archive"
	"github.com/dealmodel/dealmodel/internal/store"
	"github.com/dealmodel/dealmodel/pkg/models/lbo"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/surface"
)

const defaultOutputs = "irr,moic,exit_equity"

func newScenarioCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenario",
		Aliases: []string{"scenarios"},
		Short:   "Manage and compare scenarios",
		Long: `Manage named scenarios layered on the deal's base case. Scenarios are
stored per model in the configured database.`,
	}
	cmd.AddCommand(
		newScenarioListCmd(g),
		newScenarioCreateCmd(g),
		newScenarioUpdateCmd(g),
		newScenarioDeleteCmd(g),
		newScenarioCompareCmd(g),
		newScenarioWeightedCmd(g),
		newScenarioStandardCmd(g),
		newScenarioExportCmd(g),
		newScenarioImportCmd(g),
		newScenarioArchivesCmd(g),
	)
	return cmd
}

// session is an app with the model's stored scenarios loaded.
type session struct {
	*app
	store   *store.Service
	manager *scenario.Manager[lbo.Inputs]
}

func openSession(ctx context.Context, cmd *cobra.Command, g *globalOpts) (*session, error) {
	a, err := newApp(cmd, g)
	if err != nil {
		return nil, err
	}
	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	m, err := a.newManager(ctx, st)
	if err != nil {
		a.Close()
		return nil, err
	}
	return &session{app: a, store: st, manager: m}, nil
}

func (s *session) save(ctx context.Context) error {
	return s.saveManager(ctx, s.store, s.manager)
}

// withSession runs fn against the loaded session and closes it afterwards.
func withSession(cmd *cobra.Command, g *globalOpts, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cmd, g)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func newScenarioListCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				return s.render.Scenarios(s.out, s.manager.Scenarios())
			})
		},
	}
}

type createOpts struct {
	name        string
	kind        string
	description string
	parent      string
	weight      float64
	createdBy   string
	set         []string
	inactive    bool
}

func newScenarioCreateCmd(g *globalOpts) *cobra.Command {
	var opts createOpts

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a scenario",
		Example: `  dealmodel scenario create "High rates" --type stress --set senior_debt.rate=0.09
  dealmodel scenario create "Slow growth" --set 'ebitda_growth=[0.03, 0.03, 0.03]' --weight 0.2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.name = args[0]
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				return runScenarioCreate(ctx, s, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.kind, "type", string(scenario.TypeCustom), "Scenario type: upside, downside, stress or custom")
	cmd.Flags().StringVar(&opts.description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&opts.parent, "parent", "", "Inherit assumptions from this scenario id")
	cmd.Flags().Float64Var(&opts.weight, "weight", 0, "Probability weight")
	cmd.Flags().StringVar(&opts.createdBy, "created-by", os.Getenv("USER"), "Author recorded on the scenario")
	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "Assumption override as path=value (repeatable)")
	cmd.Flags().BoolVar(&opts.inactive, "inactive", false, "Create the scenario deactivated")
	return cmd
}

func runScenarioCreate(ctx context.Context, s *session, opts createOpts) error {
	assumptions, err := parseAssignments(opts.set)
	if err != nil {
		return err
	}
	created, err := s.manager.CreateScenario(scenario.Spec{
		Name:              opts.name,
		Type:              scenario.Type(opts.kind),
		Description:       opts.description,
		Assumptions:       assumptions,
		CreatedBy:         opts.createdBy,
		ParentScenarioID:  opts.parent,
		ProbabilityWeight: opts.weight,
	})
	if err != nil {
		return err
	}
	if opts.inactive {
		inactive := false
		if created, err = s.manager.UpdateScenario(created.ID, scenario.Update{IsActive: &inactive}); err != nil {
			return err
		}
	}
	if err := s.save(ctx); err != nil {
		return err
	}
	return s.render.Scenarios(s.out, []scenario.Scenario{created})
}

func newScenarioUpdateCmd(g *globalOpts) *cobra.Command {
	var (
		name, kind, description, parent string
		weight                          float64
		active                          bool
		set                             []string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a scenario",
		Long: `Update the given fields of a scenario. Only flags that are passed change;
--set replaces the scenario's assumptions entirely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u scenario.Update
			flags := cmd.Flags()
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("type") {
				t := scenario.Type(kind)
				u.Type = &t
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("parent") {
				u.ParentScenarioID = &parent
			}
			if flags.Changed("weight") {
				u.ProbabilityWeight = &weight
			}
			if flags.Changed("active") {
				u.IsActive = &active
			}
			if flags.Changed("set") {
				assumptions, err := parseAssignments(set)
				if err != nil {
					return err
				}
				u.Assumptions = assumptions
			}

			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				updated, err := s.manager.UpdateScenario(args[0], u)
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				return s.render.Scenarios(s.out, []scenario.Scenario{updated})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&kind, "type", "", "New type")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&parent, "parent", "", "New parent scenario id (empty to detach)")
	cmd.Flags().Float64Var(&weight, "weight", 0, "New probability weight")
	cmd.Flags().BoolVar(&active, "active", true, "Activate or deactivate (--active=false)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Replacement assumption as path=value (repeatable)")
	return cmd
}

func newScenarioDeleteCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				if err := s.manager.DeleteScenario(args[0]); err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Deleted scenario %s\n", args[0])
				return nil
			})
		},
	}
}

func newScenarioCompareCmd(g *globalOpts) *cobra.Command {
	var (
		outputs   string
		archiveIt bool
	)

	cmd := &cobra.Command{
		Use:   "compare [ID...]",
		Short: "Compare scenarios against the base case",
		Long:  `Calculate each scenario (all of them when none are given) and show the requested outputs with their variance from the base case.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				ids := args
				if len(ids) == 0 {
					for _, sc := range s.manager.Scenarios() {
						ids = append(ids, sc.ID)
					}
				}
				cmp, err := s.manager.Compare(ids, lbo.Calculate, splitList(outputs))
				if err != nil {
					return err
				}
				if err := s.render.Comparison(s.out, cmp); err != nil {
					return err
				}
				if archiveIt {
					return s.archiveRendered(ctx, s.store, archive.KindComparison, func(r surface.Renderer, w io.Writer) error {
						return r.Comparison(w, cmp)
					})
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&outputs, "outputs", defaultOutputs, "Comma-separated output paths")
	cmd.Flags().BoolVar(&archiveIt, "archive", false, "Archive the comparison")
	return cmd
}

func newScenarioWeightedCmd(g *globalOpts) *cobra.Command {
	var outputs string

	cmd := &cobra.Command{
		Use:   "weighted",
		Short: "Probability-weighted expected outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				r, err := s.manager.ProbabilityWeighted(lbo.Calculate, splitList(outputs))
				if err != nil {
					return err
				}
				return s.render.Weighted(s.out, r)
			})
		},
	}

	cmd.Flags().StringVar(&outputs, "outputs", defaultOutputs, "Comma-separated output paths")
	return cmd
}

func newScenarioStandardCmd(g *globalOpts) *cobra.Command {
	var (
		upside, downside float64
		drivers          string
	)

	cmd := &cobra.Command{
		Use:   "standard",
		Short: "Create upside and downside cases",
		Long: `Create an Upside Case and a Downside Case by scaling the driver inputs, and
weight base/upside/downside 50/25/25.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				eng := s.cfg.Engine
				if !cmd.Flags().Changed("upside") {
					upside = eng.UpsidePct
				}
				if !cmd.Flags().Changed("downside") {
					downside = eng.DownsidePct
				}
				driverList := splitList(drivers)
				if len(driverList) == 0 {
					driverList = eng.Drivers
				}
				if len(driverList) == 0 {
					driverList = lbo.DefaultDrivers
				}

				created, err := s.manager.CreateStandardScenarios(upside, downside, driverList)
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				return s.render.Scenarios(s.out, created)
			})
		},
	}

	cmd.Flags().Float64Var(&upside, "upside", 0, "Upside scaling as a fraction (default: engine.upside_pct)")
	cmd.Flags().Float64Var(&downside, "downside", 0, "Downside scaling as a fraction (default: engine.downside_pct)")
	cmd.Flags().StringVar(&drivers, "drivers", "", "Comma-separated driver paths (default: engine.drivers)")
	return cmd
}

func newScenarioExportCmd(g *globalOpts) *cobra.Command {
	var (
		out       string
		archiveIt bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export scenarios as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				records := s.manager.ExportScenarios()
				var w io.Writer = s.out
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("creating %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(records); err != nil {
					return err
				}
				if archiveIt {
					return s.archiveResult(ctx, s.store, archive.KindScenarios, records)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&archiveIt, "archive", false, "Also archive the export")
	return cmd
}

func newScenarioImportCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import scenarios from a JSON export",
		Long:  `Import scenarios from a JSON export. Scenarios with an existing id are replaced; the base case in the file is ignored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var records []map[string]any
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				n, err := s.manager.ImportScenarios(records)
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Imported %d scenario(s)\n", n)
				return nil
			})
		},
	}
}

func newScenarioArchivesCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List archived results for the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				svc, err := s.archiveService(ctx, s.store)
				if err != nil {
					return err
				}
				records, err := svc.List(ctx, s.modelID())
				if err != nil {
					return err
				}
				if s.g.jsonOutput {
					enc := json.NewEncoder(s.out)
					enc.SetIndent("", "  ")
					return enc.Encode(records)
				}
				if len(records) == 0 {
					fmt.Fprintln(s.out, "No archived results.")
					return nil
				}
				for _, r := range records {
					fmt.Fprintf(s.out, "%s  %-12s %8d B  %s\n",
						r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, r.SizeBytes, r.StorageKey)
				}
				return nil
			})
		},
	}
}
