package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealmodel/dealmodel/pkg/calcgraph"
	"github.com/dealmodel/dealmodel/pkg/cellref"
	"github.com/dealmodel/dealmodel/pkg/extract/workbook"
	"github.com/dealmodel/dealmodel/pkg/graphquery"
)

func newGraphCmd(g *globalOpts) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Analyze cell dependencies of a model",
		Long: `Analyze the formula dependency graph of a model. The model is read from
a YAML graph definition or directly from an .xlsx workbook.`,
	}
	cmd.PersistentFlags().StringVarP(&file, "file", "f", "", "Graph definition (.yaml) or workbook (.xlsx)")

	cmd.AddCommand(
		newGraphOrderCmd(g, &file),
		newGraphCyclesCmd(g, &file),
		newGraphAffectedCmd(g, &file),
		newGraphTraceCmd(g, &file),
		newGraphPathCmd(g, &file),
		newGraphImportCmd(g),
	)
	return cmd
}

// loadedGraph is a graph plus the sheet that unqualified references on the
// command line resolve against.
type loadedGraph struct {
	*calcgraph.Graph
	sheet string
}

func loadGraph(path string) (*loadedGraph, error) {
	if path == "" {
		return nil, errors.New("--file is required")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		res, err := workbook.Extract(path, workbook.Options{})
		if err != nil {
			return nil, err
		}
		sheet := cellref.DefaultSheet
		if len(res.Sheets) > 0 {
			sheet = res.Sheets[0]
		}
		return &loadedGraph{Graph: res.Graph, sheet: sheet}, nil
	default:
		def, err := calcgraph.LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		g, err := def.Build()
		if err != nil {
			return nil, err
		}
		return &loadedGraph{Graph: g, sheet: firstNonEmpty(def.Sheet, cellref.DefaultSheet)}, nil
	}
}

func (lg *loadedGraph) refs(args []string) ([]cellref.Reference, error) {
	refs := make([]cellref.Reference, 0, len(args))
	for _, a := range args {
		ref, err := cellref.ParseQualified(a, lg.sheet)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// orderError renders the cells involved in a cycle before failing.
func orderError(a *app, lg *loadedGraph, err error) error {
	var cycle *calcgraph.CycleError
	if errors.As(err, &cycle) {
		if rerr := a.render.Cycles(a.out, lg.DetectCycles()); rerr != nil {
			return rerr
		}
	}
	return err
}

func newGraphOrderCmd(g *globalOpts, file *string) *cobra.Command {
	return &cobra.Command{
		Use:   "order [CELL...]",
		Short: "Print the calculation order",
		Long: `Print the order in which cells must be calculated. With cells given, only
the cells that must be recalculated after those cells change are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			lg, err := loadGraph(*file)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				order, err := lg.TopologicalSort()
				if err != nil {
					return orderError(a, lg, err)
				}
				return a.render.Order(a.out, "Calculation order", order)
			}

			refs, err := lg.refs(args)
			if err != nil {
				return err
			}
			order, err := lg.CalculationOrder(refs...)
			if err != nil {
				return orderError(a, lg, err)
			}
			return a.render.Order(a.out, "Recalculate after "+strings.Join(args, ", "), order)
		},
	}
}

func newGraphCyclesCmd(g *globalOpts, file *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Report circular references",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			lg, err := loadGraph(*file)
			if err != nil {
				return err
			}
			cycles := lg.DetectCycles()
			if err := a.render.Cycles(a.out, cycles); err != nil {
				return err
			}
			if len(cycles) > 0 {
				return fmt.Errorf("%d circular reference(s) found", len(cycles))
			}
			return nil
		},
	}
}

func newGraphAffectedCmd(g *globalOpts, file *string) *cobra.Command {
	return &cobra.Command{
		Use:   "affected CELL",
		Short: "List every cell that depends on a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			lg, err := loadGraph(*file)
			if err != nil {
				return err
			}
			refs, err := lg.refs(args)
			if err != nil {
				return err
			}
			return a.render.Order(a.out, "Cells affected by "+refs[0].ID(), lg.AffectedCells(refs[0]))
		},
	}
}

type traceOpts struct {
	cell      string
	depth     int
	direction string
	maxNodes  int
}

func newGraphTraceCmd(g *globalOpts, file *string) *cobra.Command {
	var opts traceOpts

	cmd := &cobra.Command{
		Use:   "trace CELL",
		Short: "Show the precedents or dependents around a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			opts.cell = args[0]
			return runTrace(a, *file, opts)
		},
	}

	cmd.Flags().IntVar(&opts.depth, "depth", 2, "Hops to follow (0 = unlimited)")
	cmd.Flags().StringVar(&opts.direction, "direction", string(graphquery.Precedents), "precedents, dependents or both")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", 0, "Cap on traced cells (default: engine.max_trace_nodes)")
	return cmd
}

func runTrace(a *app, file string, opts traceOpts) error {
	dir := graphquery.Direction(opts.direction)
	switch dir {
	case graphquery.Precedents, graphquery.Dependents, graphquery.Both:
	default:
		return fmt.Errorf("invalid --direction %q", opts.direction)
	}

	lg, err := loadGraph(file)
	if err != nil {
		return err
	}
	refs, err := lg.refs([]string{opts.cell})
	if err != nil {
		return err
	}

	maxNodes := opts.maxNodes
	if maxNodes == 0 {
		maxNodes = a.cfg.Engine.MaxTraceNodes
	}
	result := graphquery.Trace(lg.Graph, refs[0].ID(), opts.depth, dir, maxNodes)
	if result.Truncated {
		fmt.Fprintf(os.Stderr, "Warning: trace truncated at %d cells\n", maxNodes)
	}
	return a.render.Trace(a.out, result)
}

func newGraphPathCmd(g *globalOpts, file *string) *cobra.Command {
	var maxPaths int

	cmd := &cobra.Command{
		Use:   "path FROM TO",
		Short: "Show the shortest dependency paths between two cells",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			lg, err := loadGraph(*file)
			if err != nil {
				return err
			}
			refs, err := lg.refs(args)
			if err != nil {
				return err
			}
			result := graphquery.FindPaths(lg.Graph, refs[0].ID(), refs[1].ID(), maxPaths)
			if len(result.Paths) == 0 {
				fmt.Fprintf(os.Stderr, "No path from %s to %s\n", result.From, result.To)
			}
			for i, p := range result.Paths {
				if err := a.render.Order(a.out, fmt.Sprintf("Path %d", i+1), p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPaths, "max-paths", 3, "Maximum number of paths to show")
	return cmd
}

type importOpts struct {
	workbook string
	out      string
	sheets   []string
}

func newGraphImportCmd(g *globalOpts) *cobra.Command {
	var opts importOpts

	cmd := &cobra.Command{
		Use:   "import WORKBOOK",
		Short: "Convert a workbook into a YAML graph definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			opts.workbook = args[0]
			return runImport(a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output definition file (required)")
	cmd.Flags().StringSliceVar(&opts.sheets, "sheet", nil, "Only extract these sheets")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runImport(a *app, opts importOpts) error {
	fmt.Fprintf(os.Stderr, "Extracting %s...\n", opts.workbook)
	res, err := workbook.Extract(opts.workbook, workbook.Options{Sheets: opts.sheets})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  %d sheets, %d formulas, %d inputs in %s\n",
		len(res.Sheets), res.Formulas, res.Inputs, res.Duration.Round(time.Millisecond))

	sheet := cellref.DefaultSheet
	if len(res.Sheets) > 0 {
		sheet = res.Sheets[0]
	}
	if err := calcgraph.SaveDefinition(opts.out, res.Graph.Definition(sheet)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s\n", opts.out)
	return nil
}
