package surface

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dealmodel/dealmodel/pkg/graphquery"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/sensitivity"
)

// TerminalRenderer renders results as colored terminal output with
// bordered tables.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

// varianceColor is green for gains and red for losses.
func varianceColor(v float64) string {
	switch {
	case math.IsNaN(v) || v == 0:
		return ""
	case v > 0:
		return colorGreen
	default:
		return colorRed
	}
}

var (
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

// newTable builds a bordered table whose first column is left-aligned and
// the rest right-aligned.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return cellStyle
			}
			return numberStyle
		})
}

func num(v float64) string {
	return FormatNumber(v, 4)
}

func (r *TerminalRenderer) Order(w io.Writer, title string, cells []string) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("%s (%d cells)", title, len(cells))))
	if len(cells) == 0 {
		fmt.Fprintln(w, "Nothing to recalculate.")
		return nil
	}
	for i, id := range cells {
		fmt.Fprintf(w, "  %4d  %s\n", i+1, id)
	}
	fmt.Fprintln(w)
	return nil
}

func (r *TerminalRenderer) Cycles(w io.Writer, cycles [][]string) error {
	if len(cycles) == 0 {
		fmt.Fprintln(w, colored("No circular references.", colorGreen))
		return nil
	}
	fmt.Fprintf(w, "%s\n\n", bold(colored(fmt.Sprintf("%d circular reference(s)", len(cycles)), colorRed)))
	for _, c := range cycles {
		loop := append(append([]string(nil), c...), c[0])
		fmt.Fprintf(w, "  %s %s\n", colored("●", colorRed), strings.Join(loop, " -> "))
	}
	fmt.Fprintln(w)
	return nil
}

func (r *TerminalRenderer) Trace(w io.Writer, result *graphquery.SubgraphResult) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Trace from %s: %d cells, %d edges", result.Root, len(result.Nodes), len(result.Edges))))

	ids := make([]string, 0, len(result.Nodes))
	for id := range result.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := newTable("Cell", "Formula", "Value")
	for _, id := range ids {
		n := result.Nodes[id]
		value := ""
		if n.Calculated || n.IsInput() {
			value = fmt.Sprint(n.Value)
		}
		t.Row(id, n.Formula, value)
	}
	fmt.Fprintln(w, t.String())

	if len(result.External) > 0 {
		fmt.Fprintf(w, "\nExternal inputs: %s\n", dim(strings.Join(result.External, ", ")))
	}
	if result.Truncated {
		fmt.Fprintln(w, colored("Result truncated at the node limit.", colorYellow))
	}
	return nil
}

func (r *TerminalRenderer) Scenarios(w io.Writer, scenarios []scenario.Scenario) error {
	t := newTable("ID", "Name", "Type", "Parent", "Weight", "Active", "Assumptions")
	for _, s := range scenarios {
		active := "yes"
		if !s.IsActive {
			active = "no"
		}
		t.Row(s.ID, s.Name, string(s.Type), s.ParentScenarioID,
			FormatNumber(s.ProbabilityWeight, 2), active, fmt.Sprint(len(s.Assumptions)))
	}
	fmt.Fprintln(w, t.String())
	return nil
}

func (r *TerminalRenderer) Comparison(w io.Writer, c *scenario.Comparison) error {
	fmt.Fprintf(w, "%s\n\n", bold("Scenario comparison"))

	headers := []string{"Scenario"}
	for _, o := range c.Outputs {
		headers = append(headers, o, "Δ%")
	}
	t := newTable(headers...)

	base := []string{"Base"}
	for _, o := range c.Outputs {
		v, ok := c.Base[o]
		if !ok {
			v = math.NaN()
		}
		base = append(base, num(v), "")
	}
	t.Row(base...)

	var failures []string
	for _, s := range c.Scenarios {
		row := []string{s.Name}
		for _, o := range c.Outputs {
			v, ok := s.Metrics[o]
			if !ok {
				row = append(row, "n/a", "")
				continue
			}
			variance := s.Variance[o]
			row = append(row, num(v), colored(FormatPercent(variance), varianceColor(variance)))
		}
		t.Row(row...)
		if s.Error != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", s.Name, s.Error))
		}
	}
	fmt.Fprintln(w, t.String())

	for _, f := range failures {
		fmt.Fprintf(w, "  %s %s\n", colored("!", colorRed), dim(f))
	}
	return nil
}

func (r *TerminalRenderer) Weighted(w io.Writer, res *scenario.WeightedResult) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Probability-weighted outputs (total weight %s)", FormatNumber(res.TotalWeight, 2))))

	outputs := make([]string, 0, len(res.Outputs))
	for o := range res.Outputs {
		outputs = append(outputs, o)
	}
	sort.Strings(outputs)

	t := newTable("Output", "Expected")
	for _, o := range outputs {
		t.Row(o, num(res.Outputs[o]))
	}
	fmt.Fprintln(w, t.String())

	fmt.Fprintln(w, "\nContributions:")
	for _, c := range res.Contributions {
		fmt.Fprintf(w, "  %-24s %s\n", c.Name, FormatNumber(c.Weight, 2))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", colored("Skipped (calculation failed):", colorYellow), strings.Join(res.Skipped, ", "))
	}
	return nil
}

func (r *TerminalRenderer) OneWay(w io.Writer, res *sensitivity.OneWayResult) error {
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("Sensitivity of %s to %s", res.Output, res.Input)))
	fmt.Fprintf(w, "Base: %s = %s, %s = %s\n\n", res.Input, num(res.BaseInputValue), res.Output, num(res.BaseOutput))

	t := newTable(res.Input, res.Output, "Δ%")
	for i, x := range res.InputValues {
		y := res.OutputValues[i]
		variance := math.NaN()
		if !math.IsNaN(y) {
			variance = scenario.Variance(y, res.BaseOutput)
		}
		t.Row(num(x), num(y), colored(FormatPercent(variance), varianceColor(variance)))
	}
	fmt.Fprintln(w, t.String())
	return nil
}

func (r *TerminalRenderer) TwoWay(w io.Writer, res *sensitivity.TwoWayResult) error {
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("%s by %s (rows) and %s (columns)", res.Output, res.Input1, res.Input2)))
	fmt.Fprintf(w, "Base %s = %s\n\n", res.Output, num(res.BaseOutput))

	headers := []string{res.Input1 + " \\ " + res.Input2}
	for _, v := range res.Values2 {
		headers = append(headers, num(v))
	}
	t := newTable(headers...)
	for i, v1 := range res.Values1 {
		row := []string{num(v1)}
		for _, v := range res.Matrix[i] {
			row = append(row, num(v))
		}
		t.Row(row...)
	}
	fmt.Fprintln(w, t.String())
	return nil
}

func (r *TerminalRenderer) Sweep(w io.Writer, res *scenario.SweepResult, outputs []string) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Sweep of %s on scenario %s", res.Input, res.ScenarioID)))

	t := newTable(append([]string{res.Input}, outputs...)...)
	failed := 0
	for _, p := range res.Points {
		row := []string{num(p.Input)}
		for _, o := range outputs {
			v, ok := p.Outputs[o]
			if !ok {
				v = math.NaN()
			}
			row = append(row, num(v))
		}
		t.Row(row...)
		if p.Error != "" {
			failed++
		}
	}
	fmt.Fprintln(w, t.String())
	if failed > 0 {
		fmt.Fprintf(w, "%s\n", colored(fmt.Sprintf("%d point(s) failed", failed), colorYellow))
	}
	return nil
}

func (r *TerminalRenderer) MonteCarlo(w io.Writer, res *scenario.MonteCarloResult) error {
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("Monte Carlo: %d iterations, %d successful, %d failed (seed %d)",
		res.Iterations, res.Successful, res.Failed, res.Seed)))
	fmt.Fprintln(w)

	outputs := make([]string, 0, len(res.Statistics))
	for o := range res.Statistics {
		outputs = append(outputs, o)
	}
	sort.Strings(outputs)

	t := newTable("Output", "Mean", "Std", "P5", "P25", "P50", "P75", "P95", "Min", "Max")
	for _, o := range outputs {
		s := res.Statistics[o]
		t.Row(o, num(s.Mean), num(s.Std), num(s.P5), num(s.P25), num(s.P50), num(s.P75), num(s.P95), num(s.Min), num(s.Max))
	}
	fmt.Fprintln(w, t.String())

	if res.Failed > 0 {
		fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%d iteration(s) dropped after calculation errors", res.Failed)))
	}
	return nil
}
