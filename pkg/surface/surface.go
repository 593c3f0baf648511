// Package surface renders engine results for people and for machines.
// Implementations handle different output targets: terminal and JSON.
package surface

import (
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dealmodel/dealmodel/pkg/graphquery"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/sensitivity"
)

// Renderer writes formatted engine results to a writer.
type Renderer interface {
	Order(w io.Writer, title string, cells []string) error
	Cycles(w io.Writer, cycles [][]string) error
	Trace(w io.Writer, result *graphquery.SubgraphResult) error
	Scenarios(w io.Writer, scenarios []scenario.Scenario) error
	Comparison(w io.Writer, c *scenario.Comparison) error
	Weighted(w io.Writer, r *scenario.WeightedResult) error
	OneWay(w io.Writer, r *sensitivity.OneWayResult) error
	TwoWay(w io.Writer, r *sensitivity.TwoWayResult) error
	Sweep(w io.Writer, r *scenario.SweepResult, outputs []string) error
	MonteCarlo(w io.Writer, r *scenario.MonteCarloResult) error
}

// New returns the JSON renderer when asJSON is set, the terminal renderer
// otherwise.
func New(asJSON bool) Renderer {
	if asJSON {
		return &JSONRenderer{}
	}
	return &TerminalRenderer{}
}

// FormatNumber renders v with a fixed number of decimal places and
// thousands separators. NaN renders as "n/a".
func FormatNumber(v float64, places int32) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := decimal.NewFromFloat(v).StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

// FormatPercent renders a percentage value (12.5 -> "+12.5%").
func FormatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FormatNumber(v, 1)
	}
	s := FormatNumber(v, 1) + "%"
	if v > 0 {
		s = "+" + s
	}
	return s
}
