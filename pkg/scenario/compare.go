package scenario

import (
	"fmt"
	"log/slog"
)

// ScenarioResult is one row of a comparison. Metrics holds the requested
// outputs the calculation produced; Variance holds the percentage change
// from the base scenario for each metric the base also produced.
type ScenarioResult struct {
	ScenarioID string             `json:"scenario_id"`
	Name       string             `json:"name"`
	Type       Type               `json:"type"`
	Metrics    map[string]float64 `json:"metrics"`
	Variance   map[string]float64 `json:"variance_pct"`
	Error      string             `json:"error,omitempty"`
}

// Comparison is the result of Compare, rows in the requested order.
type Comparison struct {
	Outputs   []string           `json:"outputs"`
	Base      map[string]float64 `json:"base"`
	Scenarios []ScenarioResult   `json:"scenarios"`
}

// Compare calculates (or reuses cached outputs for) each scenario and
// extracts the named outputs by dot-path. A scenario whose calculation
// fails is reported with its error; the comparison still completes.
// Unknown ids fail the call before anything is calculated.
func (m *Manager[T]) Compare(ids []string, calc CalculateFunc[T], outputs []string) (*Comparison, error) {
	for _, id := range ids {
		if _, ok := m.scenarios[id]; !ok {
			return nil, fmt.Errorf("compare %q: %w", id, ErrNotFound)
		}
	}

	result := &Comparison{
		Outputs:   outputs,
		Base:      map[string]float64{},
		Scenarios: make([]ScenarioResult, 0, len(ids)),
	}

	baseOut, err := m.Calculate(BaseScenarioID, calc)
	if err != nil {
		slog.Warn("base scenario calculation failed", "error", err)
	} else {
		for _, name := range outputs {
			if v, ok := baseOut.Lookup(name); ok {
				result.Base[name] = v
			}
		}
	}

	for _, id := range ids {
		s := m.scenarios[id]
		row := ScenarioResult{
			ScenarioID: id,
			Name:       s.Name,
			Type:       s.Type,
			Metrics:    map[string]float64{},
			Variance:   map[string]float64{},
		}

		out, err := m.Calculate(id, calc)
		if err != nil {
			row.Error = err.Error()
			result.Scenarios = append(result.Scenarios, row)
			continue
		}
		for _, name := range outputs {
			v, ok := out.Lookup(name)
			if !ok {
				continue
			}
			row.Metrics[name] = v
			if b, ok := result.Base[name]; ok {
				row.Variance[name] = Variance(v, b)
			}
		}
		result.Scenarios = append(result.Scenarios, row)
	}
	return result, nil
}

// Variance returns the percentage change of value from base, or 0 when
// base is zero.
func Variance(value, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (value - base) / base * 100
}
