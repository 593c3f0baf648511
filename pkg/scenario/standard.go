package scenario

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// Weights assigned by CreateStandardScenarios.
const (
	StandardBaseWeight     = 0.5
	StandardUpsideWeight   = 0.25
	StandardDownsideWeight = 0.25
)

// CreateStandardScenarios adds an Upside Case scaling every driver by
// (1 + upsidePct) and a Downside Case scaling by (1 - downsidePct), weights
// each 25% and rewrites the base weight to 50%. Percentages are fractions
// (0.1 for 10%). Drivers may be scalar or []float64 fields; unresolved
// drivers are skipped. Integer drivers are rounded.
func (m *Manager[T]) CreateStandardScenarios(upsidePct, downsidePct float64, drivers []string) ([]Scenario, error) {
	upside := map[string]any{}
	downside := map[string]any{}

	for _, path := range drivers {
		kind, ok := m.reg.Kind(path)
		if !ok {
			slog.Debug("skipping unregistered driver", "path", path)
			continue
		}
		value, err := m.reg.Get(&m.base, path)
		if err != nil {
			slog.Debug("skipping unresolved driver", "path", path, "error", err)
			continue
		}

		switch {
		case kind == fieldpath.KindInt:
			f, _ := fieldpath.ToFloat(value)
			upside[path] = math.Round(f * (1 + upsidePct))
			downside[path] = math.Round(f * (1 - downsidePct))
		case kind == fieldpath.KindFloat64:
			f, _ := fieldpath.ToFloat(value)
			upside[path] = f * (1 + upsidePct)
			downside[path] = f * (1 - downsidePct)
		case kind == fieldpath.KindFloat64Slice:
			values := value.([]float64)
			upside[path] = scaleAll(values, 1+upsidePct)
			downside[path] = scaleAll(values, 1-downsidePct)
		default:
			return nil, fmt.Errorf("driver %q: %s cannot be scaled: %w", path, kind, ErrInvalidConfig)
		}
	}

	up, err := m.CreateScenario(Spec{
		Name:              "Upside Case",
		Type:              TypeUpside,
		Description:       fmt.Sprintf("Key drivers +%g%%", upsidePct*100),
		Assumptions:       upside,
		CreatedBy:         "system",
		ProbabilityWeight: StandardUpsideWeight,
	})
	if err != nil {
		return nil, err
	}
	down, err := m.CreateScenario(Spec{
		Name:              "Downside Case",
		Type:              TypeDownside,
		Description:       fmt.Sprintf("Key drivers -%g%%", downsidePct*100),
		Assumptions:       downside,
		CreatedBy:         "system",
		ProbabilityWeight: StandardDownsideWeight,
	})
	if err != nil {
		return nil, err
	}

	m.scenarios[BaseScenarioID].ProbabilityWeight = StandardBaseWeight
	return []Scenario{up, down}, nil
}

func scaleAll(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * factor
	}
	return out
}
