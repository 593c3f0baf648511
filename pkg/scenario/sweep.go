package scenario

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dealmodel/dealmodel/internal/telemetry"
	"github.com/dealmodel/dealmodel/pkg/fieldpath"
	"github.com/dealmodel/dealmodel/pkg/sensitivity"
)

// SweepConfig describes a linear sweep of one input. The sweep starts from
// ScenarioID's inputs, or the base scenario when empty.
type SweepConfig struct {
	Input      string   `json:"input" yaml:"input"`
	Min        float64  `json:"min" yaml:"min"`
	Max        float64  `json:"max" yaml:"max"`
	Steps      int      `json:"steps" yaml:"steps"`
	Outputs    []string `json:"outputs" yaml:"outputs"`
	ScenarioID string   `json:"scenario_id,omitempty" yaml:"scenario_id,omitempty"`
}

// SweepPoint is one evaluated input value.
type SweepPoint struct {
	Input   float64            `json:"input"`
	Outputs map[string]float64 `json:"outputs"`
	Error   string             `json:"error,omitempty"`
}

// SweepResult holds every point of a sweep in input order.
type SweepResult struct {
	Input      string       `json:"input"`
	ScenarioID string       `json:"scenario_id"`
	Points     []SweepPoint `json:"points"`
}

// Series returns the (input, output) pairs for one output. Points that
// failed or did not produce the output carry NaN.
func (r *SweepResult) Series(output string) (xs, ys []float64) {
	for _, p := range r.Points {
		xs = append(xs, p.Input)
		v, ok := p.Outputs[output]
		if !ok {
			v = math.NaN()
		}
		ys = append(ys, v)
	}
	return xs, ys
}

// RunSensitivity sweeps cfg.Input linearly over [cfg.Min, cfg.Max] in
// cfg.Steps points. Each point runs on its own copy of the inputs; a failed
// point records its error and the sweep continues.
func (m *Manager[T]) RunSensitivity(cfg SweepConfig, calc CalculateFunc[T]) (*SweepResult, error) {
	if cfg.Steps < 1 {
		return nil, fmt.Errorf("sweep %q: steps must be at least 1: %w", cfg.Input, ErrInvalidConfig)
	}
	kind, ok := m.reg.Kind(cfg.Input)
	if !ok || !kind.Numeric() {
		return nil, fmt.Errorf("sweep %q: not a numeric input: %w", cfg.Input, ErrInvalidConfig)
	}
	if cfg.ScenarioID == "" {
		cfg.ScenarioID = BaseScenarioID
	}

	start, err := m.ScenarioInputs(cfg.ScenarioID)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Input: cfg.Input, ScenarioID: cfg.ScenarioID}
	for _, v := range sensitivity.Linspace(cfg.Min, cfg.Max, cfg.Steps) {
		point := SweepPoint{Input: v, Outputs: map[string]float64{}}
		out, err := m.evaluatePoint(start, map[string]any{cfg.Input: v}, calc)
		if err != nil {
			point.Error = err.Error()
			telemetry.SensitivityPoints.WithLabelValues("sweep", "failed").Inc()
			slog.Debug("sweep point failed", "input", cfg.Input, "value", v, "error", err)
		} else {
			for _, name := range cfg.Outputs {
				if x, ok := out.Lookup(name); ok {
					point.Outputs[name] = x
				}
			}
			telemetry.SensitivityPoints.WithLabelValues("sweep", "ok").Inc()
		}
		result.Points = append(result.Points, point)
	}
	return result, nil
}

// evaluatePoint copies start, applies overrides through the registry and
// runs calc. Integer fields receive rounded values.
func (m *Manager[T]) evaluatePoint(start T, overrides map[string]any, calc CalculateFunc[T]) (fieldpath.Outputs, error) {
	in, err := m.clone(start)
	if err != nil {
		return nil, fmt.Errorf("copying inputs: %w", err)
	}
	for path, v := range overrides {
		if kind, _ := m.reg.Kind(path); kind == fieldpath.KindInt {
			if f, ok := fieldpath.ToFloat(v); ok {
				overrides[path] = math.Round(f)
			}
		}
	}
	if err := m.reg.Apply(&in, overrides); err != nil {
		return nil, err
	}
	return calc(in)
}
