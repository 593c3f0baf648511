package scenario

import (
	"fmt"
	"log/slog"
)

// WeightedContribution records one scenario's share of a weighted result.
type WeightedContribution struct {
	ScenarioID string  `json:"scenario_id"`
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
}

// WeightedResult is the probability-weighted expectation of each output.
type WeightedResult struct {
	Outputs       map[string]float64     `json:"outputs"`
	TotalWeight   float64                `json:"total_weight"`
	Contributions []WeightedContribution `json:"contributions"`
	Skipped       []string               `json:"skipped,omitempty"`
}

// ProbabilityWeighted sums weight × value over active scenarios with a
// positive weight and divides by the total weight. Scenarios whose
// calculation fails are listed in Skipped and excluded from the weights.
// An output missing from a scenario's results is normalized only over the
// scenarios that produced it.
func (m *Manager[T]) ProbabilityWeighted(calc CalculateFunc[T], outputs []string) (*WeightedResult, error) {
	result := &WeightedResult{Outputs: map[string]float64{}}
	sums := make(map[string]float64, len(outputs))
	weights := make(map[string]float64, len(outputs))

	for _, id := range m.order {
		s := m.scenarios[id]
		if !s.IsActive || s.ProbabilityWeight <= 0 {
			continue
		}
		out, err := m.Calculate(id, calc)
		if err != nil {
			slog.Warn("excluding scenario from weighted output", "scenario", id, "error", err)
			result.Skipped = append(result.Skipped, id)
			continue
		}

		result.TotalWeight += s.ProbabilityWeight
		result.Contributions = append(result.Contributions, WeightedContribution{
			ScenarioID: id,
			Name:       s.Name,
			Weight:     s.ProbabilityWeight,
		})
		for _, name := range outputs {
			if v, ok := out.Lookup(name); ok {
				sums[name] += s.ProbabilityWeight * v
				weights[name] += s.ProbabilityWeight
			}
		}
	}

	if result.TotalWeight == 0 {
		return result, fmt.Errorf("probability weighted output: no active scenario with positive weight: %w", ErrInvalidConfig)
	}
	for name, w := range weights {
		result.Outputs[name] = sums[name] / w
	}
	return result, nil
}
