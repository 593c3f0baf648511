package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dealmodel/dealmodel/internal/telemetry"
)

// DistributionType names a sampling distribution.
type DistributionType string

const (
	Normal     DistributionType = "normal"
	Uniform    DistributionType = "uniform"
	Triangular DistributionType = "triangular"
	// Lognormal takes Mean and StdDev of the underlying normal.
	Lognormal DistributionType = "lognormal"
)

// Distribution configures how one input is sampled. Normal and Lognormal
// use Mean and StdDev; Uniform uses Min and Max; Triangular uses Min, Mode
// and Max.
type Distribution struct {
	Type   DistributionType `json:"type" yaml:"type"`
	Mean   float64          `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdDev float64          `json:"std_dev,omitempty" yaml:"std_dev,omitempty"`
	Min    float64          `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64          `json:"max,omitempty" yaml:"max,omitempty"`
	Mode   float64          `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// sampler builds a gonum distribution drawing from src.
func (d Distribution) sampler(src rand.Source) (distuv.Rander, error) {
	switch d.Type {
	case Normal:
		if d.StdDev < 0 {
			return nil, fmt.Errorf("normal: negative std_dev %g", d.StdDev)
		}
		return distuv.Normal{Mu: d.Mean, Sigma: d.StdDev, Src: src}, nil
	case Uniform:
		if d.Min > d.Max {
			return nil, fmt.Errorf("uniform: min %g > max %g", d.Min, d.Max)
		}
		return distuv.Uniform{Min: d.Min, Max: d.Max, Src: src}, nil
	case Triangular:
		if d.Min >= d.Max || d.Mode < d.Min || d.Mode > d.Max {
			return nil, fmt.Errorf("triangular: need min < max and min <= mode <= max, got %g/%g/%g", d.Min, d.Mode, d.Max)
		}
		return distuv.NewTriangle(d.Min, d.Max, d.Mode, src), nil
	case Lognormal:
		if d.StdDev < 0 {
			return nil, fmt.Errorf("lognormal: negative std_dev %g", d.StdDev)
		}
		return distuv.LogNormal{Mu: d.Mean, Sigma: d.StdDev, Src: src}, nil
	default:
		return nil, fmt.Errorf("unknown distribution type %q", d.Type)
	}
}

// MonteCarloResult summarizes a simulation. Statistics only covers
// iterations that completed.
type MonteCarloResult struct {
	Iterations int                   `json:"iterations"`
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	Seed       uint64                `json:"seed"`
	Statistics map[string]Statistics `json:"statistics"`
}

// RunMonteCarlo draws one value per variable from its distribution in each
// iteration, applies the draws as overrides to a fresh copy of the base
// inputs and evaluates calc. Iterations whose calculation fails are
// dropped and counted in Failed. ctx is checked between iterations.
func (m *Manager[T]) RunMonteCarlo(ctx context.Context, distributions map[string]Distribution, calc CalculateFunc[T], outputs []string, iterations int) (*MonteCarloResult, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("monte carlo: iterations must be at least 1: %w", ErrInvalidConfig)
	}

	seed := m.seed
	if !m.seedSet {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewPCG(seed, seed)

	variables := make([]string, 0, len(distributions))
	for name := range distributions {
		variables = append(variables, name)
	}
	sort.Strings(variables)

	samplers := make([]distuv.Rander, len(variables))
	for i, name := range variables {
		s, err := distributions[name].sampler(src)
		if err != nil {
			return nil, fmt.Errorf("monte carlo variable %q: %v: %w", name, err, ErrInvalidConfig)
		}
		samplers[i] = s
	}

	samples := make(map[string][]float64, len(outputs))
	result := &MonteCarloResult{Iterations: iterations, Seed: seed}

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("monte carlo stopped after %d iterations: %w", i, err)
		}

		draws := make(map[string]any, len(variables))
		for j, name := range variables {
			draws[name] = samplers[j].Rand()
		}

		start := time.Now()
		out, err := m.evaluatePoint(m.base, draws, calc)
		telemetry.CalculationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			result.Failed++
			telemetry.MonteCarloIterations.WithLabelValues("dropped").Inc()
			slog.Debug("monte carlo iteration dropped", "iteration", i, "error", err)
			continue
		}

		result.Successful++
		telemetry.MonteCarloIterations.WithLabelValues("ok").Inc()
		for _, name := range outputs {
			if v, ok := out.Lookup(name); ok {
				samples[name] = append(samples[name], v)
			}
		}
	}

	result.Statistics = make(map[string]Statistics, len(outputs))
	for _, name := range outputs {
		result.Statistics[name] = Summarize(samples[name])
	}
	slog.Debug("monte carlo finished", "iterations", iterations, "successful", result.Successful, "failed", result.Failed)
	return result, nil
}
