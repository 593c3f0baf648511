// Package telemetry holds the Prometheus collectors shared by the engine
// packages. Collectors are registered with the default registry on init;
// batch commands flush them with WriteTextfile.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RecalculationPasses counts ordering requests by outcome ("ok", "cycle").
	RecalculationPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealmodel_recalculation_passes_total",
			Help: "Calculation order requests by outcome",
		},
		[]string{"outcome"},
	)

	// CellsEvaluated counts cells handed to an evaluator during recalculation.
	CellsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealmodel_cells_evaluated_total",
			Help: "Cells evaluated during recalculation by outcome",
		},
		[]string{"outcome"},
	)

	// SensitivityPoints counts sensitivity evaluation points by kind
	// ("one_way", "two_way", "sweep") and outcome ("ok", "failed").
	SensitivityPoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealmodel_sensitivity_points_total",
			Help: "Sensitivity evaluation points by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// MonteCarloIterations counts Monte Carlo iterations by outcome
	// ("ok", "dropped").
	MonteCarloIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealmodel_monte_carlo_iterations_total",
			Help: "Monte Carlo iterations by outcome",
		},
		[]string{"outcome"},
	)

	// ScenarioCache counts scenario result cache lookups ("hit", "miss").
	ScenarioCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealmodel_scenario_cache_lookups_total",
			Help: "Scenario result cache lookups by result",
		},
		[]string{"result"},
	)

	// CalculationSeconds observes the wall time of one calculate callback.
	CalculationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dealmodel_calculation_seconds",
			Help:    "Duration of a single model calculation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(RecalculationPasses)
	prometheus.MustRegister(CellsEvaluated)
	prometheus.MustRegister(SensitivityPoints)
	prometheus.MustRegister(MonteCarloIterations)
	prometheus.MustRegister(ScenarioCache)
	prometheus.MustRegister(CalculationSeconds)
}

// WriteTextfile writes the default registry in the text exposition format,
// suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
