// Package sensitivity runs one-way and two-way sweeps of numeric model
// inputs around a pure calculation function. Every evaluation point runs on
// its own copy of the inputs; the caller's inputs are never modified.
package sensitivity

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dealmodel/dealmodel/internal/telemetry"
	"github.com/dealmodel/dealmodel/pkg/clone"
	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// CalculateFunc is a deal model's pure recompute function.
type CalculateFunc[T any] func(T) (fieldpath.Outputs, error)

// OneWayResult holds a single-input sweep. OutputValues[i] is the output
// for InputValues[i], or NaN when that point failed.
type OneWayResult struct {
	Input          string    `json:"input"`
	Output         string    `json:"output"`
	BaseInputValue float64   `json:"base_input_value"`
	BaseOutput     float64   `json:"base_output"`
	InputValues    []float64 `json:"input_values"`
	OutputValues   []float64 `json:"output_values"`
}

// TwoWayResult holds a grid sweep. Matrix[i][j] is the output for
// Values1[i] and Values2[j], or NaN when that point failed.
type TwoWayResult struct {
	Input1     string      `json:"input1"`
	Input2     string      `json:"input2"`
	Output     string      `json:"output"`
	BaseOutput float64     `json:"base_output"`
	Values1    []float64   `json:"values1"`
	Values2    []float64   `json:"values2"`
	Matrix     [][]float64 `json:"matrix"`
}

// Harness sweeps the inputs of one model instance.
type Harness[T any] struct {
	inputs *T
	reg    *fieldpath.Registry[T]
	calc   CalculateFunc[T]
	clone  clone.Func[T]
}

// Option configures a Harness.
type Option[T any] func(*Harness[T])

// WithCloner replaces the default go-deepcopy cloner.
func WithCloner[T any](fn clone.Func[T]) Option[T] {
	return func(h *Harness[T]) {
		h.clone = fn
	}
}

// New returns a harness over inputs. The harness reads inputs at the start
// of every sweep, so later changes by the caller are picked up.
func New[T any](inputs *T, reg *fieldpath.Registry[T], calc CalculateFunc[T], opts ...Option[T]) *Harness[T] {
	h := &Harness[T]{
		inputs: inputs,
		reg:    reg,
		calc:   calc,
		clone:  clone.Deep[T],
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OneWay varies input across ±variation (a fraction, 0.1 for 10%) of its
// current value in steps linearly spaced points and records output at each
// point.
func (h *Harness[T]) OneWay(input, output string, variation float64, steps int) (*OneWayResult, error) {
	base, err := h.validate(input, steps)
	if err != nil {
		return nil, err
	}

	result := &OneWayResult{
		Input:          input,
		Output:         output,
		BaseInputValue: base,
		BaseOutput:     h.evaluate(nil, output),
		InputValues:    Range(base, variation, steps),
	}
	result.OutputValues = make([]float64, len(result.InputValues))
	for i, v := range result.InputValues {
		result.OutputValues[i] = h.evaluate(map[string]float64{input: v}, output)
		record("one_way", result.OutputValues[i])
	}
	return result, nil
}

// TwoWay varies input1 and input2 over a steps × steps grid.
func (h *Harness[T]) TwoWay(input1, input2, output string, variation float64, steps int) (*TwoWayResult, error) {
	base1, err := h.validate(input1, steps)
	if err != nil {
		return nil, err
	}
	base2, err := h.validate(input2, steps)
	if err != nil {
		return nil, err
	}

	result := &TwoWayResult{
		Input1:     input1,
		Input2:     input2,
		Output:     output,
		BaseOutput: h.evaluate(nil, output),
		Values1:    Range(base1, variation, steps),
		Values2:    Range(base2, variation, steps),
	}
	result.Matrix = make([][]float64, len(result.Values1))
	for i, v1 := range result.Values1 {
		row := make([]float64, len(result.Values2))
		for j, v2 := range result.Values2 {
			row[j] = h.evaluate(map[string]float64{input1: v1, input2: v2}, output)
			record("two_way", row[j])
		}
		result.Matrix[i] = row
	}
	return result, nil
}

func (h *Harness[T]) validate(input string, steps int) (float64, error) {
	if steps < 1 {
		return 0, &ValidationError{Input: input, Reason: fmt.Sprintf("steps must be at least 1, got %d", steps)}
	}
	kind, ok := h.reg.Kind(input)
	if !ok {
		return 0, &ValidationError{Input: input, Reason: "not a registered input"}
	}
	if !kind.Numeric() {
		return 0, &ValidationError{Input: input, Reason: fmt.Sprintf("%s is not numeric", kind)}
	}
	v, err := h.reg.Float(h.inputs, input)
	if err != nil {
		return 0, &ValidationError{Input: input, Reason: err.Error()}
	}
	return v, nil
}

// evaluate computes output on a fresh copy of the inputs with overrides
// applied. Any failure yields NaN.
func (h *Harness[T]) evaluate(overrides map[string]float64, output string) float64 {
	v, err := Evaluate(*h.inputs, h.reg, h.clone, h.calc, overrides, output)
	if err != nil {
		slog.Debug("sensitivity point failed", "output", output, "overrides", overrides, "error", err)
		return math.NaN()
	}
	return v
}

// ErrMissingOutput is returned when a calculation does not produce a
// numeric value at the requested output path.
var ErrMissingOutput = errors.New("output not produced")

// Evaluate clones base, applies numeric overrides through reg, runs calc
// and extracts output. Integer fields receive rounded values.
func Evaluate[T any](base T, reg *fieldpath.Registry[T], cl clone.Func[T], calc CalculateFunc[T], overrides map[string]float64, output string) (float64, error) {
	in, err := cl(base)
	if err != nil {
		return 0, err
	}
	for path, v := range overrides {
		if kind, _ := reg.Kind(path); kind == fieldpath.KindInt {
			v = math.Round(v)
		}
		if err := reg.Set(&in, path, v); err != nil {
			return 0, err
		}
	}

	start := time.Now()
	out, err := calc(in)
	telemetry.CalculationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("calculate: %w", err)
	}
	value, ok := out.Lookup(output)
	if !ok {
		return 0, fmt.Errorf("%q: %w", output, ErrMissingOutput)
	}
	return value, nil
}

// Range returns steps values linearly spaced from base*(1-variation) to
// base*(1+variation), endpoints included. A single step yields the lower
// bound, which equals base when variation is zero.
func Range(base, variation float64, steps int) []float64 {
	return Linspace(base*(1-variation), base*(1+variation), steps)
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

func record(kind string, v float64) {
	outcome := "ok"
	if math.IsNaN(v) {
		outcome = "failed"
	}
	telemetry.SensitivityPoints.WithLabelValues(kind, outcome).Inc()
}
