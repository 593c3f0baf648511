package scenario

import (
	"math"
	"slices"
)

// Statistics summarizes the samples of one output.
type Statistics struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	P5    float64 `json:"p5"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	P95   float64 `json:"p95"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summarize computes the mean, population standard deviation, linearly
// interpolated percentiles and range of values. It returns the zero value
// for an empty slice.
func Summarize(values []float64) Statistics {
	if len(values) == 0 {
		return Statistics{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}

	return Statistics{
		Count: len(sorted),
		Mean:  mean,
		Std:   math.Sqrt(sq / float64(len(sorted))),
		P5:    Percentile(sorted, 5),
		P25:   Percentile(sorted, 25),
		P50:   Percentile(sorted, 50),
		P75:   Percentile(sorted, 75),
		P95:   Percentile(sorted, 95),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
}

// Percentile returns the p-th percentile (0..100) of sorted values,
// interpolating linearly between the closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
