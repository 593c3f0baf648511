package surface

import (
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/dealmodel/dealmodel/pkg/graphquery"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/sensitivity"
)

// JSONRenderer marshals results to indented JSON. Failed points (NaN)
// become null.
type JSONRenderer struct{}

// number is a float64 that encodes NaN and infinities as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func numbers(vs []float64) []number {
	out := make([]number, len(vs))
	for i, v := range vs {
		out[i] = number(v)
	}
	return out
}

func numberMap(m map[string]float64) map[string]number {
	if m == nil {
		return nil
	}
	out := make(map[string]number, len(m))
	for k, v := range m {
		out[k] = number(v)
	}
	return out
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *JSONRenderer) Order(w io.Writer, title string, cells []string) error {
	if cells == nil {
		cells = []string{}
	}
	return encode(w, map[string]any{"title": title, "cells": cells})
}

func (r *JSONRenderer) Cycles(w io.Writer, cycles [][]string) error {
	if cycles == nil {
		cycles = [][]string{}
	}
	return encode(w, map[string]any{"count": len(cycles), "cycles": cycles})
}

func (r *JSONRenderer) Trace(w io.Writer, result *graphquery.SubgraphResult) error {
	return encode(w, result)
}

func (r *JSONRenderer) Scenarios(w io.Writer, scenarios []scenario.Scenario) error {
	if scenarios == nil {
		scenarios = []scenario.Scenario{}
	}
	return encode(w, scenarios)
}

func (r *JSONRenderer) Comparison(w io.Writer, c *scenario.Comparison) error {
	type row struct {
		ScenarioID string            `json:"scenario_id"`
		Name       string            `json:"name"`
		Type       scenario.Type     `json:"type"`
		Metrics    map[string]number `json:"metrics"`
		Variance   map[string]number `json:"variance_pct"`
		Error      string            `json:"error,omitempty"`
	}
	rows := make([]row, len(c.Scenarios))
	for i, s := range c.Scenarios {
		rows[i] = row{
			ScenarioID: s.ScenarioID,
			Name:       s.Name,
			Type:       s.Type,
			Metrics:    numberMap(s.Metrics),
			Variance:   numberMap(s.Variance),
			Error:      s.Error,
		}
	}
	return encode(w, map[string]any{
		"outputs":   c.Outputs,
		"base":      numberMap(c.Base),
		"scenarios": rows,
	})
}

func (r *JSONRenderer) Weighted(w io.Writer, res *scenario.WeightedResult) error {
	return encode(w, map[string]any{
		"outputs":       numberMap(res.Outputs),
		"total_weight":  number(res.TotalWeight),
		"contributions": res.Contributions,
		"skipped":       res.Skipped,
	})
}

func (r *JSONRenderer) OneWay(w io.Writer, res *sensitivity.OneWayResult) error {
	return encode(w, map[string]any{
		"input":            res.Input,
		"output":           res.Output,
		"base_input_value": number(res.BaseInputValue),
		"base_output":      number(res.BaseOutput),
		"input_values":     numbers(res.InputValues),
		"output_values":    numbers(res.OutputValues),
	})
}

func (r *JSONRenderer) TwoWay(w io.Writer, res *sensitivity.TwoWayResult) error {
	matrix := make([][]number, len(res.Matrix))
	for i, row := range res.Matrix {
		matrix[i] = numbers(row)
	}
	return encode(w, map[string]any{
		"input1":      res.Input1,
		"input2":      res.Input2,
		"output":      res.Output,
		"base_output": number(res.BaseOutput),
		"values1":     numbers(res.Values1),
		"values2":     numbers(res.Values2),
		"matrix":      matrix,
	})
}

func (r *JSONRenderer) Sweep(w io.Writer, res *scenario.SweepResult, outputs []string) error {
	type point struct {
		Input   number            `json:"input"`
		Outputs map[string]number `json:"outputs"`
		Error   string            `json:"error,omitempty"`
	}
	points := make([]point, len(res.Points))
	for i, p := range res.Points {
		points[i] = point{Input: number(p.Input), Outputs: numberMap(p.Outputs), Error: p.Error}
	}
	return encode(w, map[string]any{
		"input":       res.Input,
		"scenario_id": res.ScenarioID,
		"outputs":     outputs,
		"points":      points,
	})
}

func (r *JSONRenderer) MonteCarlo(w io.Writer, res *scenario.MonteCarloResult) error {
	return encode(w, res)
}
