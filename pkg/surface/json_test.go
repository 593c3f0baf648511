package surface_test

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/sensitivity"
	"github.com/dealmodel/dealmodel/pkg/surface"
)

func TestJSONTwoWayEncodesNaNAsNull(t *testing.T) {
	res := &sensitivity.TwoWayResult{
		Input1:     "exit_multiple",
		Input2:     "senior_debt.rate",
		Output:     "irr",
		BaseOutput: 0.2,
		Values1:    []float64{9, 11},
		Values2:    []float64{0.05, 0.07},
		Matrix:     [][]float64{{0.18, math.NaN()}, {0.22, 0.21}},
	}

	var buf bytes.Buffer
	if err := surface.New(true).TwoWay(&buf, res); err != nil {
		t.Fatalf("TwoWay returned error: %v", err)
	}

	var decoded struct {
		Output string       `json:"output"`
		Matrix [][]*float64 `json:"matrix"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Output != "irr" {
		t.Errorf("output = %q", decoded.Output)
	}
	if decoded.Matrix[0][1] != nil {
		t.Errorf("failed point should be null, got %v", *decoded.Matrix[0][1])
	}
	if decoded.Matrix[1][0] == nil || *decoded.Matrix[1][0] != 0.22 {
		t.Errorf("matrix[1][0] = %v", decoded.Matrix[1][0])
	}
}

func TestJSONComparison(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.JSONRenderer{}).Comparison(&buf, sampleComparison()); err != nil {
		t.Fatalf("Comparison returned error: %v", err)
	}

	var decoded struct {
		Base      map[string]float64 `json:"base"`
		Scenarios []struct {
			ScenarioID string             `json:"scenario_id"`
			Variance   map[string]float64 `json:"variance_pct"`
			Error      string             `json:"error"`
		} `json:"scenarios"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Base["moic"] != 2.5 {
		t.Errorf("base moic = %v", decoded.Base["moic"])
	}
	if len(decoded.Scenarios) != 2 || decoded.Scenarios[0].Variance["irr"] != 25 {
		t.Errorf("unexpected scenarios: %+v", decoded.Scenarios)
	}
	if decoded.Scenarios[1].Error == "" {
		t.Error("failed scenario should carry its error")
	}
}

func TestJSONEmptyCollections(t *testing.T) {
	r := surface.New(true)

	var buf bytes.Buffer
	if err := r.Cycles(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"cycles": []`)) {
		t.Errorf("expected empty array, got %s", buf.String())
	}

	buf.Reset()
	if err := r.Scenarios(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := bytes.TrimSpace(buf.Bytes()); string(got) != "[]" {
		t.Errorf("expected [], got %s", got)
	}
}

func TestJSONSweep(t *testing.T) {
	res := &scenario.SweepResult{
		Input:      "exit_multiple",
		ScenarioID: "base",
		Points: []scenario.SweepPoint{
			{Input: 8, Outputs: map[string]float64{"irr": 0.15}},
			{Input: 12, Outputs: map[string]float64{"irr": math.NaN()}, Error: "boom"},
		},
	}
	var buf bytes.Buffer
	if err := surface.New(true).Sweep(&buf, res, []string{"irr"}); err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Fatalf("invalid JSON: %s", buf.String())
	}
}
