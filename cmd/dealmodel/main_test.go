package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmodel/dealmodel/internal/store"
	"github.com/dealmodel/dealmodel/pkg/scenario"
)

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	f := cmd.PersistentFlags()

	for _, flag := range []string{"project", "config", "inputs", "model", "verbose", "json", "metrics-file"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing persistent flag: %s", flag)
		}
	}

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"graph", "scenario", "sensitivity", "montecarlo"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing command %q in %v", want, names)
		}
	}
}

func TestGraphTraceCmdFlags(t *testing.T) {
	cmd := newGraphTraceCmd(&globalOpts{}, new(string))
	f := cmd.Flags()

	depth, _ := f.GetInt("depth")
	if depth != 2 {
		t.Errorf("default depth = %d, want 2", depth)
	}
	dir, _ := f.GetString("direction")
	if dir != "precedents" {
		t.Errorf("default direction = %q, want precedents", dir)
	}
}

func TestSensitivityCmdFlags(t *testing.T) {
	cmd := newOneWayCmd(&globalOpts{})
	f := cmd.Flags()

	output, _ := f.GetString("output")
	if output != "irr" {
		t.Errorf("default output = %q, want irr", output)
	}
	for _, flag := range []string{"output", "variation", "steps", "scenario", "archive"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
	}

	for _, tt := range tests {
		got := firstNonEmpty(tt.args...)
		if got != tt.want {
			t.Errorf("firstNonEmpty(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"irr", "moic"}, splitList(" irr, ,moic "))
	assert.Nil(t, splitList(""))
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{
		"senior_debt.rate=0.09",
		"hold_years=4",
		"cash_sweep=false",
		"name=Project Atlas",
		"ebitda_growth=[0.05, 0.04]",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"senior_debt.rate": 0.09,
		"hold_years":       4,
		"cash_sweep":       false,
		"name":             "Project Atlas",
		"ebitda_growth":    []any{0.05, 0.04},
	}, got)

	_, err = parseAssignments([]string{"no-equals"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=1"})
	assert.Error(t, err)
}

func TestModelID(t *testing.T) {
	a := &app{g: &globalOpts{}}
	a.inputs.Name = "Project Atlas (2026)"
	assert.Equal(t, "project-atlas-2026", a.modelID())

	a.inputs.Name = ""
	assert.Equal(t, "default", a.modelID())

	a.g.modelID = "explicit"
	assert.Equal(t, "explicit", a.modelID())
}

// isolate points every state directory at a temp dir and clears the
// environment overrides, returning the project directory.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{
		"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"ARCHIVE_BUCKET", "GCS_BUCKET", "AWS_REGION", "AWS_ENDPOINT_URL_S3",
	} {
		t.Setenv(k, "")
	}
	return t.TempDir()
}

func runCLI(t *testing.T, project string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--project", project}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[V any](t *testing.T, s string) V {
	t.Helper()
	var v V
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestScenarioLifecycle(t *testing.T) {
	project := isolate(t)

	out, err := runCLI(t, project, "--json", "scenario", "create", "High rates",
		"--type", "stress", "--set", "senior_debt.rate=0.09", "--weight", "0.2")
	require.NoError(t, err)
	created := decode[[]scenario.Scenario](t, out)
	require.Len(t, created, 1)
	id := created[0].ID
	assert.Equal(t, scenario.TypeStress, created[0].Type)

	out, err = runCLI(t, project, "--json", "scenario", "list")
	require.NoError(t, err)
	listed := decode[[]scenario.Scenario](t, out)
	require.Len(t, listed, 2, "scenario persisted across runs")
	assert.Equal(t, scenario.BaseScenarioID, listed[0].ID)
	assert.Equal(t, 0.09, listed[1].Assumptions["senior_debt.rate"])

	out, err = runCLI(t, project, "--json", "scenario", "compare", "--outputs", "irr,moic")
	require.NoError(t, err)
	cmp := decode[struct {
		Base      map[string]float64 `json:"base"`
		Scenarios []struct {
			ScenarioID string             `json:"scenario_id"`
			Metrics    map[string]float64 `json:"metrics"`
		} `json:"scenarios"`
	}](t, out)
	require.Len(t, cmp.Scenarios, 2)
	assert.Less(t, cmp.Scenarios[1].Metrics["irr"], cmp.Base["irr"], "higher rates lower the return")

	_, err = runCLI(t, project, "scenario", "standard", "--drivers", "exit_multiple")
	require.NoError(t, err)
	out, err = runCLI(t, project, "--json", "scenario", "list")
	require.NoError(t, err)
	listed = decode[[]scenario.Scenario](t, out)
	require.Len(t, listed, 4)
	assert.Equal(t, scenario.StandardBaseWeight, listed[0].ProbabilityWeight, "base weight persisted")

	_, err = runCLI(t, project, "scenario", "update", id, "--active=false")
	require.NoError(t, err)
	_, err = runCLI(t, project, "scenario", "delete", id)
	require.NoError(t, err)
	out, err = runCLI(t, project, "--json", "scenario", "list")
	require.NoError(t, err)
	assert.Len(t, decode[[]scenario.Scenario](t, out), 3)

	_, err = runCLI(t, project, "scenario", "delete", scenario.BaseScenarioID)
	assert.ErrorIs(t, err, scenario.ErrBaseImmutable)
}

func TestScenarioExportImport(t *testing.T) {
	project := isolate(t)
	other := t.TempDir()
	file := filepath.Join(t.TempDir(), "scenarios.json")

	_, err := runCLI(t, project, "scenario", "create", "Slow growth", "--set", "ebitda_growth=[0.02, 0.02]")
	require.NoError(t, err)
	_, err = runCLI(t, project, "scenario", "export", "--out", file, "--archive")
	require.NoError(t, err)

	out, err := runCLI(t, other, "--model", "copy", "scenario", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 scenario(s)")

	out, err = runCLI(t, project, "--json", "scenario", "archives")
	require.NoError(t, err)
	records := decode[[]store.ArchiveRecord](t, out)
	require.Len(t, records, 1)
	assert.Equal(t, "scenarios", records[0].Kind)
}

func TestGraphCommands(t *testing.T) {
	project := isolate(t)
	def := filepath.Join(project, "model.yaml")
	require.NoError(t, os.WriteFile(def, []byte(`sheet: Model
cells:
  - cell: A1
    value: 100
  - cell: A2
    formula: "=A1*2"
  - cell: A3
    formula: "=A2+A1"
`), 0o644))

	out, err := runCLI(t, project, "--json", "graph", "order", "-f", def)
	require.NoError(t, err)
	order := decode[struct {
		Cells []string `json:"cells"`
	}](t, out)
	assert.Equal(t, []string{"Model!A1", "Model!A2", "Model!A3"}, order.Cells)

	out, err = runCLI(t, project, "--json", "graph", "order", "-f", def, "A2")
	require.NoError(t, err)
	order = decode[struct {
		Cells []string `json:"cells"`
	}](t, out)
	assert.Equal(t, []string{"Model!A3"}, order.Cells)

	out, err = runCLI(t, project, "--json", "graph", "affected", "-f", def, "A1")
	require.NoError(t, err)
	assert.Contains(t, out, "Model!A3")

	_, err = runCLI(t, project, "graph", "cycles", "-f", def)
	assert.NoError(t, err)

	_, err = runCLI(t, project, "graph", "order")
	assert.Error(t, err)
}

func TestGraphCyclesFails(t *testing.T) {
	project := isolate(t)
	def := filepath.Join(project, "loop.yaml")
	require.NoError(t, os.WriteFile(def, []byte(`sheet: Model
cells:
  - cell: A1
    formula: "=A2+1"
  - cell: A2
    formula: "=A1+1"
`), 0o644))

	out, err := runCLI(t, project, "--json", "graph", "cycles", "-f", def)
	require.Error(t, err)
	assert.Contains(t, out, "Model!A1")
}

func TestSensitivityOneWay(t *testing.T) {
	project := isolate(t)

	out, err := runCLI(t, project, "--json", "sensitivity", "oneway", "exit_multiple",
		"--output", "moic", "--variation", "0.2", "--steps", "3")
	require.NoError(t, err)
	res := decode[struct {
		InputValues  []float64 `json:"input_values"`
		OutputValues []float64 `json:"output_values"`
	}](t, out)
	require.Len(t, res.InputValues, 3)
	assert.InDelta(t, 8, res.InputValues[0], 1e-9)
	assert.InDelta(t, 12, res.InputValues[2], 1e-9)
	assert.Less(t, res.OutputValues[0], res.OutputValues[2])

	_, err = runCLI(t, project, "sensitivity", "oneway", "not_an_input")
	assert.Error(t, err)
}

func TestMonteCarloArchive(t *testing.T) {
	project := isolate(t)
	dist := filepath.Join(project, "dist.yaml")
	require.NoError(t, os.WriteFile(dist, []byte(`exit_multiple:
  type: triangular
  min: 8
  mode: 10
  max: 12
`), 0o644))

	run := func() scenario.MonteCarloResult {
		out, err := runCLI(t, project, "--json", "montecarlo", "--dist", dist,
			"--iterations", "50", "--seed", "7", "--outputs", "irr", "--archive")
		require.NoError(t, err)
		return decode[scenario.MonteCarloResult](t, out)
	}
	first, second := run(), run()
	assert.Equal(t, 50, first.Successful)
	assert.Equal(t, uint64(7), first.Seed)
	assert.Equal(t, first.Statistics, second.Statistics, "same seed, same draws")

	out, err := runCLI(t, project, "--json", "scenario", "archives")
	require.NoError(t, err)
	assert.Len(t, decode[[]store.ArchiveRecord](t, out), 2)
}
