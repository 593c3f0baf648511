package graphquery

import (
	"reflect"
	"testing"

	"github.com/dealmodel/dealmodel/pkg/calcgraph"
)

// testGraph models a small three-sheet deal:
//
//	Model!B1 (revenue input)
//	Model!B2 = B1*Model!B3          (EBITDA)
//	Debt!C1  = Model!B2*Debt!C2     (senior debt)
//	Debt!C3  = Debt!C1*0.08         (interest)
//	Returns!D1 = Model!B2-Debt!C3   (cash flow)
//	Returns!D2 = Returns!D1/Debt!C1
func testGraph(t *testing.T) *calcgraph.Graph {
	t.Helper()
	def := &calcgraph.Definition{
		Sheet: "Model",
		Cells: []calcgraph.CellDefinition{
			{Cell: "B1", Value: 100.0},
			{Cell: "B2", Formula: "=B1*B3"},
			{Cell: "B3", Value: 0.2},
			{Sheet: "Debt", Cell: "C1", Formula: "=Model!B2*C2"},
			{Sheet: "Debt", Cell: "C2", Value: 5.0},
			{Sheet: "Debt", Cell: "C3", Formula: "=C1*0.08"},
			{Sheet: "Returns", Cell: "D1", Formula: "=Model!B2-Debt!C3"},
			{Sheet: "Returns", Cell: "D2", Formula: "=D1/Debt!C1+Z9"},
		},
	}
	g, err := def.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestTrace(t *testing.T) {
	g := testGraph(t)

	t.Run("precedents depth 1", func(t *testing.T) {
		result := Trace(g, "Returns!D1", 1, Precedents, 0)
		for _, want := range []string{"Returns!D1", "Model!B2", "Debt!C3"} {
			if _, ok := result.Nodes[want]; !ok {
				t.Errorf("expected %s in result", want)
			}
		}
		if _, ok := result.Nodes["Debt!C1"]; ok {
			t.Error("did not expect Debt!C1 at depth 1")
		}
	})

	t.Run("precedents unlimited", func(t *testing.T) {
		result := Trace(g, "Returns!D2", 0, Precedents, 0)
		if len(result.Nodes) != 8 {
			t.Errorf("expected all 8 registered cells, got %d", len(result.Nodes))
		}
		if !reflect.DeepEqual(result.External, []string{"Returns!Z9"}) {
			t.Errorf("External = %v, want [Returns!Z9]", result.External)
		}
	})

	t.Run("dependents", func(t *testing.T) {
		result := Trace(g, "Debt!C2", 0, Dependents, 0)
		want := []string{"Debt!C1", "Debt!C2", "Debt!C3", "Returns!D1", "Returns!D2"}
		var got []string
		for id := range result.Nodes {
			got = append(got, id)
		}
		if len(got) != len(want) {
			t.Errorf("got %v, want %v", got, want)
		}
		for _, e := range result.Edges {
			if _, ok := result.Nodes[e.From]; !ok {
				t.Errorf("edge from %s but node not in result", e.From)
			}
		}
	})

	t.Run("truncated", func(t *testing.T) {
		result := Trace(g, "Model!B1", 0, Both, 3)
		if !result.Truncated {
			t.Error("expected truncation")
		}
		if len(result.Nodes)+len(result.External) > 3 {
			t.Errorf("expected at most 3 cells, got %d", len(result.Nodes)+len(result.External))
		}
	})

	t.Run("unknown root", func(t *testing.T) {
		result := Trace(g, "Nope!A1", 2, Both, 0)
		if len(result.Nodes) != 0 || len(result.Edges) != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})
}

func TestFindPaths(t *testing.T) {
	g := testGraph(t)

	t.Run("direct", func(t *testing.T) {
		result := FindPaths(g, "Debt!C3", "Debt!C1", 10)
		if result.PathLength != 1 {
			t.Errorf("PathLength = %d, want 1", result.PathLength)
		}
	})

	t.Run("multiple shortest paths", func(t *testing.T) {
		result := FindPaths(g, "Returns!D2", "Model!B2", 10)
		// D2 -> D1 -> B2 and D2 -> C1 -> B2
		if result.PathLength != 2 {
			t.Errorf("PathLength = %d, want 2", result.PathLength)
		}
		if len(result.Paths) != 2 {
			t.Fatalf("expected 2 paths, got %v", result.Paths)
		}
		for _, p := range result.Paths {
			if p[0] != "Returns!D2" || p[len(p)-1] != "Model!B2" {
				t.Errorf("path %v does not run from D2 to B2", p)
			}
		}
	})

	t.Run("max paths", func(t *testing.T) {
		result := FindPaths(g, "Returns!D2", "Model!B2", 1)
		if len(result.Paths) != 1 {
			t.Errorf("expected 1 path, got %d", len(result.Paths))
		}
	})

	t.Run("wrong direction", func(t *testing.T) {
		result := FindPaths(g, "Model!B1", "Returns!D2", 10)
		if len(result.Paths) != 0 {
			t.Errorf("expected no paths upstream, got %v", result.Paths)
		}
	})
}

func TestAggregateSheets(t *testing.T) {
	g := testGraph(t)

	result := AggregateSheets(g, 1)
	if len(result.Nodes) != 3 {
		t.Fatalf("expected 3 sheets, got %d", len(result.Nodes))
	}
	debt := result.Nodes["Debt"]
	if debt.CellCount != 3 || debt.InputCount != 1 || debt.FormulaCount != 2 {
		t.Errorf("Debt sheet = %+v", debt)
	}

	weights := make(map[string]int)
	for _, e := range result.Edges {
		weights[e.From+"->"+e.To] = e.Weight
	}
	want := map[string]int{
		"Debt->Model":    1,
		"Returns->Model": 1,
		"Returns->Debt":  2,
	}
	if !reflect.DeepEqual(weights, want) {
		t.Errorf("edge weights = %v, want %v", weights, want)
	}
	if result.Edges[0].Weight != 2 {
		t.Errorf("heaviest edge should sort first, got %+v", result.Edges[0])
	}

	filtered := AggregateSheets(g, 2)
	if len(filtered.Edges) != 1 {
		t.Errorf("expected 1 edge with weight >= 2, got %d", len(filtered.Edges))
	}
}
