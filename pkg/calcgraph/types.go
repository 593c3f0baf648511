// Package calcgraph implements the cell dependency graph of a financial
// model: incremental add/remove of formula cells, affected-cell propagation,
// cached topological ordering with cycle detection, and a recalculation seam
// for an external formula evaluator.
//
// A Graph is not safe for concurrent mutation.
package calcgraph

import (
	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// FormulaNode is the per-cell record owned by a Graph.
type FormulaNode struct {
	Ref          cellref.Reference   `json:"ref"`
	Formula      string              `json:"formula"`
	Dependencies []cellref.Reference `json:"dependencies"`
	Value        any                 `json:"value,omitempty"`
	Calculated   bool                `json:"calculated"`
	Err          error               `json:"-"`

	// AST is an optional parsed form supplied by the caller's evaluator.
	// The graph never inspects it.
	AST any `json:"-"`
}

// ID returns the graph key of the node.
func (n *FormulaNode) ID() string {
	return n.Ref.ID()
}

// IsInput reports whether the node carries no formula, i.e. it holds a
// constant set through SetValue.
func (n *FormulaNode) IsInput() bool {
	return n.Formula == ""
}

// Stats holds summary statistics for a graph.
type Stats struct {
	NodeCount  int `json:"node_count"`
	EdgeCount  int `json:"edge_count"`
	SheetCount int `json:"sheet_count"`
	InputCount int `json:"input_count"`
}

// InDegreeMap maps node IDs to the number of registered cells they read.
type InDegreeMap map[string]int

// ComputeInDegrees counts, for every node, the dependencies that are
// themselves registered nodes. References to unregistered cells are
// treated as external inputs and do not hold a node back from ordering.
func (g *Graph) ComputeInDegrees() InDegreeMap {
	degrees := make(InDegreeMap, len(g.nodes))
	for id := range g.nodes {
		degrees[id] = 0
		for dep := range g.dependencies[id] {
			if _, ok := g.nodes[dep]; ok {
				degrees[id]++
			}
		}
	}
	return degrees
}

// Sheets returns the set of sheet names that own at least one node.
func (g *Graph) Sheets() map[string]bool {
	sheets := make(map[string]bool)
	for _, n := range g.nodes {
		sheets[n.Ref.Sheet] = true
	}
	return sheets
}

// Stats summarizes the graph.
func (g *Graph) Stats() Stats {
	s := Stats{NodeCount: len(g.nodes), SheetCount: len(g.Sheets())}
	for id, n := range g.nodes {
		s.EdgeCount += len(g.dependencies[id])
		if n.IsInput() {
			s.InputCount++
		}
	}
	return s
}

// Edge is a directed "reads" relation: the From cell's formula references
// the To cell.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Edges returns every dependency edge, sorted by From then To. Edges to
// unregistered input cells are included.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.IDs() {
		for _, to := range sortedIDs(g.dependencies[from]) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}
