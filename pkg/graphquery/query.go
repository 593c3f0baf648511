// Package graphquery provides read-only queries over a calculation graph:
// precedent and dependent tracing, shortest reference paths between cells,
// and sheet-level aggregation. Used by the CLI graph commands.
package graphquery

import (
	"sort"
	"strings"

	"github.com/dealmodel/dealmodel/pkg/calcgraph"
)

// Direction selects which edges a trace follows.
type Direction string

const (
	// Precedents follows the cells a cell reads.
	Precedents Direction = "precedents"
	// Dependents follows the cells that read a cell.
	Dependents Direction = "dependents"
	// Both follows edges in either direction.
	Both Direction = "both"
)

// DefaultMaxNodes caps a trace when the caller passes 0.
const DefaultMaxNodes = 500

// SheetNode represents an aggregated sheet in the sheet-level graph.
type SheetNode struct {
	Sheet        string `json:"sheet"`
	CellCount    int    `json:"cell_count"`
	InputCount   int    `json:"input_count"`
	FormulaCount int    `json:"formula_count"`
}

// SheetEdge represents cross-sheet references aggregated between sheets.
type SheetEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// SubgraphResult holds the cells and edges reached by a trace. IDs that are
// referenced but not registered appear in External.
type SubgraphResult struct {
	Root      string                            `json:"root"`
	Nodes     map[string]*calcgraph.FormulaNode `json:"nodes"`
	External  []string                          `json:"external,omitempty"`
	Edges     []calcgraph.Edge                  `json:"edges"`
	Truncated bool                              `json:"truncated,omitempty"`
}

// SheetGraphResult holds the result of a sheet-level aggregation.
type SheetGraphResult struct {
	Nodes map[string]*SheetNode `json:"nodes"`
	Edges []SheetEdge           `json:"edges"`
}

// PathResult holds the result of a shortest-path query.
type PathResult struct {
	Paths      [][]string       `json:"paths"`
	Edges      []calcgraph.Edge `json:"edges"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	PathLength int              `json:"path_length"`
}

// Trace collects the neighbourhood of root up to depth hops along the
// chosen direction. A depth of 0 or less means unlimited. maxNodes caps the
// result size (0 means DefaultMaxNodes); hitting the cap sets Truncated.
func Trace(g *calcgraph.Graph, root string, depth int, direction Direction, maxNodes int) *SubgraphResult {
	if direction == "" {
		direction = Both
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	result := &SubgraphResult{
		Root:  root,
		Nodes: map[string]*calcgraph.FormulaNode{},
		Edges: []calcgraph.Edge{},
	}
	if _, ok := g.NodeByID(root); !ok && len(g.Dependents(root)) == 0 {
		return result
	}

	visited := map[string]bool{root: true}
	queue := []string{root}
	truncated := false

	for d := 0; (depth <= 0 || d < depth) && len(queue) > 0 && !truncated; d++ {
		var next []string
		for _, id := range queue {
			var neighbours []string
			if direction == Precedents || direction == Both {
				neighbours = append(neighbours, g.Dependencies(id)...)
			}
			if direction == Dependents || direction == Both {
				neighbours = append(neighbours, g.Dependents(id)...)
			}
			for _, n := range neighbours {
				if visited[n] {
					continue
				}
				if len(visited) >= maxNodes {
					truncated = true
					break
				}
				visited[n] = true
				next = append(next, n)
			}
		}
		queue = next
	}

	for id := range visited {
		if n, ok := g.NodeByID(id); ok {
			result.Nodes[id] = n
		} else {
			result.External = append(result.External, id)
		}
	}
	sort.Strings(result.External)

	for _, e := range g.Edges() {
		if visited[e.From] && visited[e.To] {
			result.Edges = append(result.Edges, e)
		}
	}
	result.Truncated = truncated
	return result
}

// FindPaths finds all shortest reference paths from one cell to another,
// following precedent edges (each step is "reads"). A path exists when the
// from cell depends, directly or transitively, on the to cell.
func FindPaths(g *calcgraph.Graph, from, to string, maxPaths int) *PathResult {
	if maxPaths <= 0 {
		maxPaths = 10
	}

	emptyResult := &PathResult{
		Paths: [][]string{},
		Edges: []calcgraph.Edge{},
		From:  from,
		To:    to,
	}
	if _, ok := g.NodeByID(from); !ok {
		return emptyResult
	}

	type bfsEntry struct {
		node  string
		depth int
	}
	parents := make(map[string][]string)
	dist := map[string]int{from: 0}
	queue := []bfsEntry{{from, 0}}
	foundDepth := -1

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if foundDepth >= 0 && curr.depth > foundDepth {
			break
		}
		if curr.node == to {
			foundDepth = curr.depth
			continue
		}

		for _, neighbor := range g.Dependencies(curr.node) {
			nextDepth := curr.depth + 1
			if _, seen := dist[neighbor]; !seen {
				dist[neighbor] = nextDepth
				parents[neighbor] = []string{curr.node}
				queue = append(queue, bfsEntry{neighbor, nextDepth})
			} else if dist[neighbor] == nextDepth {
				parents[neighbor] = append(parents[neighbor], curr.node)
			}
		}
	}

	if _, ok := dist[to]; !ok || from == to {
		return emptyResult
	}

	var allPaths [][]string
	var backtrack func(node string, path []string)
	backtrack = func(node string, path []string) {
		if len(allPaths) >= maxPaths {
			return
		}
		current := make([]string, len(path)+1)
		current[0] = node
		copy(current[1:], path)

		if node == from {
			allPaths = append(allPaths, current)
			return
		}
		for _, p := range parents[node] {
			backtrack(p, current)
		}
	}
	backtrack(to, nil)

	edgeSet := make(map[calcgraph.Edge]bool)
	var edges []calcgraph.Edge
	for _, p := range allPaths {
		for i := 0; i < len(p)-1; i++ {
			e := calcgraph.Edge{From: p[i], To: p[i+1]}
			if !edgeSet[e] {
				edgeSet[e] = true
				edges = append(edges, e)
			}
		}
	}

	return &PathResult{
		Paths:      allPaths,
		Edges:      edges,
		From:       from,
		To:         to,
		PathLength: len(allPaths[0]) - 1,
	}
}

// AggregateSheets collapses the cell graph into a sheet-level graph. Edge
// weight counts cell references from one sheet into another; references
// inside a sheet are not reported. minEdgeWeight drops light edges.
func AggregateSheets(g *calcgraph.Graph, minEdgeWeight int) *SheetGraphResult {
	if minEdgeWeight < 1 {
		minEdgeWeight = 1
	}

	nodes := make(map[string]*SheetNode)
	for _, id := range g.IDs() {
		n, _ := g.NodeByID(id)
		sn, ok := nodes[n.Ref.Sheet]
		if !ok {
			sn = &SheetNode{Sheet: n.Ref.Sheet}
			nodes[n.Ref.Sheet] = sn
		}
		sn.CellCount++
		if n.IsInput() {
			sn.InputCount++
		} else {
			sn.FormulaCount++
		}
	}

	weights := make(map[string]int)
	for _, e := range g.Edges() {
		fromSheet := sheetOf(e.From)
		toSheet := sheetOf(e.To)
		if fromSheet == toSheet {
			continue
		}
		weights[fromSheet+"|"+toSheet]++
	}

	edges := make([]SheetEdge, 0, len(weights))
	for key, weight := range weights {
		if weight < minEdgeWeight {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		edges = append(edges, SheetEdge{From: parts[0], To: parts[1], Weight: weight})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return &SheetGraphResult{Nodes: nodes, Edges: edges}
}

func sheetOf(id string) string {
	if i := strings.LastIndex(id, "!"); i >= 0 {
		return id[:i]
	}
	return id
}
