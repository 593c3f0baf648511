package calcgraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// ErrUnknownCell is returned when an operation names a cell that is not
// registered in the graph.
var ErrUnknownCell = errors.New("unknown cell")

type idSet map[string]struct{}

// Graph owns every FormulaNode of a model and the dependency adjacency in
// both directions. dependents[x] holds the cells that read x;
// dependencies[x] holds the cells x reads. The two maps are kept symmetric.
type Graph struct {
	nodes        map[string]*FormulaNode
	dependents   map[string]idSet
	dependencies map[string]idSet

	// order caches the full topological order; orderValid is reset by every
	// structural mutation.
	order      []string
	orderValid bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:        make(map[string]*FormulaNode),
		dependents:   make(map[string]idSet),
		dependencies: make(map[string]idSet),
	}
}

// AddCell registers (or replaces) the cell at ref. When a node already
// exists at that ID its outgoing edges are removed first so that stale
// dependents do not linger; cells that read ref keep their edges.
func (g *Graph) AddCell(ref cellref.Reference, formula string, deps []cellref.Reference, ast any) *FormulaNode {
	id := ref.ID()
	if _, exists := g.nodes[id]; exists {
		g.unlinkDependencies(id)
	}

	node := &FormulaNode{
		Ref:          ref,
		Formula:      formula,
		Dependencies: append([]cellref.Reference(nil), deps...),
		AST:          ast,
	}
	g.nodes[id] = node

	for _, dep := range deps {
		depID := dep.ID()
		link(g.dependencies, id, depID)
		link(g.dependents, depID, id)
	}

	g.invalidate()
	return node
}

// RemoveCell drops the cell at ref and its outgoing edges. Edges from cells
// whose formulas still read ref are kept: ref becomes an unregistered input
// for them, and re-adding it restores the previous structure. No-op if the
// cell is absent.
func (g *Graph) RemoveCell(ref cellref.Reference) {
	id := ref.ID()
	if _, exists := g.nodes[id]; !exists {
		return
	}
	g.unlinkDependencies(id)
	delete(g.dependencies, id)
	delete(g.nodes, id)
	if len(g.dependents[id]) == 0 {
		delete(g.dependents, id)
	}
	g.invalidate()
}

func (g *Graph) unlinkDependencies(id string) {
	for depID := range g.dependencies[id] {
		unlink(g.dependents, depID, id)
	}
	g.dependencies[id] = make(idSet)
}

func (g *Graph) invalidate() {
	g.order = nil
	g.orderValid = false
}

// Node returns the node registered at ref.
func (g *Graph) Node(ref cellref.Reference) (*FormulaNode, bool) {
	n, ok := g.nodes[ref.ID()]
	return n, ok
}

// NodeByID returns the node registered under a "Sheet!A1" key.
func (g *Graph) NodeByID(id string) (*FormulaNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node IDs in lexical order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependents returns the IDs of cells that directly read id.
func (g *Graph) Dependents(id string) []string {
	return sortedIDs(g.dependents[id])
}

// Dependencies returns the IDs of cells that id directly reads, including
// unregistered input cells.
func (g *Graph) Dependencies(id string) []string {
	return sortedIDs(g.dependencies[id])
}

// SetValue stores a value on the node at ref and marks it calculated.
func (g *Graph) SetValue(ref cellref.Reference, value any) error {
	n, ok := g.nodes[ref.ID()]
	if !ok {
		return fmt.Errorf("set value %s: %w", ref.ID(), ErrUnknownCell)
	}
	n.Value = value
	n.Calculated = true
	n.Err = nil
	return nil
}

// ResetCalculations clears the calculated flag and error of every formula
// node. Values of input nodes are kept.
func (g *Graph) ResetCalculations() {
	for _, n := range g.nodes {
		if n.IsInput() {
			continue
		}
		n.Calculated = false
		n.Err = nil
	}
}

// AffectedCells returns every cell that transitively reads changed, in
// breadth-first order. changed itself is never included, even when it sits
// on a cycle.
func (g *Graph) AffectedCells(changed cellref.Reference) []string {
	start := changed.ID()
	visited := map[string]bool{start: true}
	queue := []string{start}
	var affected []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range sortedIDs(g.dependents[id]) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			affected = append(affected, dep)
			queue = append(queue, dep)
		}
	}
	return affected
}

func link(m map[string]idSet, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(idSet)
		m[from] = set
	}
	set[to] = struct{}{}
}

func unlink(m map[string]idSet, from, to string) {
	set, ok := m[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m, from)
	}
}

func sortedIDs(set idSet) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
