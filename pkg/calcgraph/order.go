package calcgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dealmodel/dealmodel/internal/telemetry"
	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// ErrCycle is the sentinel wrapped by CycleError.
var ErrCycle = errors.New("circular dependency")

// CycleError is returned by ordering requests on a cyclic graph. Cells
// lists every cell that could not be ordered: the cells on a cycle and
// anything downstream of one.
type CycleError struct {
	Cells []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency among cells: %s", strings.Join(e.Cells, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// TopologicalSort orders every node so that each cell appears after all
// registered cells it reads (Kahn's algorithm). Ties are broken by ID so
// the order is deterministic. The result is cached until the next
// structural mutation; callers receive a copy.
func (g *Graph) TopologicalSort() ([]string, error) {
	if g.orderValid {
		return slices.Clone(g.order), nil
	}

	inDegree := g.ComputeInDegrees()
	var queue []string
	for _, id := range g.IDs() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dep := range sortedIDs(g.dependents[id]) {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var unsorted []string
		for _, id := range g.IDs() {
			if inDegree[id] > 0 {
				unsorted = append(unsorted, id)
			}
		}
		telemetry.RecalculationPasses.WithLabelValues("cycle").Inc()
		return nil, &CycleError{Cells: unsorted}
	}

	g.order = order
	g.orderValid = true
	return slices.Clone(order), nil
}

// CalculationOrder returns the cells that must be recomputed after the
// given cells changed, in global topological order. The changed cells
// themselves are excluded. A cyclic graph fails the whole request.
func (g *Graph) CalculationOrder(changed ...cellref.Reference) ([]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("calculation order: %w", err)
	}

	affected := make(map[string]bool)
	for _, ref := range changed {
		for _, id := range g.AffectedCells(ref) {
			affected[id] = true
		}
	}

	result := make([]string, 0, len(affected))
	for _, id := range order {
		if affected[id] {
			result = append(result, id)
		}
	}
	telemetry.RecalculationPasses.WithLabelValues("ok").Inc()
	return result, nil
}

// DetectCycles walks the graph depth-first with an explicit recursion stack
// and returns every cycle it discovers as an ordered sequence of IDs, each
// cell reading the next and the last reading the first. Unlike
// TopologicalSort it never fails; it is meant for diagnostics.
func (g *Graph) DetectCycles() [][]string {
	visited := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool)
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range sortedIDs(g.dependencies[id]) {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			if onStack[dep] {
				start := slices.Index(stack, dep)
				cycles = append(cycles, slices.Clone(stack[start:]))
				continue
			}
			if !visited[dep] {
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range g.IDs() {
		if !visited[id] {
			visit(id)
		}
	}
	return cycles
}
