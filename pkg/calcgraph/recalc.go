package calcgraph

import (
	"fmt"
	"log/slog"

	"github.com/dealmodel/dealmodel/internal/telemetry"
	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// LookupFunc returns the current value of a cell and whether it has one.
type LookupFunc func(ref cellref.Reference) (any, bool)

// Evaluator computes the value of one formula node. The graph only decides
// which nodes to evaluate and in what order; the formula language belongs
// to the evaluator.
type Evaluator interface {
	Evaluate(node *FormulaNode, lookup LookupFunc) (any, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(node *FormulaNode, lookup LookupFunc) (any, error)

func (f EvaluatorFunc) Evaluate(node *FormulaNode, lookup LookupFunc) (any, error) {
	return f(node, lookup)
}

// RecalcResult reports one recalculation pass.
type RecalcResult struct {
	Order  []string         `json:"order"`
	Errors map[string]error `json:"-"`
}

// Failed reports whether any evaluated cell ended in error.
func (r *RecalcResult) Failed() bool {
	return len(r.Errors) > 0
}

// Recalculate evaluates the cells affected by changed in topological order.
// With no changed cells every formula node is evaluated. A cyclic graph
// fails the pass before anything is evaluated. A cell whose evaluation
// fails, or that reads a failed cell, records the error on its node and the
// pass continues with the remaining cells.
func (g *Graph) Recalculate(ev Evaluator, changed ...cellref.Reference) (*RecalcResult, error) {
	var (
		order []string
		err   error
	)
	if len(changed) == 0 {
		order, err = g.TopologicalSort()
	} else {
		order, err = g.CalculationOrder(changed...)
	}
	if err != nil {
		return nil, fmt.Errorf("recalculate: %w", err)
	}

	lookup := func(ref cellref.Reference) (any, bool) {
		n, ok := g.nodes[ref.ID()]
		if !ok || !n.Calculated || n.Err != nil {
			return nil, false
		}
		return n.Value, true
	}

	result := &RecalcResult{Errors: make(map[string]error)}
	for _, id := range order {
		n := g.nodes[id]
		if n.IsInput() {
			continue
		}
		result.Order = append(result.Order, id)

		if failed := g.failedDependency(n); failed != "" {
			n.Err = fmt.Errorf("dependency %s failed: %w", failed, g.nodes[failed].Err)
			n.Calculated = false
			result.Errors[id] = n.Err
			telemetry.CellsEvaluated.WithLabelValues("skipped").Inc()
			continue
		}

		value, evalErr := ev.Evaluate(n, lookup)
		if evalErr != nil {
			n.Err = evalErr
			n.Calculated = false
			result.Errors[id] = evalErr
			telemetry.CellsEvaluated.WithLabelValues("failed").Inc()
			slog.Debug("cell evaluation failed", "cell", id, "error", evalErr)
			continue
		}
		n.Value = value
		n.Calculated = true
		n.Err = nil
		telemetry.CellsEvaluated.WithLabelValues("ok").Inc()
	}
	return result, nil
}

func (g *Graph) failedDependency(n *FormulaNode) string {
	for _, dep := range sortedIDs(g.dependencies[n.ID()]) {
		if d, ok := g.nodes[dep]; ok && d.Err != nil {
			return dep
		}
	}
	return ""
}
