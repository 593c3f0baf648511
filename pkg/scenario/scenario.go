// Package scenario manages named sets of input overrides ("scenarios")
// layered on a base case, and runs comparisons, probability weighting,
// sensitivity sweeps and Monte Carlo simulation against a deal model's pure
// calculation function.
package scenario

import (
	"maps"
	"time"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// BaseScenarioID identifies the immutable base case.
const BaseScenarioID = "base"

// Type classifies a scenario.
type Type string

const (
	TypeBase     Type = "base"
	TypeUpside   Type = "upside"
	TypeDownside Type = "downside"
	TypeStress   Type = "stress"
	TypeCustom   Type = "custom"
)

// Scenario is a named set of assumption overrides. Assumptions map
// registered dot-paths to values.
type Scenario struct {
	ID                string         `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	Type              Type           `json:"type" yaml:"type"`
	Description       string         `json:"description,omitempty" yaml:"description,omitempty"`
	Assumptions       map[string]any `json:"assumptions" yaml:"assumptions"`
	CreatedAt         time.Time      `json:"created_at" yaml:"created_at"`
	CreatedBy         string         `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	IsActive          bool           `json:"is_active" yaml:"is_active"`
	ParentScenarioID  string         `json:"parent_scenario_id,omitempty" yaml:"parent_scenario_id,omitempty"`
	ProbabilityWeight float64        `json:"probability_weight" yaml:"probability_weight"`
}

func (s *Scenario) clone() Scenario {
	c := *s
	c.Assumptions = maps.Clone(s.Assumptions)
	if c.Assumptions == nil {
		c.Assumptions = map[string]any{}
	}
	return c
}

// Spec describes a scenario to create. New scenarios are active.
type Spec struct {
	Name              string         `json:"name" yaml:"name"`
	Type              Type           `json:"type" yaml:"type"`
	Description       string         `json:"description" yaml:"description"`
	Assumptions       map[string]any `json:"assumptions" yaml:"assumptions"`
	CreatedBy         string         `json:"created_by" yaml:"created_by"`
	ParentScenarioID  string         `json:"parent_scenario_id" yaml:"parent_scenario_id"`
	ProbabilityWeight float64        `json:"probability_weight" yaml:"probability_weight"`
}

// Update changes selected fields of a scenario. Nil fields are left as
// they are; a non-nil Assumptions map replaces the existing one.
type Update struct {
	Name              *string
	Type              *Type
	Description       *string
	Assumptions       map[string]any
	IsActive          *bool
	ParentScenarioID  *string
	ProbabilityWeight *float64
}

// CalculateFunc is a deal model's pure recompute function.
type CalculateFunc[T any] func(T) (fieldpath.Outputs, error)
