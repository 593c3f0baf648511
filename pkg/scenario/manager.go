package scenario

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dealmodel/dealmodel/internal/telemetry"
	"github.com/dealmodel/dealmodel/pkg/clone"
	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// Manager holds a base input snapshot and the scenarios layered on it.
// A Manager is not safe for concurrent use.
type Manager[T any] struct {
	base  T
	reg   *fieldpath.Registry[T]
	clone clone.Func[T]
	cache ResultCache

	scenarios map[string]*Scenario
	order     []string // creation order, base first

	seed    uint64
	seedSet bool
	now     func() time.Time
	newID   func() string
}

// Option configures a Manager.
type Option[T any] func(*Manager[T])

// WithCloner replaces the default go-deepcopy cloner.
func WithCloner[T any](fn clone.Func[T]) Option[T] {
	return func(m *Manager[T]) {
		m.clone = fn
	}
}

// WithResultCache replaces the default in-memory LRU result cache.
func WithResultCache[T any](c ResultCache) Option[T] {
	return func(m *Manager[T]) {
		m.cache = c
	}
}

// WithSeed fixes the Monte Carlo random seed so runs are reproducible.
func WithSeed[T any](seed uint64) Option[T] {
	return func(m *Manager[T]) {
		m.seed = seed
		m.seedSet = true
	}
}

// WithClock overrides the creation timestamp source.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(m *Manager[T]) {
		m.now = now
	}
}

// NewManager deep-copies base and creates the base scenario.
func NewManager[T any](base T, reg *fieldpath.Registry[T], opts ...Option[T]) (*Manager[T], error) {
	m := &Manager[T]{
		reg:       reg,
		clone:     clone.Deep[T],
		cache:     NewLRUCache(DefaultCacheSize),
		scenarios: make(map[string]*Scenario),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}

	owned, err := m.clone(base)
	if err != nil {
		return nil, fmt.Errorf("copying base inputs: %w", err)
	}
	m.base = owned

	m.scenarios[BaseScenarioID] = &Scenario{
		ID:                BaseScenarioID,
		Name:              "Base Case",
		Type:              TypeBase,
		Description:       "Base case assumptions",
		Assumptions:       map[string]any{},
		CreatedAt:         m.now(),
		CreatedBy:         "system",
		IsActive:          true,
		ProbabilityWeight: 1.0,
	}
	m.order = []string{BaseScenarioID}
	return m, nil
}

// Registry returns the field registry used to apply assumptions.
func (m *Manager[T]) Registry() *fieldpath.Registry[T] {
	return m.reg
}

// BaseInputs returns a copy of the base input snapshot.
func (m *Manager[T]) BaseInputs() (T, error) {
	return m.clone(m.base)
}

// CreateScenario adds a scenario and returns a copy of it.
func (m *Manager[T]) CreateScenario(spec Spec) (Scenario, error) {
	if spec.ParentScenarioID != "" {
		if _, ok := m.scenarios[spec.ParentScenarioID]; !ok {
			return Scenario{}, fmt.Errorf("parent %q: %w", spec.ParentScenarioID, ErrNotFound)
		}
	}
	if spec.Type == "" {
		spec.Type = TypeCustom
	}

	s := &Scenario{
		ID:                m.newID(),
		Name:              spec.Name,
		Type:              spec.Type,
		Description:       spec.Description,
		Assumptions:       maps.Clone(spec.Assumptions),
		CreatedAt:         m.now(),
		CreatedBy:         spec.CreatedBy,
		IsActive:          true,
		ParentScenarioID:  spec.ParentScenarioID,
		ProbabilityWeight: spec.ProbabilityWeight,
	}
	if s.Assumptions == nil {
		s.Assumptions = map[string]any{}
	}
	m.insert(s)
	slog.Debug("scenario created", "id", s.ID, "name", s.Name, "type", s.Type)
	return s.clone(), nil
}

// UpdateScenario applies u to the scenario and drops cached results for it
// and its children.
func (m *Manager[T]) UpdateScenario(id string, u Update) (Scenario, error) {
	if id == BaseScenarioID {
		return Scenario{}, fmt.Errorf("update %q: %w", id, ErrBaseImmutable)
	}
	s, ok := m.scenarios[id]
	if !ok {
		return Scenario{}, fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	if u.ParentScenarioID != nil && *u.ParentScenarioID != "" {
		if *u.ParentScenarioID == id {
			return Scenario{}, fmt.Errorf("update %q: scenario cannot be its own parent: %w", id, ErrInvalidConfig)
		}
		if _, ok := m.scenarios[*u.ParentScenarioID]; !ok {
			return Scenario{}, fmt.Errorf("parent %q: %w", *u.ParentScenarioID, ErrNotFound)
		}
	}

	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Type != nil {
		s.Type = *u.Type
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Assumptions != nil {
		s.Assumptions = maps.Clone(u.Assumptions)
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if u.ParentScenarioID != nil {
		s.ParentScenarioID = *u.ParentScenarioID
	}
	if u.ProbabilityWeight != nil {
		s.ProbabilityWeight = *u.ProbabilityWeight
	}

	m.invalidate(id)
	return s.clone(), nil
}

// DeleteScenario removes a scenario. Children keep their parent id but no
// longer inherit from it.
func (m *Manager[T]) DeleteScenario(id string) error {
	if id == BaseScenarioID {
		return fmt.Errorf("delete %q: %w", id, ErrBaseImmutable)
	}
	if _, ok := m.scenarios[id]; !ok {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	m.invalidate(id)
	delete(m.scenarios, id)
	for i, k := range m.order {
		if k == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetBaseWeight changes the probability weight of the base scenario. The
// base assumptions stay immutable; only the weight used by
// ProbabilityWeighted changes.
func (m *Manager[T]) SetBaseWeight(weight float64) error {
	if weight < 0 || math.IsNaN(weight) {
		return fmt.Errorf("base weight %v: %w", weight, ErrInvalidConfig)
	}
	m.scenarios[BaseScenarioID].ProbabilityWeight = weight
	return nil
}

// Scenario returns a copy of the scenario with the given id.
func (m *Manager[T]) Scenario(id string) (Scenario, error) {
	s, ok := m.scenarios[id]
	if !ok {
		return Scenario{}, fmt.Errorf("scenario %q: %w", id, ErrNotFound)
	}
	return s.clone(), nil
}

// Scenarios returns copies of every scenario, base first, then in creation
// order.
func (m *Manager[T]) Scenarios() []Scenario {
	out := make([]Scenario, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.scenarios[id].clone())
	}
	return out
}

// ScenarioInputs builds the inputs of a scenario: a fresh copy of the base,
// then the parent's assumptions (one level only), then the scenario's own.
// Assumptions on unresolved paths are skipped; a type mismatch is an error.
func (m *Manager[T]) ScenarioInputs(id string) (T, error) {
	var zero T
	s, ok := m.scenarios[id]
	if !ok {
		return zero, fmt.Errorf("scenario %q: %w", id, ErrNotFound)
	}

	in, err := m.clone(m.base)
	if err != nil {
		return zero, fmt.Errorf("copying base inputs: %w", err)
	}
	if s.ParentScenarioID != "" {
		if parent, ok := m.scenarios[s.ParentScenarioID]; ok {
			if err := m.reg.Apply(&in, parent.Assumptions); err != nil {
				return zero, fmt.Errorf("applying parent %q assumptions: %w", parent.ID, err)
			}
		}
	}
	if err := m.reg.Apply(&in, s.Assumptions); err != nil {
		return zero, fmt.Errorf("applying scenario %q assumptions: %w", id, err)
	}
	return in, nil
}

// Calculate returns the outputs of a scenario, from the result cache when
// present.
func (m *Manager[T]) Calculate(id string, calc CalculateFunc[T]) (fieldpath.Outputs, error) {
	if out, ok := m.cache.Get(id); ok {
		telemetry.ScenarioCache.WithLabelValues("hit").Inc()
		return out, nil
	}
	telemetry.ScenarioCache.WithLabelValues("miss").Inc()

	in, err := m.ScenarioInputs(id)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := calc(in)
	telemetry.CalculationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("calculating scenario %q: %w", id, err)
	}
	m.cache.Put(id, out)
	return out, nil
}

// InvalidateResults drops every cached result, for example after the
// calculation function changes.
func (m *Manager[T]) InvalidateResults() {
	m.cache.Clear()
}

func (m *Manager[T]) insert(s *Scenario) {
	if _, exists := m.scenarios[s.ID]; !exists {
		m.order = append(m.order, s.ID)
	}
	m.scenarios[s.ID] = s
	m.invalidate(s.ID)
}

// invalidate drops cached results of id and of scenarios inheriting from it.
func (m *Manager[T]) invalidate(id string) {
	ids := []string{id}
	for _, s := range m.scenarios {
		if s.ParentScenarioID == id {
			ids = append(ids, s.ID)
		}
	}
	m.cache.Delete(ids...)
}
