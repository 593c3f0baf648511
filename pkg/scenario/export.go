package scenario

import (
	"fmt"
	"time"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// ExportScenarios returns every non-base scenario as a plain record
// suitable for JSON persistence. The base scenario is never exported.
func (m *Manager[T]) ExportScenarios() []map[string]any {
	records := make([]map[string]any, 0, len(m.order))
	for _, id := range m.order {
		if id == BaseScenarioID {
			continue
		}
		s := m.scenarios[id].clone()
		records = append(records, map[string]any{
			"id":                 s.ID,
			"name":               s.Name,
			"type":               string(s.Type),
			"description":        s.Description,
			"assumptions":        s.Assumptions,
			"created_at":         s.CreatedAt.UTC().Format(time.RFC3339Nano),
			"created_by":         s.CreatedBy,
			"is_active":          s.IsActive,
			"parent_scenario_id": s.ParentScenarioID,
			"probability_weight": s.ProbabilityWeight,
		})
	}
	return records
}

// ImportScenarios adds or replaces scenarios from plain records and
// returns how many were imported. Records for the base scenario are
// ignored. Missing ids are generated; a missing or unparsable created_at
// becomes the current time.
func (m *Manager[T]) ImportScenarios(records []map[string]any) (int, error) {
	parsed := make([]*Scenario, 0, len(records))
	for i, r := range records {
		s, err := m.fromRecord(r)
		if err != nil {
			return 0, fmt.Errorf("import record %d: %w", i, err)
		}
		if s.ID == BaseScenarioID {
			continue
		}
		parsed = append(parsed, s)
	}
	for _, s := range parsed {
		m.insert(s)
	}
	return len(parsed), nil
}

func (m *Manager[T]) fromRecord(r map[string]any) (*Scenario, error) {
	s := &Scenario{
		IsActive:    true,
		Assumptions: map[string]any{},
	}

	var err error
	str := func(key string) string {
		v, ok := r[key]
		if !ok || v == nil || err != nil {
			return ""
		}
		out, ok := v.(string)
		if !ok {
			err = fmt.Errorf("field %q: expected string, got %T", key, v)
		}
		return out
	}

	s.ID = str("id")
	s.Name = str("name")
	s.Type = Type(str("type"))
	s.Description = str("description")
	s.CreatedBy = str("created_by")
	s.ParentScenarioID = str("parent_scenario_id")
	created := str("created_at")
	if err != nil {
		return nil, err
	}

	if s.ID == "" {
		s.ID = m.newID()
	}
	if s.Type == "" {
		s.Type = TypeCustom
	}
	if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		s.CreatedAt = t
	} else {
		s.CreatedAt = m.now()
	}

	if v, ok := r["is_active"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("field %q: expected bool, got %T", "is_active", v)
		}
		s.IsActive = b
	}
	if v, ok := r["probability_weight"]; ok && v != nil {
		f, ok := fieldpath.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %q: expected number, got %T", "probability_weight", v)
		}
		s.ProbabilityWeight = f
	}
	if v, ok := r["assumptions"]; ok && v != nil {
		a, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: expected object, got %T", "assumptions", v)
		}
		for k, x := range a {
			s.Assumptions[k] = x
		}
	}
	return s, nil
}
