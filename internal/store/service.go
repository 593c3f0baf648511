// Package store persists scenario sets per model. Records are the plain
// maps produced by scenario.Manager.ExportScenarios, stored as JSON.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a model has no stored rows.
var ErrNotFound = errors.New("model not found")

// Service provides scenario persistence backed by Postgres or SQLite.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// Model summarizes a stored model.
type Model struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	BaseWeight    float64   `json:"base_weight"`
	ScenarioCount int       `json:"scenario_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ArchiveRecord points at a blob written by the archive service.
type ArchiveRecord struct {
	ID         string    `json:"id"`
	ModelID    string    `json:"model_id"`
	Kind       string    `json:"kind"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewService creates a new store Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SaveScenarios replaces the stored scenario set of a model, creating the
// model row when needed. Record order is preserved.
func (s *Service) SaveScenarios(ctx context.Context, modelID, name string, records []map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save scenarios: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	if err := upsertModel(ctx, tx, modelID, name, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE model_id = $1`, modelID); err != nil {
		return fmt.Errorf("clear scenarios for %s: %w", modelID, err)
	}

	for i, r := range records {
		id, _ := r["id"].(string)
		if id == "" {
			return fmt.Errorf("save scenario %d of %s: record has no id", i, modelID)
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal scenario %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scenarios (model_id, scenario_id, position, record, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			modelID, id, i, string(data), now,
		)
		if err != nil {
			return fmt.Errorf("insert scenario %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save scenarios: %w", err)
	}
	return nil
}

// LoadScenarios returns the stored records of a model in saved order.
func (s *Service) LoadScenarios(ctx context.Context, modelID string) ([]map[string]any, error) {
	if _, err := s.GetModel(ctx, modelID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario_id, record FROM scenarios WHERE model_id = $1 ORDER BY position`,
		modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("load scenarios for %s: %w", modelID, err)
	}
	defer rows.Close()

	records := []map[string]any{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		var r map[string]any
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode scenario %s: %w", id, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetModel retrieves a model summary.
func (s *Service) GetModel(ctx context.Context, modelID string) (*Model, error) {
	m := &Model{}
	err := s.db.QueryRowContext(ctx,
		`SELECT m.id, m.name, m.base_weight, m.created_at, m.updated_at,
		        (SELECT COUNT(*) FROM scenarios sc WHERE sc.model_id = m.id)
		 FROM models m WHERE m.id = $1`,
		modelID,
	).Scan(&m.ID, &m.Name, &m.BaseWeight, &m.CreatedAt, &m.UpdatedAt, &m.ScenarioCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get model %s: %w", modelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", modelID, err)
	}
	return m, nil
}

// ListModels returns every stored model ordered by id.
func (s *Service) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.name, m.base_weight, m.created_at, m.updated_at,
		        (SELECT COUNT(*) FROM scenarios sc WHERE sc.model_id = m.id)
		 FROM models m ORDER BY m.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Name, &m.BaseWeight, &m.CreatedAt, &m.UpdatedAt, &m.ScenarioCount); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// SetBaseWeight stores the probability weight of a model's base scenario,
// which is not part of the exported scenario records.
func (s *Service) SetBaseWeight(ctx context.Context, modelID string, weight float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE models SET base_weight = $1, updated_at = $2 WHERE id = $3`,
		weight, s.now(), modelID,
	)
	if err != nil {
		return fmt.Errorf("set base weight for %s: %w", modelID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set base weight for %s: %w", modelID, ErrNotFound)
	}
	return nil
}

// DeleteModel removes a model with its scenarios and archive records.
// Archived blobs are left in place.
func (s *Service) DeleteModel(ctx context.Context, modelID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete model: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM scenarios WHERE model_id = $1`,
		`DELETE FROM archives WHERE model_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, modelID); err != nil {
			return fmt.Errorf("delete model %s: %w", modelID, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM models WHERE id = $1`, modelID)
	if err != nil {
		return fmt.Errorf("delete model %s: %w", modelID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete model %s: %w", modelID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete model: %w", err)
	}
	return nil
}

// RecordArchive stores an archive pointer, creating the model row when
// needed.
func (s *Service) RecordArchive(ctx context.Context, a ArchiveRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record archive: %w", err)
	}
	defer tx.Rollback()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if err := upsertModel(ctx, tx, a.ModelID, "", a.CreatedAt); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO archives (id, model_id, kind, storage_key, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ModelID, a.Kind, a.StorageKey, a.SizeBytes, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert archive %s: %w", a.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record archive: %w", err)
	}
	return nil
}

// ListArchives returns the archive records of a model, newest first.
func (s *Service) ListArchives(ctx context.Context, modelID string) ([]ArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_id, kind, storage_key, size_bytes, created_at
		 FROM archives WHERE model_id = $1 ORDER BY created_at DESC, id`,
		modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var out []ArchiveRecord
	for rows.Next() {
		var a ArchiveRecord
		if err := rows.Scan(&a.ID, &a.ModelID, &a.Kind, &a.StorageKey, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// upsertModel creates the model row or bumps its updated_at. A non-empty
// name replaces the stored one.
func upsertModel(ctx context.Context, tx *sql.Tx, modelID, name string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO models (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (id) DO UPDATE
		   SET name = CASE WHEN EXCLUDED.name = '' THEN models.name ELSE EXCLUDED.name END,
		       updated_at = EXCLUDED.updated_at`,
		modelID, name, now,
	)
	if err != nil {
		return fmt.Errorf("upsert model %s: %w", modelID, err)
	}
	return nil
}
