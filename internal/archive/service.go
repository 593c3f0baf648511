package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealmodel/dealmodel/internal/store"
	"github.com/dealmodel/dealmodel/pkg/config"
)

// Archive kinds.
const (
	KindScenarios   = "scenarios"
	KindComparison  = "comparison"
	KindSensitivity = "sensitivity"
	KindMonteCarlo  = "montecarlo"
)

// Recorder persists archive metadata. *store.Service implements it.
type Recorder interface {
	RecordArchive(ctx context.Context, rec store.ArchiveRecord) error
	ListArchives(ctx context.Context, modelID string) ([]store.ArchiveRecord, error)
}

// Service writes result blobs and records where they went.
type Service struct {
	storage  Storage
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// NewService creates an archive Service.
func NewService(storage Storage, recorder Recorder) *Service {
	return &Service{
		storage:  storage,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Archive encodes v as JSON, stores it under a fresh id and records the
// blob. A failed record leaves the blob orphaned in storage.
func (s *Service) Archive(ctx context.Context, modelID, kind string, v any) (*store.ArchiveRecord, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s archive: %w", kind, err)
	}

	rec := store.ArchiveRecord{
		ID:        s.newID(),
		ModelID:   modelID,
		Kind:      kind,
		SizeBytes: int64(len(data)),
		CreatedAt: s.now(),
	}
	rec.StorageKey = Key(modelID, kind, rec.ID)

	if err := s.storage.Put(ctx, rec.StorageKey, data); err != nil {
		return nil, fmt.Errorf("store %s archive: %w", kind, err)
	}
	if err := s.recorder.RecordArchive(ctx, rec); err != nil {
		return nil, fmt.Errorf("record %s archive: %w", kind, err)
	}
	slog.Debug("archived result", "model", modelID, "kind", kind, "key", rec.StorageKey, "bytes", rec.SizeBytes)
	return &rec, nil
}

// Load reads an archived blob back into v.
func (s *Service) Load(ctx context.Context, rec store.ArchiveRecord, v any) error {
	data, err := s.storage.Get(ctx, rec.StorageKey)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode archive %s: %w", rec.ID, err)
	}
	return nil
}

// List returns a model's archive records, newest first.
func (s *Service) List(ctx context.Context, modelID string) ([]store.ArchiveRecord, error) {
	return s.recorder.ListArchives(ctx, modelID)
}

// NewStorage builds the backend selected by cfg. An empty local directory
// falls back to defaultDir.
func NewStorage(ctx context.Context, cfg config.ArchiveConfig, defaultDir string) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = defaultDir
		}
		return NewLocalStorage(dir), nil
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Prefix:    cfg.Prefix,
		})
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
