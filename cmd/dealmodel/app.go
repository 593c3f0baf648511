package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dealmodel/dealmodel/internal/archive"
	"github.com/dealmodel/dealmodel/internal/platform"
	"github.com/dealmodel/dealmodel/internal/resultcache"
	"github.com/dealmodel/dealmodel/internal/store"
	"github.com/dealmodel/dealmodel/pkg/config"
	"github.com/dealmodel/dealmodel/pkg/models/lbo"
	"github.com/dealmodel/dealmodel/pkg/scenario"
	"github.com/dealmodel/dealmodel/pkg/surface"
)

// app carries the resolved configuration and deal for one command run.
type app struct {
	g       *globalOpts
	root    string
	cfg     *config.Config
	inputs  lbo.Inputs
	out     io.Writer
	render  surface.Renderer
	closers []func() error
}

func newApp(cmd *cobra.Command, g *globalOpts) (*app, error) {
	root := g.project
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg := loadConfig(root, g.configPath)
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if g.metricsPath == "" {
		g.metricsPath = cfg.Telemetry.TextfilePath
	}

	inputs := lbo.DefaultInputs()
	if g.inputsPath != "" {
		inputs, err = lbo.LoadInputs(g.inputsPath)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		g:      g,
		root:   root,
		cfg:    cfg,
		inputs: inputs,
		out:    cmd.OutOrStdout(),
		render: surface.New(g.jsonOutput),
	}, nil
}

// loadConfig reads the explicit config file, or the nearest
// .dealmodel/config.yaml, falling back to defaults.
func loadConfig(root, explicit string) *config.Config {
	path := firstNonEmpty(explicit, config.FindConfigFile(root))
	if path == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config %s: %v\n", path, err)
		return config.DefaultConfig()
	}
	return cfg
}

// Close releases everything opened during the run.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Debug("close failed", "error", err)
		}
	}
	a.closers = nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// modelID is the key scenarios are stored under: the --model flag, or a
// slug of the deal name.
func (a *app) modelID() string {
	if a.g.modelID != "" {
		return a.g.modelID
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(a.inputs.Name), "-"), "-")
	return firstNonEmpty(slug, "default")
}

// inputsFingerprint changes whenever the base inputs change, so cached
// results from an older inputs file are never reused.
func (a *app) inputsFingerprint() string {
	data, err := json.Marshal(a.inputs)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

func (a *app) openStore(ctx context.Context) (*store.Service, error) {
	driver := a.cfg.Store.Driver
	dsn := a.cfg.Store.DSN
	if driver == platform.DriverSQLite && dsn == "" {
		dsn = config.DatabasePath(a.root)
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := platform.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	slog.Debug("opened store", "driver", driver)
	return store.NewService(db), nil
}

func (a *app) resultCache() (scenario.ResultCache, error) {
	c := a.cfg.Cache
	switch c.Backend {
	case "", "memory":
		return scenario.NewLRUCache(c.Size), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		return resultcache.New(client, a.modelID()+"@"+a.inputsFingerprint(), c.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}

// newManager builds a scenario manager over the deal inputs. With a store
// the model's saved scenarios and base weight are loaded into it.
func (a *app) newManager(ctx context.Context, st *store.Service) (*scenario.Manager[lbo.Inputs], error) {
	cache, err := a.resultCache()
	if err != nil {
		return nil, err
	}
	opts := []scenario.Option[lbo.Inputs]{scenario.WithResultCache[lbo.Inputs](cache)}
	if a.cfg.Engine.Seed != 0 {
		opts = append(opts, scenario.WithSeed[lbo.Inputs](a.cfg.Engine.Seed))
	}
	m, err := scenario.NewManager(a.inputs, lbo.Registry(), opts...)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return m, nil
	}

	id := a.modelID()
	records, err := st.LoadScenarios(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := m.ImportScenarios(records); err != nil {
		return nil, fmt.Errorf("loading scenarios for %s: %w", id, err)
	}
	model, err := st.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.SetBaseWeight(model.BaseWeight); err != nil {
		return nil, err
	}
	slog.Debug("loaded scenarios", "model", id, "count", len(records))
	return m, nil
}

// saveManager replaces the stored scenarios with the manager's.
func (a *app) saveManager(ctx context.Context, st *store.Service, m *scenario.Manager[lbo.Inputs]) error {
	id := a.modelID()
	if err := st.SaveScenarios(ctx, id, a.inputs.Name, m.ExportScenarios()); err != nil {
		return err
	}
	base, err := m.Scenario(scenario.BaseScenarioID)
	if err != nil {
		return err
	}
	return st.SetBaseWeight(ctx, id, base.ProbabilityWeight)
}

func (a *app) archiveService(ctx context.Context, st *store.Service) (*archive.Service, error) {
	storage, err := archive.NewStorage(ctx, a.cfg.Archive, config.ArchiveDir(a.root))
	if err != nil {
		return nil, err
	}
	if c, ok := storage.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	return archive.NewService(storage, st), nil
}

// archiveResult stores v under the model and reports where it went. A nil
// st opens the configured store.
func (a *app) archiveResult(ctx context.Context, st *store.Service, kind string, v any) error {
	if st == nil {
		var err error
		if st, err = a.openStore(ctx); err != nil {
			return err
		}
	}
	svc, err := a.archiveService(ctx, st)
	if err != nil {
		return err
	}
	rec, err := svc.Archive(ctx, a.modelID(), kind, v)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Archived %s result as %s\n", kind, rec.StorageKey)
	return nil
}

// archiveRendered archives the JSON rendering of a result, which encodes
// failed points as null instead of NaN.
func (a *app) archiveRendered(ctx context.Context, st *store.Service, kind string, render func(r surface.Renderer, w io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&surface.JSONRenderer{}, &buf); err != nil {
		return err
	}
	return a.archiveResult(ctx, st, kind, json.RawMessage(buf.Bytes()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseAssignments turns key=value pairs into assumption overrides. Values
// are decoded as YAML scalars or flow sequences, so "0.1", "true" and
// "[0.05, 0.04]" keep their types.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}
