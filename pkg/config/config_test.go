package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.Variation != 0.2 {
		t.Errorf("expected default variation 0.2, got %v", cfg.Engine.Variation)
	}
	if cfg.Engine.Steps != 5 {
		t.Errorf("expected default steps 5, got %d", cfg.Engine.Steps)
	}
	if cfg.Engine.Iterations != 1000 {
		t.Errorf("expected default iterations 1000, got %d", cfg.Engine.Iterations)
	}
	if cfg.Store.Driver != "sqlite3" {
		t.Errorf("expected default driver sqlite3, got %q", cfg.Store.Driver)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.Size != 64 {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		missing bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "non-existent file returns defaults",
			missing: true,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Engine.Steps != 5 {
					t.Errorf("expected default steps 5, got %d", cfg.Engine.Steps)
				}
				if cfg.Archive.Backend != "local" {
					t.Errorf("expected default archive backend, got %q", cfg.Archive.Backend)
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
engine:
  variation: 0.1
  iterations: 250
  seed: 42
  drivers:
    - revenue_growth
    - exit_multiple
store:
  driver: postgres
  dsn: postgres://localhost/deals
cache:
  backend: redis
  redis_addr: localhost:6379
  ttl: 10m
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Engine.Variation != 0.1 {
					t.Errorf("expected variation 0.1, got %v", cfg.Engine.Variation)
				}
				if cfg.Engine.Iterations != 250 || cfg.Engine.Seed != 42 {
					t.Errorf("unexpected engine config: %+v", cfg.Engine)
				}
				if cfg.Engine.Steps != 5 {
					t.Errorf("unset steps should keep default, got %d", cfg.Engine.Steps)
				}
				if len(cfg.Engine.Drivers) != 2 {
					t.Errorf("expected 2 drivers, got %d", len(cfg.Engine.Drivers))
				}
				if cfg.Store.Driver != "postgres" {
					t.Errorf("expected driver postgres, got %q", cfg.Store.Driver)
				}
				if cfg.Cache.TTL != 10*time.Minute {
					t.Errorf("expected ttl 10m, got %v", cfg.Cache.TTL)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")

			if !tc.missing {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("write test config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":          "postgres://db:5432/deals?sslmode=disable",
		"REDIS_ADDR":            "cache:6379",
		"REDIS_DB":              "3",
		"GCS_BUCKET":            "deal-archive",
		"AWS_ACCESS_KEY_ID":     "AKIA",
		"AWS_SECRET_ACCESS_KEY": "secret",
	}
	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != env["DATABASE_URL"] {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "cache:6379" || cfg.Cache.RedisDB != 3 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Archive.Backend != "gcs" || cfg.Archive.Bucket != "deal-archive" {
		t.Errorf("unexpected archive config: %+v", cfg.Archive)
	}
	if cfg.Archive.AccessKey != "AKIA" || cfg.Archive.SecretKey != "secret" {
		t.Error("expected AWS credentials from the environment")
	}

	bad := func(k string) string {
		if k == "REDIS_DB" {
			return "two"
		}
		return ""
	}
	if err := ApplyEnv(DefaultConfig(), bad); err == nil {
		t.Error("expected error for non-numeric REDIS_DB")
	}
}

func TestApplyEnvSQLiteDSN(t *testing.T) {
	cfg := DefaultConfig()
	getenv := func(k string) string {
		if k == "DATABASE_URL" {
			return "file:deals.db"
		}
		return ""
	}
	if err := ApplyEnv(cfg, getenv); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Store.Driver != "sqlite3" || cfg.Store.DSN != "file:deals.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
}

func TestDirectoryFunctions(t *testing.T) {
	project := "/home/alice/deals/atlas"
	slug := "deals_atlas"

	db := DatabasePath(project)
	archive := ArchiveDir(project)

	if !strings.HasSuffix(db, filepath.Join(slug, "dealmodel.db")) {
		t.Errorf("DatabasePath should end with %q, got %q", filepath.Join(slug, "dealmodel.db"), db)
	}
	if !strings.HasSuffix(archive, filepath.Join(slug, "archive")) {
		t.Errorf("ArchiveDir should end with %q, got %q", filepath.Join(slug, "archive"), archive)
	}
	if !strings.Contains(CacheDir(project), filepath.Join(".cache", "dealmodel")) {
		t.Errorf("CacheDir = %q", CacheDir(project))
	}
}

func TestProjectSlug(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "normal path", path: "/home/user/deals/atlas", want: "deals_atlas"},
		{name: "short path", path: "/atlas", want: "/_atlas"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := projectSlug(tc.path); got != tc.want {
				t.Errorf("projectSlug(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	writeConfig := func(t *testing.T, root string) string {
		t.Helper()
		configDir := filepath.Join(root, ".dealmodel")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		return configPath
	}

	t.Run("found in current directory", func(t *testing.T) {
		root := t.TempDir()
		configPath := writeConfig(t, root)
		if got := FindConfigFile(root); got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("found in parent directory", func(t *testing.T) {
		root := t.TempDir()
		configPath := writeConfig(t, root)
		sub := filepath.Join(root, "a", "b", "c")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("create sub: %v", err)
		}
		if got := FindConfigFile(sub); got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if got := FindConfigFile(t.TempDir()); got != "" {
			t.Errorf("FindConfigFile = %q, want empty", got)
		}
	})
}
