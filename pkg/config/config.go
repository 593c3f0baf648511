// Package config handles loading and managing dealmodel configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for dealmodel.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig holds analysis defaults used when a command does not
// override them.
type EngineConfig struct {
	Variation     float64  `yaml:"variation"` // fraction, 0.2 = ±20%
	Steps         int      `yaml:"steps"`
	Iterations    int      `yaml:"iterations"`
	Seed          uint64   `yaml:"seed"` // 0 = time-based
	UpsidePct     float64  `yaml:"upside_pct"`
	DownsidePct   float64  `yaml:"downside_pct"`
	Drivers       []string `yaml:"drivers"`
	MaxTraceNodes int      `yaml:"max_trace_nodes"`
}

// StoreConfig selects the scenario store database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite3
	DSN    string `yaml:"dsn"`    // empty sqlite3 DSN = file under CacheDir
}

// ArchiveConfig selects the blob backend for archived results.
type ArchiveConfig struct {
	Backend   string `yaml:"backend"` // local | s3 | gcs
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// CacheConfig selects the scenario result cache.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory | redis
	Size          int           `yaml:"size"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"-"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// TelemetryConfig controls the metrics dump written after each command.
type TelemetryConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Variation:     0.2,
			Steps:         5,
			Iterations:    1000,
			UpsidePct:     0.15,
			DownsidePct:   0.15,
			MaxTraceNodes: 500,
		},
		Store: StoreConfig{
			Driver: "sqlite3",
		},
		Archive: ArchiveConfig{
			Backend: "local",
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    64,
			TTL:     time.Hour,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment settings onto cfg. Credentials only come
// from the environment, never from the YAML file.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			cfg.Store.Driver = "postgres"
		}
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.RedisAddr = v
	}
	cfg.Cache.RedisPassword = getenv("REDIS_PASSWORD")
	if v := getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Cache.RedisDB = db
	}

	if v := getenv("ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := getenv("GCS_BUCKET"); v != "" {
		cfg.Archive.Backend = "gcs"
		cfg.Archive.Bucket = v
	}
	if v := getenv("AWS_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := getenv("AWS_ENDPOINT_URL_S3"); v != "" {
		cfg.Archive.Endpoint = v
	}
	cfg.Archive.AccessKey = getenv("AWS_ACCESS_KEY_ID")
	cfg.Archive.SecretKey = getenv("AWS_SECRET_ACCESS_KEY")
	return nil
}

// FindConfigFile looks for .dealmodel/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".dealmodel", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given project path.
// Uses ~/.cache/dealmodel/<project-slug>/ to avoid polluting the project.
func CacheDir(projectPath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "dealmodel", projectSlug(projectPath))
}

// DatabasePath returns the default SQLite scenario store for a project.
func DatabasePath(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "dealmodel.db")
}

// ArchiveDir returns the default local archive directory for a project.
func ArchiveDir(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "archive")
}

// projectSlug creates a filesystem-safe identifier from a project path.
// Uses the last two path components (e.g., "deals_atlas" from "/home/user/deals/atlas").
func projectSlug(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}
