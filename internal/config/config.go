package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server contains configuration for the HTTP feed endpoint.
type Server struct {
	Bind                  string `toml:"bind"`
	DefaultDays           int    `toml:"default_days"`
	MaxDays               int    `toml:"max_days"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Store selects and configures the persistent release store.
type Store struct {
	Backend        string `toml:"backend"` // "sqlite" or "redis"
	SQLitePath     string `toml:"sqlite_path"`
	RedisAddr      string `toml:"redis_addr"`
	RedisDB        int    `toml:"redis_db"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`
	MemoSize       int    `toml:"memo_size"` // 0 disables the in-process memo
}

// MusicBrainz contains configuration for the rate-limited metadata service.
type MusicBrainz struct {
	BaseURL            string `toml:"base_url"`
	UserAgent          string `toml:"user_agent"`
	MinIntervalMillis  int    `toml:"min_interval_ms"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

// ListenBrainz contains configuration for the listening-history service.
type ListenBrainz struct {
	BaseURL            string `toml:"base_url"`
	FrontURL           string `toml:"front_url"`
	CoverArtURL        string `toml:"cover_art_url"`
	UserAgent          string `toml:"user_agent"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

// Resolver contains configuration for the release metadata resolver.
type Resolver struct {
	QueueCapacity       int `toml:"queue_capacity"`
	BatchTimeoutSeconds int `toml:"batch_timeout_seconds"` // 0 means no deadline
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lbfeed.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Server: HTTP bind address and feed request limits
//   - Store: release store backend (sqlite or redis) and memo size
//   - MusicBrainz: metadata service endpoint and rate limit
//   - ListenBrainz: listening-history endpoint and link bases
//   - Resolver: queue capacity and batch deadline
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Server       Server       `toml:"server"`
	Store        Store        `toml:"store"`
	MusicBrainz  MusicBrainz  `toml:"musicbrainz"`
	ListenBrainz ListenBrainz `toml:"listenbrainz"`
	Resolver     Resolver     `toml:"resolver"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lbfeed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Store.Backend == BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(c.Store.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file guarding the release store.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "lbfeed.lock")
}

// MinInterval returns the enforced spacing between metadata service calls.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.MusicBrainz.MinIntervalMillis) * time.Millisecond
}

// BatchTimeout returns the default resolver batch deadline, or zero when unset.
func (c *Config) BatchTimeout() time.Duration {
	if c.Resolver.BatchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Resolver.BatchTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request deadline applied to feed requests.
func (c *Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
