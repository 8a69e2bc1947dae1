package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"lbfeed/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "lbfeed")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Store.SQLitePath != filepath.Join(wantData, "releases.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Store.SQLitePath)
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Store.Backend)
	}
	if cfg.MinInterval() != time.Second {
		t.Fatalf("expected 1s metadata interval, got %s", cfg.MinInterval())
	}
	if cfg.Resolver.QueueCapacity != 100 {
		t.Fatalf("expected queue capacity 100, got %d", cfg.Resolver.QueueCapacity)
	}
	if cfg.BatchTimeout() != 0 {
		t.Fatalf("expected no batch timeout by default, got %s", cfg.BatchTimeout())
	}
	if !strings.HasSuffix(cfg.MusicBrainz.BaseURL, "/") {
		t.Fatalf("expected trailing slash on base url, got %q", cfg.MusicBrainz.BaseURL)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lbfeed.toml")
	contents := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[store]
backend = "redis"
redis_addr = "10.0.0.5:6379"
memo_size = 0

[musicbrainz]
base_url = "http://mb.example.test/ws/2"
min_interval_ms = 1500

[resolver]
queue_capacity = 8
batch_timeout_seconds = 45

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Store.Backend != config.BackendRedis || cfg.Store.RedisAddr != "10.0.0.5:6379" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.MemoSize != 0 {
		t.Fatalf("expected memo disabled, got %d", cfg.Store.MemoSize)
	}
	if cfg.MusicBrainz.BaseURL != "http://mb.example.test/ws/2/" {
		t.Fatalf("unexpected musicbrainz base url: %q", cfg.MusicBrainz.BaseURL)
	}
	if cfg.MinInterval() != 1500*time.Millisecond {
		t.Fatalf("unexpected interval: %s", cfg.MinInterval())
	}
	if cfg.BatchTimeout() != 45*time.Second {
		t.Fatalf("unexpected batch timeout: %s", cfg.BatchTimeout())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
	if cfg.Paths.LogDir != filepath.Join(dir, "data", "logs") {
		t.Fatalf("expected log dir under data dir, got %q", cfg.Paths.LogDir)
	}
}

func TestRedisAddrEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LBFEED_REDIS_ADDR", "redis.internal:6380")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.RedisAddr != "redis.internal:6380" {
		t.Fatalf("expected env redis addr, got %q", cfg.Store.RedisAddr)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"interval", func(c *config.Config) { c.MusicBrainz.MinIntervalMillis = 0 }, "min_interval_ms"},
		{"interval below floor", func(c *config.Config) { c.MusicBrainz.MinIntervalMillis = 100 }, "min_interval_ms must be at least 1000"},
		{"interval just below floor", func(c *config.Config) { c.MusicBrainz.MinIntervalMillis = 999 }, "min_interval_ms"},
		{"queue", func(c *config.Config) { c.Resolver.QueueCapacity = 0 }, "queue_capacity"},
		{"days", func(c *config.Config) { c.Server.MaxDays = 1 }, "max_days"},
		{"url", func(c *config.Config) { c.MusicBrainz.BaseURL = "not a url/" }, "musicbrainz.base_url"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "releases.db")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.MusicBrainz.MinIntervalMillis != 1000 {
		t.Fatalf("expected sample interval 1000ms, got %d", decoded.MusicBrainz.MinIntervalMillis)
	}
	if decoded.Store.Backend != config.BackendSQLite {
		t.Fatalf("expected sample backend sqlite, got %q", decoded.Store.Backend)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := config.Default()
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(encoded, "[musicbrainz]") {
		t.Fatalf("expected musicbrainz section in output:\n%s", encoded)
	}
}
