package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"lbfeed/internal/config"
)

// ResolverInterval is the call spacing tests hand to resolvers directly.
// Configuration never goes below one second.
const ResolverInterval = 20 * time.Millisecond

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The store defaults to SQLite inside the temp dir with the memo disabled, and
// the API binds an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Store.SQLitePath = filepath.Join(base, "data", "releases.db")
	cfgVal.Store.MemoSize = 0
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMusicBrainzURL points the metadata client at baseURL.
func WithMusicBrainzURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MusicBrainz.BaseURL = baseURL
	}
}

// WithListenBrainzURL points the listening-history client at baseURL.
func WithListenBrainzURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ListenBrainz.BaseURL = baseURL
	}
}

// WithRedis switches the store backend to the Redis server at addr.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.BackendRedis
		b.cfg.Store.RedisAddr = addr
	}
}

// WithMemo enables the in-process memo with the given size.
func WithMemo(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.MemoSize = size
	}
}
