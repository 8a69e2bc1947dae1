package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lbfeed/internal/config"
	"lbfeed/internal/releasestore"
	"lbfeed/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	upstream   *testsupport.Upstream
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	upstream := testsupport.NewUpstream(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithMusicBrainzURL(upstream.MusicBrainzURL()),
		testsupport.WithListenBrainzURL(upstream.ListenBrainzURL()),
	)

	configPath := filepath.Join(homeDir, ".config", "lbfeed", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, upstream: upstream, configPath: configPath}
}

// seed inserts records through a short-lived store handle so the CLI can take
// the lock afterwards.
func (e *cliTestEnv) seed(t *testing.T, records ...releasestore.Record) {
	t.Helper()
	store := testsupport.MustOpenStore(t, e.cfg)
	testsupport.MustInsert(t, store, records...)
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
