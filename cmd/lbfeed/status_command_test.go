package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"lbfeed/internal/daemonrun"
	"lbfeed/internal/logging"
	"lbfeed/internal/releasestore"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	text.EnableColors()
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	plain := renderStatusLine("Daemon", statusOK, "Running", false)
	if got == plain || !strings.Contains(got, plain) {
		t.Fatalf("expected %q wrapped in color codes, got %q", plain, got)
	}
	if !strings.HasPrefix(got, "\x1b[") {
		t.Fatalf("expected an escape prefix, got %q", got)
	}
}

func TestDialAddress(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8000": "127.0.0.1:8000",
		"0.0.0.0:8000":   "127.0.0.1:8000",
		":9000":          "127.0.0.1:9000",
		"[::]:9000":      "127.0.0.1:9000",
		"no-port":        "no-port",
	}
	for bind, want := range cases {
		if got := dialAddress(bind); got != want {
			t.Fatalf("dialAddress(%q) = %q, want %q", bind, got, want)
		}
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[INFO] Not running")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "MusicBrainz API:")
}

func TestStatusReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seed(t, releasestore.Record{ID: "rel-a"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, err := daemonrun.Build(ctx, env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer d.Close()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.cfg.Server.Bind = d.Addr()
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !report.DaemonReachable || report.Daemon == nil || !report.Daemon.Running {
		t.Fatalf("expected running daemon, got %+v", report)
	}
	if report.Daemon.Records != 1 || report.Daemon.StoreBackend != "sqlite" {
		t.Fatalf("unexpected store status %+v", report.Daemon)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Serving on "+d.Addr())
	requireContains(t, out, "1 in sqlite")

	if _, _, err := runCLI(t, []string{"cache", "count"}, env.configPath); err == nil {
		t.Fatal("expected cache command to refuse while the daemon runs")
	}
}
