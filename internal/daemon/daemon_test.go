package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"lbfeed/internal/config"
	"lbfeed/internal/daemon"
	"lbfeed/internal/listenbrainz"
	"lbfeed/internal/logging"
	"lbfeed/internal/musicbrainz"
	"lbfeed/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	fetcher, err := musicbrainz.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("musicbrainz client: %v", err)
	}
	source, err := listenbrainz.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("listenbrainz client: %v", err)
	}
	d, err := daemon.New(cfg, daemon.Dependencies{
		Store:    testsupport.MustOpenStore(t, cfg),
		Fetcher:  fetcher,
		Source:   source,
		Interval: testsupport.ResolverInterval,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestDaemonServesFeedsFromCache(t *testing.T) {
	upstream := testsupport.NewUpstream(t)
	upstream.AddFreshRelease("alice", "r-1", "First", "Solo")
	upstream.AddFreshRelease("alice", "r-2", "Second", "Duo")
	upstream.SetRelease("r-1", `{"cover-art-archive":{"front":true},"relations":[{"target-type":"url","type":"bandcamp","url":{"resource":"https://band.example/r-1"}}]}`)
	upstream.SetRelease("r-2", `{"cover-art-archive":{"front":false},"relations":[]}`)

	cfg := testsupport.NewConfig(t,
		testsupport.WithListenBrainzURL(upstream.ListenBrainzURL()),
		testsupport.WithMusicBrainzURL(upstream.MusicBrainzURL()),
	)
	d := newDaemon(t, cfg)
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	base := "http://" + d.Addr()

	for i := 0; i < 2; i++ {
		code, body := get(t, base+"/feed?user=alice&days=10")
		if code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d: %s", i, code, body)
		}
		for _, want := range []string{"Releases for alice", "release/r-1", "release/r-2", "band.example/r-1"} {
			if !strings.Contains(body, want) {
				t.Fatalf("request %d: feed missing %q", i, want)
			}
		}
	}
	if calls := upstream.MusicBrainzCalls(); len(calls) != 2 {
		t.Fatalf("expected one metadata call per release across both requests, got %v", calls)
	}

	code, body := get(t, base+"/healthz")
	if code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", code)
	}
	var status daemon.Status
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if !status.Running || status.Records != 2 || status.StoreBackend != "sqlite" {
		t.Fatalf("unexpected status %+v", status)
	}

	code, body = get(t, base+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, `lbfeed_resolver_cache_lookups_total{result="hit"} 2`) {
		t.Fatalf("metrics missing cache hits (%d):\n%s", code, body)
	}
}

func TestDaemonUpstreamFailureIsBadGateway(t *testing.T) {
	upstream := testsupport.NewUpstream(t)
	upstream.AddFreshRelease("bob", "r-missing", "Gone", "Nobody")

	cfg := testsupport.NewConfig(t,
		testsupport.WithListenBrainzURL(upstream.ListenBrainzURL()),
		testsupport.WithMusicBrainzURL(upstream.MusicBrainzURL()),
	)
	d := newDaemon(t, cfg)
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	code, body := get(t, "http://"+d.Addr()+"/feed?user=bob")
	if code != http.StatusBadGateway || !strings.Contains(body, "decode error") {
		t.Fatalf("expected 502 with decode error, got %d: %s", code, body)
	}
	if code, _ := get(t, "http://"+d.Addr()+"/feed?user=nobody"); code != http.StatusBadRequest {
		t.Fatalf("unknown user: expected 400, got %d", code)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := newDaemon(t, cfg)
	t.Cleanup(func() { _ = second.Close() })
	if err := second.Start(context.Background()); !errors.Is(err, daemon.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	first.Stop()
	if err := first.Start(context.Background()); err == nil {
		t.Fatal("expected restart to be refused")
	}
	lock, err := daemon.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("lock should be free after Stop: %v", err)
	}
	_ = lock.Unlock()
}
