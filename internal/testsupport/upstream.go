package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Upstream fakes both the ListenBrainz and MusicBrainz endpoints on one
// httptest server. ListenBrainz lives under /lb/ and MusicBrainz under /mb/.
type Upstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	fresh    map[string][]map[string]any
	releases map[string]string
	calls    []string
}

// NewUpstream starts the fake server and registers cleanup.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()
	u := &Upstream{
		fresh:    make(map[string][]map[string]any),
		releases: make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/lb/user/", u.handleFresh)
	mux.HandleFunc("/mb/release/", u.handleRelease)
	u.Server = httptest.NewServer(mux)
	t.Cleanup(u.Server.Close)
	return u
}

// ListenBrainzURL returns the base URL for the listening-history client.
func (u *Upstream) ListenBrainzURL() string { return u.Server.URL + "/lb/" }

// MusicBrainzURL returns the base URL for the metadata client.
func (u *Upstream) MusicBrainzURL() string { return u.Server.URL + "/mb/" }

// AddFreshRelease appends a release to user's fresh releases.
func (u *Upstream) AddFreshRelease(user, mbid, name, artist string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fresh[user] = append(u.fresh[user], map[string]any{
		"artist_credit_name":         artist,
		"artist_mbids":               []string{"artist-" + mbid},
		"listen_count":               0,
		"release_date":               "2024-01-01",
		"release_group_mbid":         "rg-" + mbid,
		"release_group_primary_type": "Album",
		"release_mbid":               mbid,
		"release_name":               name,
		"release_tags":               []string{},
	})
}

// SetRelease sets the raw MusicBrainz JSON document served for mbid.
func (u *Upstream) SetRelease(mbid, document string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.releases[mbid] = document
}

// MusicBrainzCalls returns the release ids requested so far, in order.
func (u *Upstream) MusicBrainzCalls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

func (u *Upstream) handleFresh(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/lb/user/"), "/fresh_releases")
	u.mu.Lock()
	releases, ok := u.fresh[user]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"payload": map[string]any{"releases": releases}})
}

func (u *Upstream) handleRelease(w http.ResponseWriter, r *http.Request) {
	mbid := strings.TrimPrefix(r.URL.Path, "/mb/release/")
	u.mu.Lock()
	u.calls = append(u.calls, mbid)
	document, ok := u.releases[mbid]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(document))
}
