package releasestore

import (
	"context"
	"time"
)

// Link is one typed external link reported for a release.
type Link struct {
	RelationType string `json:"type"`
	URL          string `json:"url"`
}

// Record is the cached enrichment result for one release.
type Record struct {
	ID               string `json:"id"`
	HasFrontCoverArt bool   `json:"has_front_cover_art"`
	ExternalLinks    []Link `json:"external_links"`
}

// Clone returns a deep copy so callers cannot alias cached link slices.
func (r Record) Clone() Record {
	if len(r.ExternalLinks) == 0 {
		r.ExternalLinks = nil
		return r
	}
	links := make([]Link, len(r.ExternalLinks))
	copy(links, r.ExternalLinks)
	r.ExternalLinks = links
	return r
}

// Entry pairs a stored record with the time it was cached.
type Entry struct {
	Record
	CachedAt time.Time `json:"cached_at"`
}

// Store is the contract the resolver depends on: point lookup and point insert.
//
// Lookup reports found=false with a nil error on a miss. Insert must only be
// called for identifiers that Lookup just reported absent.
type Store interface {
	Lookup(ctx context.Context, id string) (Record, bool, error)
	Insert(ctx context.Context, record Record) error
}

// Backend is a Store with the maintenance operations used by the CLI and the
// health endpoint.
type Backend interface {
	Store
	// List returns all entries, newest first.
	List(ctx context.Context) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	// Remove deletes one record and reports whether it existed.
	Remove(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) (int, error)
	// Name identifies the backend in status output.
	Name() string
	Close() error
}
