package testsupport

import (
	"context"
	"testing"

	"lbfeed/internal/config"
	"lbfeed/internal/releasestore"
)

// MustOpenStore opens the configured release store for tests and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) releasestore.Backend {
	t.Helper()
	store, err := releasestore.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("releasestore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustInsert seeds records into store.
func MustInsert(t testing.TB, store releasestore.Store, records ...releasestore.Record) {
	t.Helper()
	for _, record := range records {
		if err := store.Insert(context.Background(), record); err != nil {
			t.Fatalf("insert %s: %v", record.ID, err)
		}
	}
}
