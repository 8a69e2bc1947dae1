package releasestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lbfeed/internal/releasestore"
	"lbfeed/internal/services"
)

// exerciseBackend runs the behaviour every Backend must share.
func exerciseBackend(t *testing.T, backend releasestore.Backend) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := backend.Lookup(ctx, "rel-missing"); err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}

	bare := releasestore.Record{ID: "rel-bare"}
	rich := releasestore.Record{
		ID:               "rel-rich",
		HasFrontCoverArt: true,
		ExternalLinks: []releasestore.Link{
			{RelationType: "official homepage", URL: "https://example.com"},
			{RelationType: "Unknown type", URL: "https://other.example"},
		},
	}
	for _, record := range []releasestore.Record{bare, rich} {
		if err := backend.Insert(ctx, record); err != nil {
			t.Fatalf("Insert %s: %v", record.ID, err)
		}
	}

	for _, want := range []releasestore.Record{bare, rich} {
		got, found, err := backend.Lookup(ctx, want.ID)
		if err != nil || !found {
			t.Fatalf("Lookup %s: found=%v err=%v", want.ID, found, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("record mismatch for %s (-want +got):\n%s", want.ID, diff)
		}
	}

	err := backend.Insert(ctx, releasestore.Record{ID: "rel-rich"})
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !errors.Is(err, services.ErrStoreIO) {
		t.Fatalf("expected store i/o marker, got %v", err)
	}
	got, _, err := backend.Lookup(ctx, "rel-rich")
	if err != nil {
		t.Fatalf("Lookup after duplicate: %v", err)
	}
	if diff := cmp.Diff(rich, got); diff != "" {
		t.Fatalf("duplicate insert modified record (-want +got):\n%s", diff)
	}

	count, err := backend.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count = %d, %v; want 2", count, err)
	}
	entries, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.CachedAt.IsZero() {
			t.Fatalf("expected cached_at for %s", entry.ID)
		}
	}

	removed, err := backend.Remove(ctx, "rel-bare")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v; want true", removed, err)
	}
	removed, err = backend.Remove(ctx, "rel-bare")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v; want false", removed, err)
	}
	if _, found, _ := backend.Lookup(ctx, "rel-bare"); found {
		t.Fatal("expected removed record to be absent")
	}

	cleared, err := backend.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear = %d, %v; want 1", cleared, err)
	}
	if count, _ := backend.Count(ctx); count != 0 {
		t.Fatalf("expected empty store after clear, got %d", count)
	}
}
