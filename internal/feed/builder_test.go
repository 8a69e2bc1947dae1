package feed_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"lbfeed/internal/feed"
	"lbfeed/internal/listenbrainz"
	"lbfeed/internal/releasestore"
	"lbfeed/internal/services"
)

type stubSource struct {
	releases []listenbrainz.Release
	err      error
}

func (s stubSource) FreshReleases(context.Context, string, int) ([]listenbrainz.Release, error) {
	return s.releases, s.err
}

func (s stubSource) FreshReleasesURL(user string) string {
	return "https://api.example/1/user/" + user + "/fresh_releases"
}

type stubResolver struct {
	records map[string]releasestore.Record
	err     error
	batches [][]string
	short   bool
}

func (s *stubResolver) Submit(_ context.Context, ids []string) ([]releasestore.Record, error) {
	s.batches = append(s.batches, ids)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]releasestore.Record, 0, len(ids))
	for _, id := range ids {
		record, ok := s.records[id]
		if !ok {
			record = releasestore.Record{ID: id}
		}
		out = append(out, record)
	}
	if s.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func sampleReleases() []listenbrainz.Release {
	return []listenbrainz.Release{
		{
			ArtistCreditName:        "Solo <Artist>",
			ArtistMBIDs:             []string{"a-1"},
			ReleaseDate:             "2024-05-01",
			ReleaseGroupPrimaryType: strPtr("Album"),
			ReleaseMBID:             "r-1",
			ReleaseName:             "First & Best",
		},
		{
			ArtistCreditName: "A feat. B",
			ArtistMBIDs:      []string{"a-2", "a-3"},
			ReleaseDate:      "2024-05-03",
			ReleaseMBID:      "r-2",
			ReleaseName:      "Second",
		},
	}
}

func newBuilder(t *testing.T, source feed.ReleaseSource, resolver feed.Submitter) *feed.Builder {
	t.Helper()
	builder, err := feed.NewBuilder(source, resolver, feed.Options{
		FrontURL:    "https://lb.example",
		CoverArtURL: "https://caa.example/release/",
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return builder
}

func parseHTML(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestBuildZipsRecordsWithReleases(t *testing.T) {
	resolver := &stubResolver{records: map[string]releasestore.Record{
		"r-1": {
			ID:               "r-1",
			HasFrontCoverArt: true,
			ExternalLinks: []releasestore.Link{
				{RelationType: "official homepage", URL: "https://example.com/?a=1&b=2"},
				{RelationType: "Unknown type", URL: "https://other.example"},
			},
		},
	}}
	channel, err := newBuilder(t, stubSource{releases: sampleReleases()}, resolver).Build(context.Background(), "alice", 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(resolver.batches) != 1 || strings.Join(resolver.batches[0], ",") != "r-1,r-2" {
		t.Fatalf("expected one ordered batch, got %v", resolver.batches)
	}
	if channel.Title != "Releases for alice" || channel.Language != "en-US" {
		t.Fatalf("unexpected channel header: %q %q", channel.Title, channel.Language)
	}
	if channel.Link != "https://api.example/1/user/alice/fresh_releases" {
		t.Fatalf("unexpected channel link %q", channel.Link)
	}
	if channel.Image == nil || !strings.Contains(channel.Image.Url, "listenbrainz-logo") {
		t.Fatalf("expected logo image, got %+v", channel.Image)
	}
	if len(channel.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(channel.Items))
	}

	first := channel.Items[0]
	if first.Link != "https://lb.example/release/r-1" || first.Guid == nil || first.Guid.Id != first.Link || first.Guid.IsPermaLink != "true" {
		t.Fatalf("unexpected link/guid: %q %+v", first.Link, first.Guid)
	}
	if first.Category != "Album" || first.PubDate != "2024-05-01" || first.Title != "First & Best" {
		t.Fatalf("unexpected item fields: %+v", first)
	}

	desc := parseHTML(t, first.Description)
	if src, _ := desc.Find("img").Attr("src"); src != "https://caa.example/release/r-1/front-250" {
		t.Fatalf("unexpected thumbnail %q", src)
	}
	if got := desc.Find("h3").Text(); got != "By Solo <Artist>" {
		t.Fatalf("unexpected byline %q", got)
	}
	items := desc.Find("ul li")
	if items.Length() != 2 {
		t.Fatalf("expected 2 links, got %d", items.Length())
	}
	if got := items.First().Text(); got != "Official Homepage: https://example.com/?a=1&b=2" {
		t.Fatalf("unexpected link text %q", got)
	}
	if href, _ := items.First().Find("a").Attr("href"); href != "https://example.com/?a=1&b=2" {
		t.Fatalf("unexpected href %q", href)
	}

	content := parseHTML(t, first.Content.Content)
	if href, _ := content.Find("h3 a").Attr("href"); href != "https://lb.example/artist/a-1" {
		t.Fatalf("expected single artist link, got %q", href)
	}
	if src, _ := content.Find("img").Attr("src"); src != "https://caa.example/release/r-1/front-500" {
		t.Fatalf("unexpected full art %q", src)
	}
}

func TestBuildItemWithoutArtOrLinks(t *testing.T) {
	channel, err := newBuilder(t, stubSource{releases: sampleReleases()}, &stubResolver{}).Build(context.Background(), "bob", 7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second := channel.Items[1]
	if second.Category != "" {
		t.Fatalf("expected no category, got %q", second.Category)
	}
	desc := parseHTML(t, second.Description)
	if desc.Find("img").Length() != 0 || desc.Find("h4").Length() != 0 {
		t.Fatalf("expected no thumbnail or link list: %s", second.Description)
	}
	content := parseHTML(t, second.Content.Content)
	artists := content.Find("ul li a")
	if artists.Length() != 2 {
		t.Fatalf("expected artist list, got %d entries", artists.Length())
	}
	if href, _ := artists.Last().Attr("href"); href != "https://lb.example/artist/a-3" {
		t.Fatalf("unexpected artist url %q", href)
	}
}

func TestBuildPropagatesErrors(t *testing.T) {
	transport := services.Wrap(services.ErrTransport, "test", "fetch", "", nil)

	if _, err := newBuilder(t, stubSource{err: transport}, &stubResolver{}).Build(context.Background(), "u", 1); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected source error, got %v", err)
	}

	resolver := &stubResolver{err: services.Wrap(services.ErrStoreIO, "test", "lookup", "", nil)}
	channel, err := newBuilder(t, stubSource{releases: sampleReleases()}, resolver).Build(context.Background(), "u", 1)
	if !errors.Is(err, services.ErrStoreIO) || channel != nil {
		t.Fatalf("expected resolver error and no channel, got %v / %v", channel, err)
	}
}

func TestBuildRejectsMisalignedResults(t *testing.T) {
	resolver := &stubResolver{short: true}
	if _, err := newBuilder(t, stubSource{releases: sampleReleases()}, resolver).Build(context.Background(), "u", 1); err == nil {
		t.Fatal("expected error when resolver result is shorter than the request")
	}
}

func TestRenderProducesRSS(t *testing.T) {
	resolver := &stubResolver{records: map[string]releasestore.Record{"r-1": {ID: "r-1", HasFrontCoverArt: true}}}
	channel, err := newBuilder(t, stubSource{releases: sampleReleases()}, resolver).Build(context.Background(), "alice", 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	xml, err := feed.Render(channel)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		`<rss version="2.0"`,
		`<title>Releases for alice</title>`,
		`<language>en-US</language>`,
		`isPermaLink="true"`,
		`<content:encoded><![CDATA[`,
		`<category>Album</category>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("rendered feed missing %q:\n%s", want, xml)
		}
	}
}

func TestEmptyFeed(t *testing.T) {
	channel, err := newBuilder(t, stubSource{}, &stubResolver{}).Build(context.Background(), "nobody", 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(channel.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(channel.Items))
	}
}
