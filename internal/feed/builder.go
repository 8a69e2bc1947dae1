package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lbfeed/internal/config"
	"lbfeed/internal/listenbrainz"
	"lbfeed/internal/logging"
	"lbfeed/internal/releasestore"
)

const (
	component = "feed"
	logoURL   = "https://listenbrainz.org/static/img/listenbrainz-logo.svg"
)

// ReleaseSource lists fresh releases for a user.
type ReleaseSource interface {
	FreshReleases(ctx context.Context, user string, days int) ([]listenbrainz.Release, error)
	FreshReleasesURL(user string) string
}

// Submitter resolves release ids in order, all or nothing.
type Submitter interface {
	Submit(ctx context.Context, ids []string) ([]releasestore.Record, error)
}

// Options configures link bases and logging for a Builder.
type Options struct {
	FrontURL    string
	CoverArtURL string
	Logger      *slog.Logger
}

// Builder assembles RSS channels.
type Builder struct {
	source      ReleaseSource
	resolver    Submitter
	frontURL    string
	coverArtURL string
	logger      *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(source ReleaseSource, resolver Submitter, opts Options) (*Builder, error) {
	if source == nil {
		return nil, errors.New("feed: release source is required")
	}
	if resolver == nil {
		return nil, errors.New("feed: resolver is required")
	}
	if strings.TrimSpace(opts.FrontURL) == "" || strings.TrimSpace(opts.CoverArtURL) == "" {
		return nil, errors.New("feed: front and cover art urls are required")
	}
	return &Builder{
		source:      source,
		resolver:    resolver,
		frontURL:    withSlash(opts.FrontURL),
		coverArtURL: withSlash(opts.CoverArtURL),
		logger:      logging.NewComponentLogger(opts.Logger, component),
	}, nil
}

// NewBuilderFromConfig wires the [listenbrainz] link bases.
func NewBuilderFromConfig(cfg *config.Config, source ReleaseSource, resolver Submitter, logger *slog.Logger) (*Builder, error) {
	if cfg == nil {
		return nil, errors.New("feed: config is required")
	}
	return NewBuilder(source, resolver, Options{
		FrontURL:    cfg.ListenBrainz.FrontURL,
		CoverArtURL: cfg.ListenBrainz.CoverArtURL,
		Logger:      logger,
	})
}

// Build produces the channel for user covering the last days days.
func (b *Builder) Build(ctx context.Context, user string, days int) (*feeds.RssFeed, error) {
	start := time.Now()
	logger := logging.WithContext(ctx, b.logger)

	releases, err := b.source.FreshReleases(ctx, user, days)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(releases))
	for i, release := range releases {
		ids[i] = release.ReleaseMBID
	}
	records, err := b.resolver.Submit(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(records) != len(releases) {
		return nil, fmt.Errorf("feed: resolver returned %d records for %d releases", len(records), len(releases))
	}

	channel := &feeds.RssFeed{
		Title:       "Releases for " + user,
		Link:        b.source.FreshReleasesURL(user),
		Description: fmt.Sprintf("Fresh releases for %s from the last %d days", user, days),
		Language:    "en-US",
		Image: &feeds.RssImage{
			Url:   logoURL,
			Link:  logoURL,
			Title: "ListenBrainz logo",
		},
		Items: make([]*feeds.RssItem, 0, len(releases)),
	}
	// Casers keep state between calls.
	titler := cases.Title(language.English)
	for i, release := range releases {
		if records[i].ID != release.ReleaseMBID {
			return nil, fmt.Errorf("feed: resolver record %d is %q, expected %q", i, records[i].ID, release.ReleaseMBID)
		}
		item, err := b.item(titler, release, records[i])
		if err != nil {
			return nil, err
		}
		channel.Items = append(channel.Items, item)
	}

	logger.Info("feed built",
		logging.String(logging.FieldEventType, "feed_built"),
		logging.String("user", user),
		logging.Int("days", days),
		logging.Int("releases", len(releases)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return channel, nil
}

func (b *Builder) item(titler cases.Caser, release listenbrainz.Release, record releasestore.Record) (*feeds.RssItem, error) {
	permalink := b.frontURL + "release/" + release.ReleaseMBID
	view := itemView{
		Name:         release.ReleaseName,
		ArtistCredit: release.ArtistCreditName,
		Permalink:    permalink,
		FullURL:      b.coverArtURL + release.ReleaseMBID + "/front-500",
	}
	if record.HasFrontCoverArt {
		view.ThumbURL = b.coverArtURL + release.ReleaseMBID + "/front-250"
	}
	for _, mbid := range release.ArtistMBIDs {
		view.ArtistURLs = append(view.ArtistURLs, b.frontURL+"artist/"+mbid)
	}
	for _, link := range record.ExternalLinks {
		view.Links = append(view.Links, linkView{Label: titler.String(link.RelationType), URL: link.URL})
	}

	var description, content strings.Builder
	if err := descriptionTemplate.Execute(&description, view); err != nil {
		return nil, fmt.Errorf("feed: render description for %s: %w", release.ReleaseMBID, err)
	}
	if err := contentTemplate.Execute(&content, view); err != nil {
		return nil, fmt.Errorf("feed: render content for %s: %w", release.ReleaseMBID, err)
	}

	return &feeds.RssItem{
		Title:       release.ReleaseName,
		Link:        permalink,
		Description: description.String(),
		Content:     &feeds.RssContent{Content: content.String()},
		Category:    release.PrimaryType(),
		Guid:        &feeds.RssGuid{Id: permalink, IsPermaLink: "true"},
		PubDate:     release.ReleaseDate,
	}, nil
}

// Render encodes the channel as an RSS 2.0 document.
func Render(channel *feeds.RssFeed) (string, error) {
	if channel == nil {
		return "", errors.New("feed: nil channel")
	}
	return feeds.ToXML(channel)
}

func withSlash(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "/") {
		return value
	}
	return value + "/"
}
