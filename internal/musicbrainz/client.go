package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lbfeed/internal/config"
	"lbfeed/internal/releasestore"
	"lbfeed/internal/services"
)

const (
	component        = "musicbrainz"
	unknownRelation  = "Unknown type"
	maxResponseBytes = 4 << 20
	errorBodyPreview = 256
)

// Fetcher resolves one release against the metadata service.
type Fetcher interface {
	FetchOne(ctx context.Context, id string) (bool, []releasestore.Link, error)
}

// Config describes how to reach the metadata service.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the MusicBrainz web service.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a MusicBrainz client.
func New(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("musicbrainz base url required")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		return nil, errors.New("musicbrainz user agent required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [musicbrainz] config section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return New(Config{
		BaseURL:   cfg.MusicBrainz.BaseURL,
		UserAgent: cfg.MusicBrainz.UserAgent,
		Timeout:   time.Duration(cfg.MusicBrainz.HTTPTimeoutSeconds) * time.Second,
	}, opts...)
}

type releaseDocument struct {
	CoverArtArchive *struct {
		Front bool `json:"front"`
	} `json:"cover-art-archive"`
	Relations []relation `json:"relations"`
}

type relation struct {
	TargetType string `json:"target-type"`
	Type       string `json:"type"`
	URL        *struct {
		Resource *string `json:"resource"`
	} `json:"url"`
}

// FetchOne retrieves the cover-art flag and URL relations for a release.
func (c *Client) FetchOne(ctx context.Context, id string) (bool, []releasestore.Link, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil, services.Wrap(services.ErrValidation, component, "fetch", "release id must not be empty", nil)
	}

	endpoint, err := url.Parse(c.baseURL + "/release/" + url.PathEscape(id))
	if err != nil {
		return false, nil, services.Wrap(services.ErrValidation, component, "fetch", "parse release url", err)
	}
	params := url.Values{}
	params.Set("inc", "url-rels")
	params.Set("fmt", "json")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, nil, services.Wrap(services.ErrValidation, component, "fetch", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, nil, services.Wrap(services.ErrCanceled, component, "fetch", id, ctxErr)
		}
		return false, nil, services.Wrap(services.ErrTransport, component, "fetch",
			fmt.Sprintf("%s (latency=%v)", id, latency.Round(time.Millisecond)), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, nil, services.Wrap(services.ErrTransport, component, "read response", id, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, nil, services.Wrap(services.ErrDecode, component, "fetch",
			fmt.Sprintf("%s: status %d: %s", id, resp.StatusCode, preview(body)), nil)
	}

	hasFront, links, err := parseRelease(body)
	if err != nil {
		return false, nil, services.Wrap(services.ErrDecode, component, "decode response", id, err)
	}
	return hasFront, links, nil
}

func parseRelease(body []byte) (bool, []releasestore.Link, error) {
	var doc releaseDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, nil, err
	}
	hasFront := doc.CoverArtArchive != nil && doc.CoverArtArchive.Front

	var links []releasestore.Link
	for _, rel := range doc.Relations {
		// A present resource is kept even when empty; only a missing one drops
		// the relation.
		if rel.TargetType != "url" || rel.URL == nil || rel.URL.Resource == nil {
			continue
		}
		label := rel.Type
		if label == "" {
			label = unknownRelation
		}
		links = append(links, releasestore.Link{RelationType: label, URL: *rel.URL.Resource})
	}
	return hasFront, links, nil
}

func preview(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > errorBodyPreview {
		text = text[:errorBodyPreview] + "..."
	}
	if text == "" {
		return "empty body"
	}
	return text
}
