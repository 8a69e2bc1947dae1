// Package listenbrainz fetches a user's fresh releases from the ListenBrainz
// API.
package listenbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lbfeed/internal/config"
	"lbfeed/internal/services"
)

const (
	component        = "listenbrainz"
	maxResponseBytes = 16 << 20
	errorBodyPreview = 256
)

// Release is one entry of the fresh_releases payload.
type Release struct {
	ArtistCreditName          string   `json:"artist_credit_name"`
	ArtistMBIDs               []string `json:"artist_mbids"`
	CAAID                     *int64   `json:"caa_id"`
	CAAReleaseMBID            *string  `json:"caa_release_mbid"`
	Confidence                *int64   `json:"confidence"`
	ListenCount               int64    `json:"listen_count"`
	ReleaseDate               string   `json:"release_date"`
	ReleaseGroupMBID          string   `json:"release_group_mbid"`
	ReleaseGroupPrimaryType   *string  `json:"release_group_primary_type"`
	ReleaseGroupSecondaryType *string  `json:"release_group_secondary_type"`
	ReleaseMBID               string   `json:"release_mbid"`
	ReleaseName               string   `json:"release_name"`
	ReleaseTags               []string `json:"release_tags"`
}

// PrimaryType returns the release group primary type, or "" when absent.
func (r Release) PrimaryType() string {
	if r.ReleaseGroupPrimaryType == nil {
		return ""
	}
	return *r.ReleaseGroupPrimaryType
}

type freshReleasesResponse struct {
	Payload struct {
		Releases []Release `json:"releases"`
	} `json:"payload"`
}

// Config describes how to reach ListenBrainz.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client provides access to the ListenBrainz API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

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

// New creates a ListenBrainz client.
func New(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("listenbrainz base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [listenbrainz] config section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return New(Config{
		BaseURL:   cfg.ListenBrainz.BaseURL,
		UserAgent: cfg.ListenBrainz.UserAgent,
		Timeout:   time.Duration(cfg.ListenBrainz.HTTPTimeoutSeconds) * time.Second,
	}, opts...)
}

// FreshReleasesURL returns the endpoint queried for user, without parameters.
func (c *Client) FreshReleasesURL(user string) string {
	return c.baseURL + "/user/" + url.PathEscape(user) + "/fresh_releases"
}

// FreshReleases lists releases from the user's fresh releases page, sorted by
// release date, covering the last days days.
func (c *Client) FreshReleases(ctx context.Context, user string, days int) ([]Release, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, services.Wrap(services.ErrValidation, component, "fresh releases", "user must not be empty", nil)
	}
	if days <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "fresh releases", "days must be positive", nil)
	}

	endpoint, err := url.Parse(c.FreshReleasesURL(user))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "fresh releases", "parse url", err)
	}
	params := url.Values{}
	params.Set("sort", "release_date")
	params.Set("days", strconv.Itoa(days))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "fresh releases", "build request", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrCanceled, component, "fresh releases", user, ctxErr)
		}
		return nil, services.Wrap(services.ErrTransport, component, "fresh releases", user, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, "read response", user, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrValidation, component, "fresh releases",
			fmt.Sprintf("user %q not found", user), nil)
	case resp.StatusCode >= 400:
		return nil, services.Wrap(services.ErrDecode, component, "fresh releases",
			fmt.Sprintf("status %d: %s", resp.StatusCode, preview(body)), nil)
	}

	var payload freshReleasesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrDecode, component, "decode response", user, err)
	}
	return payload.Payload.Releases, nil
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
