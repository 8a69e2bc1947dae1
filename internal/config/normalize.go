package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeServices()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteName)
	}
	var err error
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	if value, ok := os.LookupEnv("LBFEED_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Store.RedisAddr = strings.TrimSpace(value)
	}
	c.Store.RedisAddr = strings.TrimSpace(c.Store.RedisAddr)
	if c.Store.RedisKeyPrefix == "" {
		c.Store.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Server.DefaultDays == 0 {
		c.Server.DefaultDays = defaultFeedDays
	}
	if c.Server.MaxDays == 0 {
		c.Server.MaxDays = defaultMaxFeedDays
	}
}

func (c *Config) normalizeServices() {
	userAgent := ""
	if value, ok := os.LookupEnv("LBFEED_USER_AGENT"); ok {
		userAgent = strings.TrimSpace(value)
	}

	c.MusicBrainz.BaseURL = withTrailingSlash(c.MusicBrainz.BaseURL, defaultMusicBrainzBaseURL)
	c.MusicBrainz.UserAgent = strings.TrimSpace(c.MusicBrainz.UserAgent)
	if userAgent != "" {
		c.MusicBrainz.UserAgent = userAgent
	}
	if c.MusicBrainz.UserAgent == "" {
		c.MusicBrainz.UserAgent = defaultUserAgent
	}

	c.ListenBrainz.BaseURL = withTrailingSlash(c.ListenBrainz.BaseURL, defaultListenBrainzBaseURL)
	c.ListenBrainz.FrontURL = withTrailingSlash(c.ListenBrainz.FrontURL, defaultListenBrainzFrontURL)
	c.ListenBrainz.CoverArtURL = withTrailingSlash(c.ListenBrainz.CoverArtURL, defaultCoverArtURL)
	c.ListenBrainz.UserAgent = strings.TrimSpace(c.ListenBrainz.UserAgent)
	if userAgent != "" {
		c.ListenBrainz.UserAgent = userAgent
	}
	if c.ListenBrainz.UserAgent == "" {
		c.ListenBrainz.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func withTrailingSlash(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	return value
}
