package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("store.sqlite_path must be set when store.backend is sqlite")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return errors.New("store.redis_addr must be set when store.backend is redis (or set LBFEED_REDIS_ADDR)")
		}
		if c.Store.RedisDB < 0 {
			return errors.New("store.redis_db must be zero or positive")
		}
	default:
		return fmt.Errorf("store.backend: unsupported value %q (expected sqlite or redis)", c.Store.Backend)
	}
	if c.Store.MemoSize < 0 {
		return errors.New("store.memo_size must be zero or positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.DefaultDays <= 0 {
		return errors.New("server.default_days must be positive")
	}
	if c.Server.MaxDays < c.Server.DefaultDays {
		return errors.New("server.max_days must be greater than or equal to server.default_days")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return errors.New("server.request_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateServices() error {
	for key, value := range map[string]string{
		"musicbrainz.base_url":       c.MusicBrainz.BaseURL,
		"listenbrainz.base_url":      c.ListenBrainz.BaseURL,
		"listenbrainz.front_url":     c.ListenBrainz.FrontURL,
		"listenbrainz.cover_art_url": c.ListenBrainz.CoverArtURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	if c.MusicBrainz.MinIntervalMillis < minIntervalMillis {
		return fmt.Errorf("musicbrainz.min_interval_ms must be at least %d, got %d", minIntervalMillis, c.MusicBrainz.MinIntervalMillis)
	}
	if c.MusicBrainz.HTTPTimeoutSeconds <= 0 {
		return errors.New("musicbrainz.http_timeout_seconds must be positive")
	}
	if c.ListenBrainz.HTTPTimeoutSeconds <= 0 {
		return errors.New("listenbrainz.http_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.QueueCapacity <= 0 {
		return errors.New("resolver.queue_capacity must be positive")
	}
	if c.Resolver.BatchTimeoutSeconds < 0 {
		return errors.New("resolver.batch_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
