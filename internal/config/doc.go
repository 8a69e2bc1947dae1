// Package config loads, normalizes, and validates lbfeed configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LBFEED_REDIS_ADDR. The Config type centralizes every knob the server and CLI
// need so the store backend, external service endpoints, and the metadata rate
// limit are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, trailing-slash service URLs, and clear validation errors.
package config
