// Package config loads, normalizes, and validates filescribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FILESCRIBE_NTFY_TOPIC, optionally sourced from a .env file beside the config.
// The Config type centralizes every knob the daemon and CLI need, so the queue,
// watch folders, recognizer, and exporters discover their settings in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
