// Package config loads, normalizes, and validates confcap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CONFCAP_FFMPEG. The Config type centralizes every knob the daemon and CLI
// need, so socket paths, capture defaults, and log rotation are discovered in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
