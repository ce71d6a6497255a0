// Package config loads, normalizes, and validates gloss configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GLOSS_AI_API_KEY. The Config type centralizes every knob the daemon and
// CLI need, so service credentials and the data/log/archive directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
