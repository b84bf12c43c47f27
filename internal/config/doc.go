// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCRIBE_LLM_API_KEY and GOOGLE_CLOUD_PROJECT. The Config type centralizes
// every knob the daemon and CLI need: scratch and database directories, the
// job store backend, chunking parameters, and provider credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
