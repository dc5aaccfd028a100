// Package config loads, normalizes, and validates clipguard configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLIPGUARD_PROVIDER_TOKEN_ID. The Config type centralizes every knob the
// daemon and CLI need: provider and moderation endpoints, waiter bounds, worker
// pool sizing, and notification/event sinks.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
