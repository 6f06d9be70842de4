// Package config loads, normalizes, and validates aslreport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// ASLREPORT_SERVER_BIND, PORT and ASLREPORT_RULES. The Config type centralizes
// every knob the CLI and HTTP server need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
