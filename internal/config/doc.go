// Package config loads, normalizes, and validates the Apogee configuration
// from a TOML file, with environment-variable overrides for the options
// operators commonly set per deployment.
package config
