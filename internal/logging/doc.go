// Package logging builds slog loggers with the console and JSON handlers
// used across Apogee, plus typed attribute helpers and standardized field
// names so log queries stay consistent between components.
package logging
