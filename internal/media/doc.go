// Package media defines the content domain model shared across the
// pipeline: topics, videos, scripts, claims, and the status lifecycles
// that govern them. Status transitions are validated here so every
// caller goes through the same legality check.
package media
