// Package services provides the shared error taxonomy and context carriers
// used across pipeline components.
package services
