// Package store persists workflow state in SQLite: channels, mined topics,
// video work items, their script and claim artifacts, and the append-only
// agent run audit log. All writes are single-row and immediately committed;
// the orchestrator never holds a transaction open across a job wait.
package store
