// Package agents implements the worker-side content jobs: topic mining,
// claim research, script writing, and rule-based fact checking. Each agent
// runs as a named job on the queue, reads and writes durable state through
// the store, and appends an audit record describing what it did.
package agents
