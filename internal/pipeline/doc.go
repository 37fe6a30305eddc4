// Package pipeline orchestrates one batch of the content workflow: topic
// mining, the human approval gate, and the per-topic research, scripting,
// and review loop. The orchestrator drives the agents through the job
// queue and records an audit row for every batch, successful or not.
package pipeline
