// Package main hosts the Apogee CLI entrypoint and command graph.
//
// The Cobra-based command tree covers running the pipeline (once or on a
// cron schedule), approving and rejecting mined topics, inspecting videos
// and the job queue, and configuration scaffolding. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
