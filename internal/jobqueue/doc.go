// Package jobqueue implements the asynchronous job broker boundary: a
// durable SQLite-backed queue, a narrow client for enqueueing work and
// awaiting its terminal state, and an in-process worker runner that
// executes registered job functions. Enqueue and await are deliberately
// decoupled so a handle can outlive the process that created it.
package jobqueue
