package jobqueue

import (
	"context"
	"encoding/json"
	"time"
)

// Client is the narrow surface the orchestrator needs from the job broker:
// hand work over, and wait for its terminal state. Implementations must
// keep Await side-effect free so repeated polling is always safe.
type Client interface {
	// Enqueue submits a named job with a JSON-encodable payload and an
	// execution timeout. Fails with a queue-unavailable error when the
	// broker cannot accept work.
	Enqueue(ctx context.Context, queueName, jobName string, payload any, timeout time.Duration) (Handle, error)

	// Await blocks the calling goroutine until the job reaches a terminal
	// state, polling at the given interval. Returns the job's declared
	// result on success, or a job-failed error embedding the remote error
	// text when the job ended failed or canceled.
	Await(ctx context.Context, handle Handle, pollInterval time.Duration) (json.RawMessage, error)
}
