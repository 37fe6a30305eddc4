package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"apogee/internal/logging"
)

// JobFunc executes a job and returns its JSON-encodable result.
type JobFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Runner polls the broker for queued jobs and dispatches them to registered
// handlers. Each worker claims one job at a time and honors the job's
// enqueue-time timeout.
type Runner struct {
	broker       *Broker
	logger       *slog.Logger
	pollInterval time.Duration
	workers      int

	mu       sync.Mutex
	handlers map[string]JobFunc

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRunner constructs a runner over the broker. Workers below 1 are
// clamped to 1.
func NewRunner(broker *Broker, logger *slog.Logger, pollInterval time.Duration, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		broker:       broker,
		logger:       logger.With(logging.String(logging.FieldComponent, "jobqueue-runner")),
		pollInterval: pollInterval,
		workers:      workers,
		handlers:     make(map[string]JobFunc),
	}
}

// Register binds a handler to a job name. Registration after Start is not
// supported.
func (r *Runner) Register(name string, fn JobFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Start launches the worker goroutines. They run until the context is
// canceled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			r.workerLoop(runCtx, worker)
		}(i)
	}
	r.logger.Info("job runner started", logging.Int("workers", r.workers))
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

func (r *Runner) registeredNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

func (r *Runner) handler(name string) JobFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[name]
}

func (r *Runner) workerLoop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := r.broker.ClaimNext(ctx, r.registeredNames())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("claim next job failed", logging.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.pollInterval):
			}
			continue
		}

		r.execute(ctx, job, worker)
	}
}

func (r *Runner) execute(ctx context.Context, job *Job, worker int) {
	logger := r.logger.With(
		logging.String(logging.FieldJob, job.Name),
		logging.String("job_id", job.ID),
		logging.Int("worker", worker),
	)

	fn := r.handler(job.Name)
	if fn == nil {
		logger.Error("no handler registered for job")
		if err := r.broker.Fail(ctx, job.ID, fmt.Sprintf("no handler registered for %s", job.Name)); err != nil {
			logger.Error("mark job failed", logging.Error(err))
		}
		return
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if job.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	logger.Info("job started")
	result, err := r.runHandler(jobCtx, fn, json.RawMessage(job.PayloadJSON))
	if err != nil {
		logger.Error("job failed", logging.Error(err))
		if failErr := r.broker.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			logger.Error("mark job failed", logging.Error(failErr))
		}
		return
	}

	if finishErr := r.broker.Finish(context.WithoutCancel(ctx), job.ID, result); finishErr != nil {
		logger.Error("mark job finished", logging.Error(finishErr))
		return
	}
	logger.Info("job finished")
}

func (r *Runner) runHandler(ctx context.Context, fn JobFunc, payload json.RawMessage) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return fn(ctx, payload)
}
