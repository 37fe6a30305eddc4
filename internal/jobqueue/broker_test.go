package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"apogee/internal/services"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	broker, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func TestEnqueueAndFetch(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	handle, err := broker.Enqueue(ctx, "agents", "mine_topics", map[string]string{"channel_id": "ch-1"}, 30*time.Second)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if handle.ID == "" {
		t.Fatal("expected non-empty job id")
	}

	job, err := broker.JobByID(ctx, handle.ID)
	if err != nil {
		t.Fatalf("job by id: %v", err)
	}
	if job == nil {
		t.Fatal("expected job to exist")
	}
	if job.Status != StatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}
	if job.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", job.Timeout)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["channel_id"] != "ch-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestClaimNextSkipsUnregisteredNames(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	if _, err := broker.Enqueue(ctx, "agents", "research_topic", nil, time.Minute); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	wanted, err := broker.Enqueue(ctx, "agents", "write_script", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := broker.ClaimNext(ctx, []string{"write_script"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimed job")
	}
	if job.ID != wanted.ID {
		t.Fatalf("claimed wrong job: %s", job.Name)
	}
	if job.Status != StatusRunning {
		t.Fatalf("expected running status, got %s", job.Status)
	}

	// The research job is still queued but not claimable under this name set.
	again, err := broker.ClaimNext(ctx, []string{"write_script"})
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no claimable job, got %s", again.Name)
	}
}

func TestClaimNextEmptyQueue(t *testing.T) {
	broker := newTestBroker(t)

	job, err := broker.ClaimNext(context.Background(), []string{"mine_topics"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job != nil {
		t.Fatal("expected nil job from empty queue")
	}
}

func TestAwaitFinishedJobReturnsResult(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	handle, err := broker.Enqueue(ctx, "agents", "check_script", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := broker.Finish(ctx, handle.ID, map[string]bool{"approved": true}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	raw, err := broker.Await(ctx, handle, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	var result map[string]bool
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result["approved"] {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestAwaitFailedJobMapsToJobFailed(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	handle, err := broker.Enqueue(ctx, "agents", "research_topic", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := broker.Fail(ctx, handle.ID, "llm request rejected"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	_, err = broker.Await(ctx, handle, 5*time.Millisecond)
	if !errors.Is(err, services.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "llm request rejected") {
		t.Fatalf("expected remote reason in error, got %v", err)
	}
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	broker := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	handle, err := broker.Enqueue(ctx, "agents", "mine_topics", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, awaitErr := broker.Await(ctx, handle, 10*time.Millisecond)
		done <- awaitErr
	}()
	cancel()

	select {
	case awaitErr := <-done:
		if !errors.Is(awaitErr, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", awaitErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("await did not return after cancellation")
	}
}

func TestRunnerExecutesRegisteredJob(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	runner := NewRunner(broker, nil, 10*time.Millisecond, 1)
	runner.Register("mine_topics", func(_ context.Context, payload json.RawMessage) (any, error) {
		var in map[string]string
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return map[string]string{"echo": in["channel_id"]}, nil
	})
	runner.Start(ctx)
	defer runner.Stop()

	handle, err := broker.Enqueue(ctx, "agents", "mine_topics", map[string]string{"channel_id": "ch-9"}, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	raw, err := broker.Await(awaitCtx, handle, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result["echo"] != "ch-9" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestRunnerRecordsHandlerError(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	runner := NewRunner(broker, nil, 10*time.Millisecond, 1)
	runner.Register("research_topic", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("no sources found")
	})
	runner.Start(ctx)
	defer runner.Stop()

	handle, err := broker.Enqueue(ctx, "agents", "research_topic", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = broker.Await(awaitCtx, handle, 10*time.Millisecond)
	if !errors.Is(err, services.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "no sources found") {
		t.Fatalf("expected handler error text, got %v", err)
	}
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	runner := NewRunner(broker, nil, 10*time.Millisecond, 1)
	runner.Register("write_script", func(context.Context, json.RawMessage) (any, error) {
		panic("template exploded")
	})
	runner.Start(ctx)
	defer runner.Stop()

	handle, err := broker.Enqueue(ctx, "agents", "write_script", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = broker.Await(awaitCtx, handle, 10*time.Millisecond)
	if !errors.Is(err, services.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "template exploded") {
		t.Fatalf("expected panic text, got %v", err)
	}
}

func TestStats(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	first, err := broker.Enqueue(ctx, "agents", "mine_topics", nil, time.Minute)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := broker.Enqueue(ctx, "agents", "research_topic", nil, time.Minute); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := broker.Finish(ctx, first.ID, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	stats, err := broker.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[StatusQueued] != 1 || stats[StatusFinished] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
