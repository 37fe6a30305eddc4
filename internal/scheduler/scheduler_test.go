package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestNewRejectsInvalidExpression(t *testing.T) {
	_, err := New("not a cron line", func(context.Context) error { return nil }, nil)
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNewAcceptsDailySchedule(t *testing.T) {
	if _, err := New("0 8 * * *", func(context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
}

func TestNextRun(t *testing.T) {
	now := time.Date(2026, time.March, 1, 7, 0, 0, 0, time.UTC)
	next, err := NextRun("0 8 * * *", now)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sched, err := New("0 8 * * *", func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	cancel()

	select {
	case runErr := <-done:
		if runErr != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", runErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
