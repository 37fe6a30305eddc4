package pipeline

import (
	"context"
	"testing"
	"time"

	"apogee/internal/media"
	"apogee/internal/store"
	"apogee/internal/testsupport"
)

func seedPendingTopic(t *testing.T, st *store.Store, channelID, title string) *media.Topic {
	t.Helper()
	topic := &media.Topic{ChannelID: channelID, Title: title}
	if err := st.InsertTopic(context.Background(), topic); err != nil {
		t.Fatalf("insert topic: %v", err)
	}
	return topic
}

func TestGateReturnsApprovedSubset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	channel, err := st.EnsureChannel(ctx, "deep-dives", "science")
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	first := seedPendingTopic(t, st, channel.ID, "Why icebergs flip")
	second := seedPendingTopic(t, st, channel.ID, "How octopuses edit genes")
	if err := st.SetTopicStatus(ctx, first.ID, media.TopicApproved); err != nil {
		t.Fatalf("approve topic: %v", err)
	}

	gate := NewApprovalGate(st, nil, time.Minute, 10*time.Millisecond)
	approved, err := gate.WaitForApprovals(ctx, channel.ID, []string{first.ID, second.ID})
	if err != nil {
		t.Fatalf("wait for approvals: %v", err)
	}
	if len(approved) != 1 || approved[0] != first.ID {
		t.Fatalf("expected only the approved candidate, got %v", approved)
	}
}

func TestGateIgnoresApprovalsOutsideCandidateSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	channel, err := st.EnsureChannel(ctx, "deep-dives", "science")
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	candidate := seedPendingTopic(t, st, channel.ID, "Why icebergs flip")
	// Approved, but belongs to an earlier batch.
	outsider := seedPendingTopic(t, st, channel.ID, "How deserts form")
	if err := st.SetTopicStatus(ctx, outsider.ID, media.TopicApproved); err != nil {
		t.Fatalf("approve outsider: %v", err)
	}

	gate := NewApprovalGate(st, nil, 50*time.Millisecond, 10*time.Millisecond)
	approved, err := gate.WaitForApprovals(ctx, channel.ID, []string{candidate.ID})
	if err != nil {
		t.Fatalf("wait for approvals: %v", err)
	}
	if len(approved) != 0 {
		t.Fatalf("expected timeout with no approvals, got %v", approved)
	}
}

func TestGateReturnsOnLateApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	channel, err := st.EnsureChannel(ctx, "deep-dives", "science")
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	candidate := seedPendingTopic(t, st, channel.ID, "Why icebergs flip")

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = st.SetTopicStatus(context.Background(), candidate.ID, media.TopicApproved)
	}()

	gate := NewApprovalGate(st, nil, 5*time.Second, 10*time.Millisecond)
	approved, err := gate.WaitForApprovals(ctx, channel.ID, []string{candidate.ID})
	if err != nil {
		t.Fatalf("wait for approvals: %v", err)
	}
	if len(approved) != 1 || approved[0] != candidate.ID {
		t.Fatalf("expected late approval to be seen, got %v", approved)
	}
}

func TestGateEmptyCandidatesReturnsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	gate := NewApprovalGate(st, nil, time.Hour, time.Hour)
	start := time.Now()
	approved, err := gate.WaitForApprovals(context.Background(), "any", nil)
	if err != nil {
		t.Fatalf("wait for approvals: %v", err)
	}
	if approved != nil {
		t.Fatalf("expected nil, got %v", approved)
	}
	if time.Since(start) > time.Second {
		t.Fatal("empty candidate set should not wait")
	}
}

func TestGateHonorsContextCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())

	channel, err := st.EnsureChannel(ctx, "deep-dives", "science")
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	candidate := seedPendingTopic(t, st, channel.ID, "Why icebergs flip")

	done := make(chan error, 1)
	go func() {
		gate := NewApprovalGate(st, nil, time.Hour, 10*time.Millisecond)
		_, waitErr := gate.WaitForApprovals(ctx, channel.ID, []string{candidate.ID})
		done <- waitErr
	}()
	cancel()

	select {
	case waitErr := <-done:
		if waitErr == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gate did not return after cancellation")
	}
}
