package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"apogee/internal/config"
	"apogee/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchCompleted(context.Background(), 1, 0, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyApprovalPending(context.Background(), 3, 48*time.Hour); err != nil {
		t.Fatalf("notify approval pending: %v", err)
	}
	if captured.title != "Apogee - Approval Needed" {
		t.Fatalf("unexpected title: %s", captured.title)
	}
	if !strings.Contains(captured.body, "3 topic(s)") {
		t.Fatalf("unexpected body: %s", captured.body)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority: %s", captured.priority)
	}

	if err := svc.NotifyError(context.Background(), errors.New("queue offline"), "batch run"); err != nil {
		t.Fatalf("notify error: %v", err)
	}
	if captured.tags != "apogee,error,alert" {
		t.Fatalf("unexpected tags: %s", captured.tags)
	}
	if !strings.Contains(captured.body, "queue offline") {
		t.Fatalf("unexpected body: %s", captured.body)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
