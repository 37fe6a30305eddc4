package jobqueue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusFinished,
	StatusFailed,
	StatusCanceled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Terminal reports whether no further transition occurs for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job is a unit of work persisted in the broker.
type Job struct {
	ID           string
	Queue        string
	Name         string
	PayloadJSON  string
	Status       Status
	ResultJSON   string
	ErrorMessage string
	Timeout      time.Duration
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
}

// Handle is the opaque reference returned by Enqueue, used to poll for a
// terminal state and retrieve the result exactly once. Not persisted by
// callers.
type Handle struct {
	ID    string
	Queue string
	Name  string
}
