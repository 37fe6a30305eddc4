package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQueueUnavailable marks failures to hand work to the job broker.
	// Fatal to the batch.
	ErrQueueUnavailable = errors.New("queue unavailable")
	// ErrJobFailed marks a remote job that reached a failed terminal state.
	// Aborts the work item, not the batch.
	ErrJobFailed = errors.New("job failed")
	// ErrInvariant marks a missing linked record the workflow guarantees to
	// exist. A data-integrity bug, fatal for the item.
	ErrInvariant = errors.New("invariant violation")
	// ErrValidation marks rejected input or an illegal state transition.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsItemScoped reports whether an error aborts only the current work item,
// leaving the rest of the batch to proceed. Broker and configuration
// failures are batch-fatal; everything else stays contained at the item
// boundary.
func IsItemScoped(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrQueueUnavailable) && !errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
