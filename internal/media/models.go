package media

import (
	"fmt"
	"time"
)

// TopicStatus represents a topic's position in the approval lifecycle.
type TopicStatus string

const (
	TopicPending   TopicStatus = "pending"
	TopicApproved  TopicStatus = "approved"
	TopicRejected  TopicStatus = "rejected"
	TopicPublished TopicStatus = "published"
)

var allTopicStatuses = []TopicStatus{
	TopicPending,
	TopicApproved,
	TopicRejected,
	TopicPublished,
}

var topicStatusSet = func() map[TopicStatus]struct{} {
	set := make(map[TopicStatus]struct{}, len(allTopicStatuses))
	for _, status := range allTopicStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseTopicStatus validates a raw status string.
func ParseTopicStatus(raw string) (TopicStatus, error) {
	status := TopicStatus(raw)
	if _, ok := topicStatusSet[status]; !ok {
		return "", fmt.Errorf("unknown topic status %q", raw)
	}
	return status, nil
}

// topicTransitions lists the legal lifecycle moves. Rejected and published
// are terminal.
var topicTransitions = map[TopicStatus][]TopicStatus{
	TopicPending:  {TopicApproved, TopicRejected},
	TopicApproved: {TopicPublished},
}

// ValidateTopicTransition reports whether moving from one topic status to
// another is legal.
func ValidateTopicTransition(from, to TopicStatus) error {
	for _, allowed := range topicTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("illegal topic transition %s -> %s", from, to)
}

// VideoStatus represents a video's position in the production lifecycle.
type VideoStatus string

const (
	VideoDraft     VideoStatus = "draft"
	VideoScripted  VideoStatus = "scripted"
	VideoRendered  VideoStatus = "rendered"
	VideoPublished VideoStatus = "published"
	VideoFailed    VideoStatus = "failed"
)

var allVideoStatuses = []VideoStatus{
	VideoDraft,
	VideoScripted,
	VideoRendered,
	VideoPublished,
	VideoFailed,
}

var videoStatusSet = func() map[VideoStatus]struct{} {
	set := make(map[VideoStatus]struct{}, len(allVideoStatuses))
	for _, status := range allVideoStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseVideoStatus validates a raw status string.
func ParseVideoStatus(raw string) (VideoStatus, error) {
	status := VideoStatus(raw)
	if _, ok := videoStatusSet[status]; !ok {
		return "", fmt.Errorf("unknown video status %q", raw)
	}
	return status, nil
}

// IsTerminal reports whether the video can make no further progress.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoPublished || s == VideoFailed
}

// videoTransitions lists the legal forward moves. Failed is reachable from
// every non-terminal status and is handled in ValidateVideoTransition.
var videoTransitions = map[VideoStatus][]VideoStatus{
	VideoDraft:    {VideoScripted},
	VideoScripted: {VideoRendered},
	VideoRendered: {VideoPublished},
}

// ValidateVideoTransition reports whether moving from one video status to
// another is legal. Any non-terminal status may fail.
func ValidateVideoTransition(from, to VideoStatus) error {
	if to == VideoFailed {
		if from.IsTerminal() {
			return fmt.Errorf("illegal video transition %s -> %s", from, to)
		}
		return nil
	}
	for _, allowed := range videoTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("illegal video transition %s -> %s", from, to)
}

// Topic is a candidate or approved content idea for a channel.
type Topic struct {
	ID              string
	ChannelID       string
	Title           string
	Rationale       string
	Status          TopicStatus
	SimilarityScore float64
	CreatedAt       time.Time
}

// Video is the production artifact for an approved topic.
type Video struct {
	ID           string
	ChannelID    string
	TopicID      string
	Title        string
	Status       VideoStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
