package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxHookLength bounds the attention hook that opens a script.
	MaxHookLength = 200

	// RequiredBeats is the fixed number of fact/analogy beats per script.
	RequiredBeats = 3
)

// ScriptBeat pairs a factual statement with an analogy that lands it.
type ScriptBeat struct {
	Fact    string `json:"fact"`
	Analogy string `json:"analogy"`
}

// Script is the structured narration for a video.
type Script struct {
	Hook   string       `json:"hook"`
	Beats  []ScriptBeat `json:"beats"`
	Payoff string       `json:"payoff"`
	CTA    string       `json:"cta,omitempty"`
}

// Validate checks the structural rules for a complete script.
func (s Script) Validate() error {
	hook := strings.TrimSpace(s.Hook)
	if hook == "" {
		return errors.New("script hook is required")
	}
	if len(s.Hook) > MaxHookLength {
		return fmt.Errorf("script hook exceeds %d characters", MaxHookLength)
	}
	if len(s.Beats) != RequiredBeats {
		return fmt.Errorf("script requires exactly %d beats, got %d", RequiredBeats, len(s.Beats))
	}
	for i, beat := range s.Beats {
		if strings.TrimSpace(beat.Fact) == "" || strings.TrimSpace(beat.Analogy) == "" {
			return fmt.Errorf("script beat %d is incomplete", i+1)
		}
	}
	if strings.TrimSpace(s.Payoff) == "" {
		return errors.New("script payoff is required")
	}
	return nil
}

// FullText renders the script as flat prose, the form the reviewer
// inspects for absolute language.
func (s Script) FullText() string {
	parts := make([]string, 0, 2+2*len(s.Beats)+1)
	parts = append(parts, s.Hook)
	for _, beat := range s.Beats {
		parts = append(parts, beat.Fact, beat.Analogy)
	}
	parts = append(parts, s.Payoff)
	if strings.TrimSpace(s.CTA) != "" {
		parts = append(parts, s.CTA)
	}
	return strings.Join(parts, "\n\n")
}

// Claim is a factual assertion surfaced by research, carrying the model's
// confidence and whether a source backs it.
type Claim struct {
	Text       string  `json:"claim_text"`
	SourceURL  string  `json:"source_url,omitempty"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// ReviewResult is the fact checker's verdict on a script draft.
type ReviewResult struct {
	RiskScore float64  `json:"risk_score"`
	Issues    []string `json:"issues,omitempty"`
	Approved  bool     `json:"approved"`
}

// VideoSpec is the fully assembled production package for a video that
// cleared review: topic, script, and supporting claims together.
type VideoSpec struct {
	VideoID    string      `json:"video_id"`
	TopicID    string      `json:"topic_id"`
	TopicTitle string      `json:"topic_title"`
	ChannelID  string      `json:"channel_id"`
	Status     VideoStatus `json:"status"`
	Claims     []Claim     `json:"claims"`
	Script     Script      `json:"script"`
	CreatedAt  time.Time   `json:"created_at"`
}
