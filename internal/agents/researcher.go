package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"apogee/internal/logging"
	"apogee/internal/media"
	"apogee/internal/services"
	"apogee/internal/services/llm"
	"apogee/internal/store"
)

const researcherSystemPrompt = `You are a research assistant preparing factual grounding for a short educational video.
Produce the key factual claims the script must rest on. Respond with JSON only:
{"claims": [{"claim_text": "...", "source_url": "...", "confidence": 0.0}]}
Confidence is your calibrated belief in [0,1]. Omit source_url when no real source exists; never invent URLs.`

// ResearchTopicPayload is the queue payload for the research job.
type ResearchTopicPayload struct {
	TopicID string `json:"topic_id"`
}

// ResearchTopicResult is the research job's JSON result.
type ResearchTopicResult struct {
	TopicID    string `json:"topic_id"`
	VideoID    string `json:"video_id"`
	ClaimCount int    `json:"claim_count"`
}

// ResearchTopic gathers factual claims for an approved topic, creates the
// draft video if none exists, and replaces the video's claim set.
func (a *Agents) ResearchTopic(ctx context.Context, payload ResearchTopicPayload) (*ResearchTopicResult, error) {
	start := time.Now()

	topic, err := a.store.TopicByID(ctx, payload.TopicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, services.Wrap(services.ErrInvariant, "researcher", "research topic",
			fmt.Sprintf("topic %s not found", payload.TopicID), nil)
	}

	userPrompt := fmt.Sprintf("Topic: %s\nRationale: %s\nProduce 3 to 6 claims.", topic.Title, topic.Rationale)
	content, err := a.completer.CompleteJSON(ctx, researcherSystemPrompt, userPrompt)
	if err != nil {
		a.recordRun(ctx, store.AgentRun{
			AgentName:    "researcher",
			TopicID:      topic.ID,
			Status:       "failed",
			Input:        map[string]any{"topic_id": topic.ID},
			Duration:     durationSince(start),
			ErrorMessage: err.Error(),
		})
		return nil, services.Wrap(services.ErrTransient, "researcher", "research topic", "llm request", err)
	}

	var researched struct {
		Claims []media.Claim `json:"claims"`
	}
	if err := llm.DecodeJSON(content, &researched); err != nil {
		return nil, services.Wrap(services.ErrTransient, "researcher", "research topic", "decode claims", err)
	}

	claims := make([]media.Claim, 0, len(researched.Claims))
	for _, claim := range researched.Claims {
		claim.Text = strings.TrimSpace(claim.Text)
		if claim.Text == "" {
			continue
		}
		if claim.Confidence < 0 {
			claim.Confidence = 0
		}
		if claim.Confidence > 1 {
			claim.Confidence = 1
		}
		claims = append(claims, claim)
	}
	if len(claims) == 0 {
		return nil, services.Wrap(services.ErrValidation, "researcher", "research topic",
			fmt.Sprintf("no usable claims for topic %s", topic.ID), nil)
	}

	video, err := a.store.EnsureDraftVideo(ctx, topic.ID)
	if err != nil {
		return nil, err
	}
	if err := a.store.ReplaceClaims(ctx, video.ID, claims); err != nil {
		return nil, err
	}

	a.recordRun(ctx, store.AgentRun{
		AgentName: "researcher",
		TopicID:   topic.ID,
		VideoID:   video.ID,
		Status:    "success",
		Input:     map[string]any{"topic_id": topic.ID},
		Output:    map[string]any{"video_id": video.ID, "claim_count": len(claims)},
		Duration:  durationSince(start),
	})
	a.logger.Info("research finished",
		logging.String(logging.FieldTopicID, topic.ID),
		logging.String(logging.FieldVideoID, video.ID),
		logging.Int("claims", len(claims)),
	)
	return &ResearchTopicResult{TopicID: topic.ID, VideoID: video.ID, ClaimCount: len(claims)}, nil
}
