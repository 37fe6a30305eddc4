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
	"apogee/internal/textutil"
)

const minerSystemPrompt = `You are a topic researcher for a short-form educational video channel.
Propose fresh, specific video topics for the channel's niche. Respond with JSON only:
{"topics": [{"title": "...", "rationale": "..."}]}
Each title must be a concrete, self-contained video idea under 90 characters.`

// MineTopicsPayload is the queue payload for the mining job.
type MineTopicsPayload struct {
	ChannelID string `json:"channel_id"`
	Count     int    `json:"count,omitempty"`
}

// MinedTopic describes one accepted candidate.
type MinedTopic struct {
	TopicID         string  `json:"topic_id"`
	Title           string  `json:"title"`
	SimilarityScore float64 `json:"similarity_score"`
}

// MineTopicsResult is the mining job's JSON result.
type MineTopicsResult struct {
	ChannelID string       `json:"channel_id"`
	Topics    []MinedTopic `json:"topics"`
	Skipped   int          `json:"skipped"`
}

// MineTopics asks the model for candidate topics, drops near-duplicates of
// recent channel history, and persists the survivors as pending topics.
func (a *Agents) MineTopics(ctx context.Context, payload MineTopicsPayload) (*MineTopicsResult, error) {
	start := time.Now()
	if payload.Count <= 0 {
		payload.Count = 5
	}

	channel, err := a.store.ChannelByID(ctx, payload.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, services.Wrap(services.ErrInvariant, "miner", "mine topics",
			fmt.Sprintf("channel %s not found", payload.ChannelID), nil)
	}

	recent, err := a.store.RecentTitles(ctx, channel.ID, a.recentTitleLimit)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(
		"Channel niche: %s\nPropose %d topics.\nRecently covered titles to avoid repeating:\n%s",
		channel.Niche, payload.Count, formatTitleList(recent),
	)
	content, err := a.completer.CompleteJSON(ctx, minerSystemPrompt, userPrompt)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "miner", "mine topics", "llm request", err)
	}

	var proposed struct {
		Topics []struct {
			Title     string `json:"title"`
			Rationale string `json:"rationale"`
		} `json:"topics"`
	}
	if err := llm.DecodeJSON(content, &proposed); err != nil {
		return nil, services.Wrap(services.ErrTransient, "miner", "mine topics", "decode proposals", err)
	}

	result := &MineTopicsResult{ChannelID: channel.ID}
	for _, candidate := range proposed.Topics {
		title := strings.TrimSpace(candidate.Title)
		if title == "" {
			continue
		}
		similarity := textutil.MaxSimilarity(title, recent)
		if similarity >= a.similarityThreshold {
			result.Skipped++
			a.logger.Debug("skipping near-duplicate topic",
				logging.String("title", title),
				logging.Float64("similarity", similarity),
			)
			continue
		}
		topic := &media.Topic{
			ChannelID:       channel.ID,
			Title:           title,
			Rationale:       strings.TrimSpace(candidate.Rationale),
			SimilarityScore: similarity,
		}
		if err := a.store.InsertTopic(ctx, topic); err != nil {
			return nil, err
		}
		result.Topics = append(result.Topics, MinedTopic{
			TopicID:         topic.ID,
			Title:           topic.Title,
			SimilarityScore: similarity,
		})
	}

	a.recordRun(ctx, store.AgentRun{
		AgentName: "topic_miner",
		Status:    "success",
		Input:     map[string]any{"channel_id": channel.ID, "count": payload.Count},
		Output:    map[string]any{"accepted": len(result.Topics), "skipped": result.Skipped},
		Duration:  durationSince(start),
	})
	a.logger.Info("topic mining finished",
		logging.Int("accepted", len(result.Topics)),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}

func formatTitleList(titles []string) string {
	if len(titles) == 0 {
		return "(none yet)"
	}
	var b strings.Builder
	for _, title := range titles {
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	return b.String()
}
