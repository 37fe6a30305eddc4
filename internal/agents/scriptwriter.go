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

const scriptwriterSystemPrompt = `You are a script writer for short educational videos.
Write a tight script grounded ONLY in the supplied claims. Respond with JSON only:
{"hook": "...", "beats": [{"fact": "...", "analogy": "..."}], "payoff": "...", "cta": "..."}
Rules: the hook is at most 200 characters; exactly 3 beats, each pairing one claim-backed fact with a vivid analogy; the payoff ties the beats together; cta is optional.`

// WriteScriptPayload is the queue payload for the script writing job.
type WriteScriptPayload struct {
	VideoID string   `json:"video_id"`
	Attempt int      `json:"attempt"`
	Issues  []string `json:"issues,omitempty"`
}

// WriteScriptResult is the script job's JSON result.
type WriteScriptResult struct {
	VideoID string       `json:"video_id"`
	Attempt int          `json:"attempt"`
	Script  media.Script `json:"script"`
}

// WriteScript drafts a script from a video's claims and saves it as the
// current script version. Reviewer issues from an earlier attempt are fed
// back into the prompt.
func (a *Agents) WriteScript(ctx context.Context, payload WriteScriptPayload) (*WriteScriptResult, error) {
	start := time.Now()
	if payload.Attempt <= 0 {
		payload.Attempt = 1
	}

	video, err := a.store.VideoByID(ctx, payload.VideoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrInvariant, "scriptwriter", "write script",
			fmt.Sprintf("video %s not found", payload.VideoID), nil)
	}
	claims, err := a.store.ClaimsForVideo(ctx, video.ID)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, services.Wrap(services.ErrInvariant, "scriptwriter", "write script",
			fmt.Sprintf("no claims for video %s", video.ID), nil)
	}

	userPrompt := buildScriptPrompt(video.Title, claims, payload.Issues)
	content, err := a.completer.CompleteJSON(ctx, scriptwriterSystemPrompt, userPrompt)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scriptwriter", "write script", "llm request", err)
	}

	var script media.Script
	if err := llm.DecodeJSON(content, &script); err != nil {
		return nil, services.Wrap(services.ErrTransient, "scriptwriter", "write script", "decode script", err)
	}
	if err := script.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "scriptwriter", "write script", "", err)
	}
	if err := a.store.SaveScript(ctx, video.ID, script, payload.Attempt); err != nil {
		return nil, err
	}

	a.recordRun(ctx, store.AgentRun{
		AgentName: "script_writer",
		TopicID:   video.TopicID,
		VideoID:   video.ID,
		Status:    "success",
		Input:     map[string]any{"video_id": video.ID, "attempt": payload.Attempt},
		Output:    map[string]any{"hook_length": len(script.Hook)},
		Duration:  durationSince(start),
	})
	a.logger.Info("script drafted",
		logging.String(logging.FieldVideoID, video.ID),
		logging.Int(logging.FieldAttempt, payload.Attempt),
	)
	return &WriteScriptResult{VideoID: video.ID, Attempt: payload.Attempt, Script: script}, nil
}

func buildScriptPrompt(title string, claims []media.Claim, issues []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video title: %s\n\nClaims:\n", title)
	for i, claim := range claims {
		fmt.Fprintf(&b, "%d. %s (confidence %.2f", i+1, claim.Text, claim.Confidence)
		if claim.SourceURL != "" {
			fmt.Fprintf(&b, ", source %s", claim.SourceURL)
		}
		b.WriteString(")\n")
	}
	if len(issues) > 0 {
		b.WriteString("\nThe previous draft was rejected. Fix these issues:\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	return b.String()
}
