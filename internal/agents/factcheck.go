package agents

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"apogee/internal/logging"
	"apogee/internal/media"
	"apogee/internal/services"
	"apogee/internal/store"
)

// Fact checking is purely rule based. No model calls happen here, so a
// rejected draft never costs tokens.
const (
	riskPerMissingSource    = 0.20
	riskPerAbsoluteLanguage = 0.15
	approvalRiskThreshold   = 0.60

	// Language audit applies only to claims whose stored risk exceeds
	// this value (confidence below 0.70).
	lowConfidenceRiskThreshold = 0.30
)

// absoluteLanguage maps certainty phrasing to a calibrated softening.
// Longer patterns come first so they match before their substrings.
var absoluteLanguage = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bit is proven that\b`), "evidence suggests that"},
	{regexp.MustCompile(`(?i)\bcertainly\b`), "evidence suggests"},
	{regexp.MustCompile(`(?i)\bimpossible\b`), "rarely possible"},
	{regexp.MustCompile(`(?i)\balways\b`), "in most cases"},
	{regexp.MustCompile(`(?i)\bnever\b`), "rarely"},
}

// CheckScriptPayload is the queue payload for the review job.
type CheckScriptPayload struct {
	VideoID string `json:"video_id"`
}

// CheckScript audits a video's claims: flags missing sources, softens
// absolute language on low-confidence claims in place, and computes the
// aggregate risk score. An approved video advances to scripted.
func (a *Agents) CheckScript(ctx context.Context, payload CheckScriptPayload) (*media.ReviewResult, error) {
	start := time.Now()

	video, err := a.store.VideoByID(ctx, payload.VideoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrInvariant, "factcheck", "check script",
			fmt.Sprintf("video %s not found", payload.VideoID), nil)
	}
	claims, err := a.store.ClaimRecordsForVideo(ctx, video.ID)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, services.Wrap(services.ErrInvariant, "factcheck", "check script",
			fmt.Sprintf("no claims for video %s", video.ID), nil)
	}

	var (
		issues           []string
		missingSource    int
		absoluteFindings int
	)
	for _, claim := range claims {
		if claim.SourceURL == "" {
			missingSource++
			issues = append(issues, fmt.Sprintf("claim without source: %q", claimExcerpt(claim.Text)))
		}
		if claim.RiskScore > lowConfidenceRiskThreshold {
			softened, hit := softenAbsoluteLanguage(claim.Text)
			if hit {
				absoluteFindings++
				issues = append(issues, fmt.Sprintf("absolute language softened in claim: %q", claimExcerpt(claim.Text)))
				if err := a.store.UpdateClaimText(ctx, claim.ID, softened); err != nil {
					return nil, err
				}
			}
		}
	}

	raw := float64(missingSource)*riskPerMissingSource + float64(absoluteFindings)*riskPerAbsoluteLanguage
	riskScore := math.Round(math.Min(1.0, raw)*1e6) / 1e6
	approved := riskScore <= approvalRiskThreshold

	if approved && video.Status == media.VideoDraft {
		if err := a.store.SetVideoStatus(ctx, video.ID, media.VideoScripted); err != nil {
			return nil, err
		}
	}

	result := &media.ReviewResult{
		RiskScore: riskScore,
		Issues:    issues,
		Approved:  approved,
	}
	a.recordRun(ctx, store.AgentRun{
		AgentName: "fact_checker",
		TopicID:   video.TopicID,
		VideoID:   video.ID,
		Status:    "success",
		Input:     map[string]any{"video_id": video.ID, "claims_audited": len(claims)},
		Output: map[string]any{
			"risk_score": riskScore,
			"approved":   approved,
			"issues":     len(issues),
		},
		Duration: durationSince(start),
	})
	a.logger.Info("fact check finished",
		logging.String(logging.FieldVideoID, video.ID),
		logging.Float64("risk_score", riskScore),
		logging.Bool("approved", approved),
	)
	return result, nil
}

func softenAbsoluteLanguage(text string) (string, bool) {
	softened := text
	hit := false
	for _, entry := range absoluteLanguage {
		replaced := entry.pattern.ReplaceAllString(softened, entry.replacement)
		if replaced != softened {
			hit = true
			softened = replaced
		}
	}
	return softened, hit
}

func claimExcerpt(text string) string {
	const limit = 60
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
