package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"apogee/internal/media"
	"apogee/internal/services"
)

// EnsureDraftVideo returns the most recent video for a topic, creating a
// draft one when none exists. At most one video per topic is created by the
// research stage.
func (s *Store) EnsureDraftVideo(ctx context.Context, topicID string) (*media.Video, error) {
	topic, err := s.TopicByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, services.Wrap(services.ErrInvariant, "store", "ensure video", fmt.Sprintf("topic %s not found", topicID), nil)
	}

	existing, err := s.LatestVideoForTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	video := &media.Video{
		ID:        uuid.NewString(),
		ChannelID: topic.ChannelID,
		TopicID:   topic.ID,
		Title:     topic.Title,
		Status:    media.VideoDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO videos (id, channel_id, topic_id, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.ChannelID, video.TopicID, video.Title, video.Status,
		timestamp(now), timestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	return video, nil
}

// VideoByID fetches a video, or nil when absent.
func (s *Store) VideoByID(ctx context.Context, id string) (*media.Video, error) {
	row := s.db.QueryRowContext(ctx, videoSelect+" WHERE id = ?", id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// LatestVideoForTopic returns the most recent video linked to a topic, or
// nil when the research stage has not created one yet.
func (s *Store) LatestVideoForTopic(ctx context.Context, topicID string) (*media.Video, error) {
	row := s.db.QueryRowContext(ctx,
		videoSelect+" WHERE topic_id = ? ORDER BY created_at DESC LIMIT 1", topicID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest video for topic: %w", err)
	}
	return video, nil
}

// SetVideoStatus advances a video through its lifecycle, rejecting illegal
// transitions. Use MarkVideoFailed for the failure path so a reason is
// always recorded.
func (s *Store) SetVideoStatus(ctx context.Context, id string, to media.VideoStatus) error {
	video, err := s.VideoByID(ctx, id)
	if err != nil {
		return err
	}
	if video == nil {
		return services.Wrap(services.ErrInvariant, "store", "set video status", fmt.Sprintf("video %s not found", id), nil)
	}
	if err := media.ValidateVideoTransition(video.Status, to); err != nil {
		return services.Wrap(services.ErrValidation, "store", "set video status", "", err)
	}
	_, err = s.execWithRetry(ctx,
		"UPDATE videos SET status = ?, updated_at = ? WHERE id = ?",
		to, timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	return nil
}

// MarkVideoFailed moves a video to the terminal failed status with a
// descriptive reason, stamping the update time.
func (s *Store) MarkVideoFailed(ctx context.Context, id, reason string) error {
	video, err := s.VideoByID(ctx, id)
	if err != nil {
		return err
	}
	if video == nil {
		return services.Wrap(services.ErrInvariant, "store", "mark video failed", fmt.Sprintf("video %s not found", id), nil)
	}
	if err := media.ValidateVideoTransition(video.Status, media.VideoFailed); err != nil {
		return services.Wrap(services.ErrValidation, "store", "mark video failed", "", err)
	}
	_, err = s.execWithRetry(ctx,
		"UPDATE videos SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		media.VideoFailed, reason, timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("mark video failed: %w", err)
	}
	return nil
}

// ListVideos returns a channel's videos, optionally filtered by status,
// newest first.
func (s *Store) ListVideos(ctx context.Context, channelID string, statuses ...media.VideoStatus) ([]*media.Video, error) {
	q := builder.
		Select("id", "channel_id", "topic_id", "title", "status", "COALESCE(error_message, '')", "created_at", "updated_at").
		From("videos").
		Where(sq.Eq{"channel_id": channelID}).
		OrderBy("created_at DESC")
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statuses})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build videos query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*media.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// SaveScript persists a generated script for a video, fully overwriting any
// prior attempt. The version column records which attempt produced it.
func (s *Store) SaveScript(ctx context.Context, videoID string, script media.Script, version int) error {
	if err := script.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "store", "save script", "", err)
	}
	beats, err := json.Marshal(script.Beats)
	if err != nil {
		return fmt.Errorf("marshal beats: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO scripts (video_id, hook, beats_json, payoff, cta, version, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (video_id) DO UPDATE SET
             hook = excluded.hook, beats_json = excluded.beats_json,
             payoff = excluded.payoff, cta = excluded.cta,
             version = excluded.version, created_at = excluded.created_at`,
		videoID, script.Hook, string(beats), script.Payoff, nullableString(script.CTA),
		version, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

// ScriptForVideo fetches the current script for a video, or nil when none
// has been generated yet.
func (s *Store) ScriptForVideo(ctx context.Context, videoID string) (*media.Script, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT hook, beats_json, payoff, COALESCE(cta, '') FROM scripts WHERE video_id = ?", videoID)

	var (
		script media.Script
		beats  string
	)
	err := row.Scan(&script.Hook, &beats, &script.Payoff, &script.CTA)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	if err := json.Unmarshal([]byte(beats), &script.Beats); err != nil {
		return nil, fmt.Errorf("decode script beats: %w", err)
	}
	return &script, nil
}

// ReplaceClaims overwrites the claims linked to a video with the provided
// set. Each research or review pass replaces, never accumulates.
func (s *Store) ReplaceClaims(ctx context.Context, videoID string, claims []media.Claim) error {
	now := timestamp(time.Now())
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claims tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM claims WHERE video_id = ?", videoID); err != nil {
			return fmt.Errorf("clear claims: %w", err)
		}
		for _, claim := range claims {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO claims (id, video_id, claim_text, source_url, risk_score, verified, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), videoID, claim.Text, nullableString(claim.SourceURL),
				claimRisk(claim.Confidence), boolToInt(claim.Verified), now,
			); err != nil {
				return fmt.Errorf("insert claim: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claims: %w", err)
		}
		return nil
	})
}

// ClaimsForVideo returns the claims linked to a video in insertion order.
func (s *Store) ClaimsForVideo(ctx context.Context, videoID string) ([]media.Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT claim_text, COALESCE(source_url, ''), risk_score, verified
         FROM claims WHERE video_id = ? ORDER BY created_at, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []media.Claim
	for rows.Next() {
		var (
			claim    media.Claim
			risk     float64
			verified int
		)
		if err := rows.Scan(&claim.Text, &claim.SourceURL, &risk, &verified); err != nil {
			return nil, err
		}
		claim.Confidence = roundConfidence(1.0 - risk)
		claim.Verified = verified != 0
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// ClaimRecord is a stored claim row with its identity and risk, the form
// the fact checker audits.
type ClaimRecord struct {
	ID        string
	Text      string
	SourceURL string
	RiskScore float64
}

// ClaimRecordsForVideo returns a video's claim rows ordered by ascending
// risk.
func (s *Store) ClaimRecordsForVideo(ctx context.Context, videoID string) ([]ClaimRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, claim_text, COALESCE(source_url, ''), risk_score
         FROM claims WHERE video_id = ? ORDER BY risk_score ASC, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query claim records: %w", err)
	}
	defer rows.Close()

	var records []ClaimRecord
	for rows.Next() {
		var record ClaimRecord
		if err := rows.Scan(&record.ID, &record.Text, &record.SourceURL, &record.RiskScore); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateClaimText rewrites a single claim's text in place. Used by the
// fact checker to persist language softening.
func (s *Store) UpdateClaimText(ctx context.Context, claimID, text string) error {
	_, err := s.execWithRetry(ctx, "UPDATE claims SET claim_text = ? WHERE id = ?", text, claimID)
	if err != nil {
		return fmt.Errorf("update claim text: %w", err)
	}
	return nil
}

const videoSelect = `SELECT id, channel_id, topic_id, title, status, COALESCE(error_message, ''), created_at, updated_at FROM videos`

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*media.Video, error) {
	var (
		video      media.Video
		statusStr  string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&video.ID,
		&video.ChannelID,
		&video.TopicID,
		&video.Title,
		&statusStr,
		&video.ErrorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	video.Status = media.VideoStatus(statusStr)
	if created, err := parseTimeString(createdRaw); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		video.UpdatedAt = updated
	}
	return &video, nil
}

// claimRisk converts a claim confidence into the stored risk score.
func claimRisk(confidence float64) float64 {
	return roundConfidence(1.0 - confidence)
}

func roundConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	// six decimal places, matching the audit precision downstream expects
	return float64(int64(value*1e6+0.5)) / 1e6
}
