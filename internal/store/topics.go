package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"apogee/internal/media"
	"apogee/internal/services"
)

// InsertTopic persists a newly mined topic with status pending. A missing
// identifier is filled in.
func (s *Store) InsertTopic(ctx context.Context, topic *media.Topic) error {
	if topic == nil {
		return errors.New("topic is nil")
	}
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	if topic.Status == "" {
		topic.Status = media.TopicPending
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO topics (id, channel_id, title, rationale, status, similarity_score, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		topic.ID,
		topic.ChannelID,
		topic.Title,
		nullableString(topic.Rationale),
		topic.Status,
		topic.SimilarityScore,
		timestamp(topic.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

// TopicByID fetches a topic, or nil when absent.
func (s *Store) TopicByID(ctx context.Context, id string) (*media.Topic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, title, COALESCE(rationale, ''), status, similarity_score, created_at
         FROM topics WHERE id = ?`, id)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

// ApprovedTopicIDs returns the topics from the candidate set that a human
// has approved. Topics outside the candidate set are never returned, so one
// batch cannot pick up another batch's approvals.
func (s *Store) ApprovedTopicIDs(ctx context.Context, channelID string, candidateIDs []string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	query, args, err := builder.
		Select("id").
		From("topics").
		Where(sq.Eq{
			"channel_id": channelID,
			"status":     media.TopicApproved,
			"id":         candidateIDs,
		}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build approved query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query approved topics: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetTopicStatus advances a topic through its lifecycle, rejecting illegal
// transitions.
func (s *Store) SetTopicStatus(ctx context.Context, id string, to media.TopicStatus) error {
	topic, err := s.TopicByID(ctx, id)
	if err != nil {
		return err
	}
	if topic == nil {
		return services.Wrap(services.ErrInvariant, "store", "set topic status", fmt.Sprintf("topic %s not found", id), nil)
	}
	if err := media.ValidateTopicTransition(topic.Status, to); err != nil {
		return services.Wrap(services.ErrValidation, "store", "set topic status", "", err)
	}
	_, err = s.execWithRetry(ctx, "UPDATE topics SET status = ? WHERE id = ?", to, id)
	if err != nil {
		return fmt.Errorf("update topic status: %w", err)
	}
	return nil
}

// RecentTitles returns up to limit titles of recently approved or published
// topics for a channel, newest first. Used by the miner's duplicate filter.
func (s *Store) RecentTitles(ctx context.Context, channelID string, limit int) ([]string, error) {
	query, args, err := builder.
		Select("title").
		From("topics").
		Where(sq.Eq{
			"channel_id": channelID,
			"status":     []media.TopicStatus{media.TopicApproved, media.TopicPublished},
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent titles query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// ListTopics returns a channel's topics, optionally filtered by status,
// newest first.
func (s *Store) ListTopics(ctx context.Context, channelID string, statuses ...media.TopicStatus) ([]*media.Topic, error) {
	q := builder.
		Select("id", "channel_id", "title", "COALESCE(rationale, '')", "status", "similarity_score", "created_at").
		From("topics").
		Where(sq.Eq{"channel_id": channelID}).
		OrderBy("created_at DESC")
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statuses})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []*media.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func scanTopic(scanner interface{ Scan(dest ...any) error }) (*media.Topic, error) {
	var (
		topic      media.Topic
		statusStr  string
		createdRaw string
	)
	if err := scanner.Scan(
		&topic.ID,
		&topic.ChannelID,
		&topic.Title,
		&topic.Rationale,
		&statusStr,
		&topic.SimilarityScore,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	topic.Status = media.TopicStatus(statusStr)
	if created, err := parseTimeString(createdRaw); err == nil {
		topic.CreatedAt = created
	}
	return &topic, nil
}
