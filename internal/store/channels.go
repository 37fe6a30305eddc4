package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is a content channel the pipeline produces for.
type Channel struct {
	ID        string
	Name      string
	Niche     string
	CreatedAt time.Time
}

// ErrNoChannel indicates no channel has been seeded yet.
var ErrNoChannel = errors.New("no channel configured")

// FirstChannelID returns the identifier of the oldest configured channel.
func (s *Store) FirstChannelID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM channels ORDER BY created_at ASC LIMIT 1",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoChannel
	}
	if err != nil {
		return "", fmt.Errorf("fetch channel: %w", err)
	}
	return id, nil
}

// ChannelByID fetches a channel, or nil when absent.
func (s *Store) ChannelByID(ctx context.Context, id string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, COALESCE(niche, ''), created_at FROM channels WHERE id = ?", id)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return channel, nil
}

// EnsureChannel returns the existing channel with the given name or creates
// it.
func (s *Store) EnsureChannel(ctx context.Context, name, niche string) (*Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("channel name is required")
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, COALESCE(niche, ''), created_at FROM channels WHERE name = ?", name)
	channel, err := scanChannel(row)
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find channel: %w", err)
	}

	channel = &Channel{
		ID:        uuid.NewString(),
		Name:      name,
		Niche:     strings.TrimSpace(niche),
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.execWithRetry(ctx,
		"INSERT INTO channels (id, name, niche, created_at) VALUES (?, ?, ?, ?)",
		channel.ID, channel.Name, nullableString(channel.Niche), timestamp(channel.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return channel, nil
}

func scanChannel(scanner interface{ Scan(dest ...any) error }) (*Channel, error) {
	var (
		channel    Channel
		createdRaw string
	)
	if err := scanner.Scan(&channel.ID, &channel.Name, &channel.Niche, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		channel.CreatedAt = created
	}
	return &channel, nil
}
