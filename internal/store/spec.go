package store

import (
	"context"
	"fmt"

	"apogee/internal/media"
	"apogee/internal/services"
)

// BuildVideoSpec reassembles the full work item (video + topic title +
// script + claims) for downstream media production. Fails with an
// invariant error when the script the review stage approved is missing.
func (s *Store) BuildVideoSpec(ctx context.Context, videoID string) (*media.VideoSpec, error) {
	video, err := s.VideoByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrInvariant, "store", "build video spec", fmt.Sprintf("video %s not found", videoID), nil)
	}

	topic, err := s.TopicByID(ctx, video.TopicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, services.Wrap(services.ErrInvariant, "store", "build video spec", fmt.Sprintf("topic %s not found", video.TopicID), nil)
	}

	script, err := s.ScriptForVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if script == nil {
		return nil, services.Wrap(services.ErrInvariant, "store", "build video spec", fmt.Sprintf("script for video %s not found", videoID), nil)
	}

	claims, err := s.ClaimsForVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, services.Wrap(services.ErrInvariant, "store", "build video spec", fmt.Sprintf("no claims for video %s", videoID), nil)
	}

	return &media.VideoSpec{
		VideoID:    video.ID,
		TopicID:    video.TopicID,
		TopicTitle: topic.Title,
		ChannelID:  video.ChannelID,
		Status:     video.Status,
		Claims:     claims,
		Script:     *script,
		CreatedAt:  video.CreatedAt,
	}, nil
}
