// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including retention enforcement and the merged recent+flagged
// context read used by the conversation store.
package repo

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
)

// MessageOpts carries the optional attributes of a stored message.
type MessageOpts struct {
	ExternalID string
	IsFlagged  bool
	MediaType  string
}

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, userID, role, content string, opts MessageOpts) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		UserID:     userID,
		Role:       role,
		Content:    content,
		ExternalID: opts.ExternalID,
		IsFlagged:  opts.IsFlagged,
		MediaType:  opts.MediaType,
		CreatedAt:  time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// EnforceRetention deletes everything but the user's most recent `limit`
// unflagged messages. Flagged messages survive retention; they are merged
// back into the context at read time, capped independently.
func EnforceRetention(ctx context.Context, db *gorm.DB, userID string, limit int) error {
	if limit <= 0 {
		return nil
	}
	var keep []string
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("user_id = ? AND is_flagged = ?", userID, false).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Pluck("id", &keep).Error
	if err != nil {
		return err
	}
	if len(keep) < limit {
		return nil
	}
	return db.WithContext(ctx).
		Where("user_id = ? AND is_flagged = ? AND id NOT IN ?", userID, false, keep).
		Delete(&domain.Message{}).Error
}

// ListContext returns the conversation context for a user: the most recent
// `recentLimit` messages plus up to `flaggedLimit` flagged messages not
// already present, merged, deduplicated by id, and sorted ascending by
// timestamp. The result size never exceeds recentLimit+flaggedLimit.
func ListContext(ctx context.Context, db *gorm.DB, userID string, recentLimit, flaggedLimit int) ([]domain.Message, error) {
	var recent []domain.Message
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(recentLimit).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(recent))
	for _, m := range recent {
		seen[m.ID] = struct{}{}
	}

	merged := recent
	if flaggedLimit > 0 {
		var flagged []domain.Message
		err = db.WithContext(ctx).
			Where("user_id = ? AND is_flagged = ?", userID, true).
			Order("created_at DESC, id DESC").
			Limit(flaggedLimit).
			Find(&flagged).Error
		if err != nil {
			return nil, err
		}
		for _, m := range flagged {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE user_id = ?", userID).Scan(&total).Error
	return total, err
}

// HasMessageWithExternalID reports whether a message with the given inbound
// channel id already exists for the user. Used to drop webhook redeliveries.
func HasMessageWithExternalID(ctx context.Context, db *gorm.DB, userID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("user_id = ? AND external_id = ?", userID, externalID).
		Count(&n).Error
	return n > 0, err
}
