// Package services – ConversationService
//
// This file implements the bounded per-user conversation store. Writes
// trigger retention enforcement (oldest unflagged messages beyond the limit
// are evicted); reads merge the most recent window with pinned/flagged
// messages into one chronological context.
//
// Persistence here is best effort on the hot path: a failed write is logged
// and swallowed, a failed read degrades to an empty context. A flaky
// database must never block message delivery.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/repo"
)

// ConversationService owns bounded message history for users.
type ConversationService struct {
	DB *gorm.DB

	// HistoryLimit caps retained unflagged messages per user.
	HistoryLimit int
	// ContextLimit is the recent-message window size for reads.
	ContextLimit int
	// FlaggedLimit caps pinned messages merged into the context.
	FlaggedLimit int
}

// Append persists one turn and enforces retention. Errors are logged and
// swallowed; the returned message is nil when the write failed.
func (s *ConversationService) Append(ctx context.Context, userID, role, content string, opts repo.MessageOpts) *domain.Message {
	m, err := repo.CreateMessage(ctx, s.DB, userID, role, content, opts)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("role", role).Msg("message persist failed")
		return nil
	}
	if err := repo.EnforceRetention(ctx, s.DB, userID, s.HistoryLimit); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("retention enforcement failed")
	}
	return m
}

// Context returns the bounded chronological context for the user. Storage
// errors degrade to an empty slice so the caller proceeds stateless.
func (s *ConversationService) Context(ctx context.Context, userID string) []domain.Message {
	msgs, err := repo.ListContext(ctx, s.DB, userID, s.ContextLimit, s.FlaggedLimit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("context fetch failed, proceeding stateless")
		return nil
	}
	return msgs
}

// SeenExternalID reports whether a message with the given provider id was
// already stored for the user, for webhook redelivery dedup. Errors count
// as "not seen" so a storage hiccup cannot drop a fresh message.
func (s *ConversationService) SeenExternalID(ctx context.Context, userID, externalID string) bool {
	seen, err := repo.HasMessageWithExternalID(ctx, s.DB, userID, externalID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("external id lookup failed")
		return false
	}
	return seen
}
