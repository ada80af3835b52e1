// Package services – ChatService
//
// This file implements the synchronous chat flow behind the public REST
// endpoint: validate the request, upsert the user, fetch bounded history,
// call the model, screen the reply, persist the exchange, and return the
// reply text directly to the caller. Unlike the webhook pipeline there is
// no outbound delivery channel; the HTTP response is the delivery.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/classify"
	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/guard"
	"github.com/ranvir80/lumo-assistant/internal/llm"
	"github.com/ranvir80/lumo-assistant/internal/prompt"
	"github.com/ranvir80/lumo-assistant/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// emailRe accepts the pragmatic "local@domain.tld" shape; full RFC 5322
// validation buys nothing for a chat form.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ChatService answers synchronous chat requests.
type ChatService struct {
	DB            *gorm.DB
	Conversations *ConversationService
	Completer     llm.Completer

	// MaxMessageLen bounds the trimmed message, in runes.
	MaxMessageLen int
}

// ChatRequest is one inbound REST chat call.
type ChatRequest struct {
	UserID  string
	Name    string
	Email   string
	Message string
}

// Answer validates the request, runs the model and returns the screened
// reply. Validation failures return a sentinel error for the handler to
// translate; upstream failures degrade to a canned reply, never an error.
func (s *ChatService) Answer(ctx context.Context, req ChatRequest) (string, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(attribute.String("user.id", req.UserID)),
	)
	defer span.End()

	userID := strings.TrimSpace(req.UserID)
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	message := strings.TrimSpace(req.Message)

	if userID == "" || name == "" || email == "" {
		return "", ErrMissingField
	}
	if message == "" {
		return "", ErrEmptyMessage
	}
	if !emailRe.MatchString(email) {
		return "", ErrInvalidEmail
	}
	if s.MaxMessageLen > 0 && utf8.RuneCountInString(message) > s.MaxMessageLen {
		return "", fmt.Errorf("%w: limit %d characters", ErrMessageTooLong, s.MaxMessageLen)
	}

	user, err := repo.UpsertUser(ctx, s.DB, userID, normalizeName(name), email, "")
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}

	history := s.Conversations.Context(ctx, user.ID)
	s.Conversations.Append(ctx, user.ID, domain.RoleUser, message, repo.MessageOpts{})

	historyText := make([]string, 0, len(history))
	llmHistory := make([]llm.Message, 0, len(history))
	for _, m := range history {
		historyText = append(historyText, m.Content)
		llmHistory = append(llmHistory, llm.Message{Role: m.Role, Content: m.Content})
	}
	cls := classify.Message(message, historyText)

	var replyText string
	if cls.IsInjection {
		// No model call for detected injections; the deflection is fixed.
		replyText = DefensiveReply
		if _, err := repo.InsertInteraction(ctx, s.DB, user.ID, userID, "security_alert", "negative", map[string]any{
			"reason":  "prompt_injection_attempt",
			"message": truncate(message, 200),
		}); err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("security interaction persist failed")
		}
	} else {
		reply, llmErr := s.Completer.Complete(ctx, llm.Request{
			SystemPrompt: prompt.Assemble(cls.Tags),
			History:      llmHistory,
			UserMessage:  llm.SanitizeUserText(message),
			UserName:     name,
			Identity:     userID,
		})
		if llmErr != nil {
			log.Warn().Err(llmErr).Str("user_id", user.ID).Msg("completion degraded to fallback")
		}
		replyText = guard.Screen(reply.ReplyText).Reply

		if _, err := repo.InsertInteraction(ctx, s.DB, user.ID, userID, "chat", "neutral", map[string]any{
			"message_length":  len(message),
			"response_length": len(replyText),
		}); err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("chat interaction persist failed")
		}
	}

	s.Conversations.Append(ctx, user.ID, domain.RoleAssistant, replyText, repo.MessageOpts{})
	return replyText, nil
}
