// Package services – MessagePipeline
//
// This file implements the orchestrator that every inbound chat message
// flows through: block checks, spam tracking, user upsert, attachment
// short-circuit, history fetch, context classification, the model call,
// structured side effects (booking, audit log, admin notification), the
// leak guard, and finally delivery plus persistence of the exchange.
//
// Every stage can short-circuit. Abuse conditions resolve silently or with
// a deflecting reply; upstream failures degrade to canned replies. The
// pipeline never propagates a raw error to the end user: the worst case is
// a single generic apology.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/abuse"
	"github.com/ranvir80/lumo-assistant/internal/classify"
	"github.com/ranvir80/lumo-assistant/internal/delivery"
	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/guard"
	"github.com/ranvir80/lumo-assistant/internal/llm"
	"github.com/ranvir80/lumo-assistant/internal/prompt"
	"github.com/ranvir80/lumo-assistant/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Canned replies owned by the pipeline.
const (
	// DefensiveReply answers detected injection attempts below the block
	// threshold.
	DefensiveReply = "I'd be happy to help you! 😊 What can I do for you today?"
	// AttachmentReply acknowledges binary/media payloads.
	AttachmentReply = "Got your file! 📎 I'll make sure Ranvir sees this."
	// ApologyReply is the last-resort answer when the pipeline itself
	// failed mid-flight.
	ApologyReply = "Sorry, something went wrong on my side. Please try again in a moment! 🙏"
)

// Inbound is one normalized incoming message, transport-agnostic.
type Inbound struct {
	// Identity is the opaque per-user key (e.g. a WhatsApp JID).
	Identity    string
	Phone       string
	DisplayName string
	Email       string
	Text        string
	// MessageID is the provider's message id, used for redelivery dedup.
	MessageID string
	// MediaType is the attachment mimetype; empty for plain text.
	MediaType string
}

// Disposition says how the pipeline resolved a message.
type Disposition string

const (
	DispositionReplied    Disposition = "replied"
	DispositionSilent     Disposition = "silent_drop"
	DispositionBlocked    Disposition = "blocked"
	DispositionDuplicate  Disposition = "duplicate"
	DispositionAttachment Disposition = "attachment"
	DispositionDeflected  Disposition = "deflected"
	DispositionFailed     Disposition = "failed"
)

// Result reports the outcome of one pipeline run.
type Result struct {
	Disposition Disposition
	// Reply is the text sent to the user; empty for silent outcomes.
	Reply string
}

// MessagePipeline wires the per-message processing sequence.
type MessagePipeline struct {
	DB            *gorm.DB
	Conversations *ConversationService
	Appointments  *AppointmentService
	Completer     llm.Completer
	Sender        delivery.Sender
	Notifier      *delivery.Notifier

	SpamCounter      abuse.Counter
	InjectionCounter abuse.Counter
	// SpamMax is the allowed messages per spam window; one more blocks.
	SpamMax int
	// InjectionMax attempts within the injection window trigger a block.
	InjectionMax int

	// SlotListLimit caps how many open slots are offered to the model.
	SlotListLimit int

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

func (p *MessagePipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Process runs the full sequence for one inbound message. The returned
// error reports internal failures for logging; the user-visible outcome is
// always in the Result, and a mid-flight failure still produces a single
// apology reply.
func (p *MessagePipeline) Process(ctx context.Context, in Inbound) (Result, error) {
	tr := otel.Tracer("services/MessagePipeline")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.String("message.identity", in.Identity)),
	)
	defer span.End()

	res, err := p.process(ctx, in)
	if err != nil {
		log.Error().Err(err).Str("identity", in.Identity).Msg("pipeline failed")
		if sendErr := p.Sender.Send(ctx, in.Identity, ApologyReply, ""); sendErr != nil {
			log.Error().Err(sendErr).Str("identity", in.Identity).Msg("apology delivery failed")
		}
		pipelineMessages.WithLabelValues(string(DispositionFailed)).Inc()
		return Result{Disposition: DispositionFailed, Reply: ApologyReply}, err
	}
	pipelineMessages.WithLabelValues(string(res.Disposition)).Inc()
	return res, nil
}

func (p *MessagePipeline) process(ctx context.Context, in Inbound) (Result, error) {
	// Silent blocklist first: no reply, no persistence, no trace to the
	// sender that anything happened.
	if blocked, err := repo.IsBlocked(ctx, p.DB, in.Identity, domain.BlockSilent); err != nil {
		return Result{}, err
	} else if blocked {
		log.Info().Str("identity", in.Identity).Msg("silently dropping message from blocked identity")
		return Result{Disposition: DispositionSilent}, nil
	}

	if blocked, err := repo.IsBlocked(ctx, p.DB, in.Identity, domain.BlockSpam); err != nil {
		return Result{}, err
	} else if blocked {
		log.Info().Str("identity", in.Identity).Msg("dropping message from spam-blocked identity")
		return Result{Disposition: DispositionSilent}, nil
	}

	if count := p.SpamCounter.Hit(in.Identity); count > p.SpamMax {
		log.Warn().Str("identity", in.Identity).Int("count", count).Msg("spam threshold exceeded, blocking")
		reason := fmt.Sprintf("Spam: %d messages in rate window", count)
		if err := repo.InsertBlock(ctx, p.DB, in.Identity, domain.BlockSpam, reason); err != nil {
			log.Error().Err(err).Str("identity", in.Identity).Msg("spam block persist failed")
		}
		p.SpamCounter.Reset(in.Identity)
		return Result{Disposition: DispositionBlocked}, nil
	}

	user, err := repo.UpsertUser(ctx, p.DB, in.Identity, normalizeName(in.DisplayName), in.Email, in.Phone)
	if err != nil {
		return Result{}, fmt.Errorf("upsert user: %w", err)
	}

	// Webhook providers redeliver on timeout; a message id we already
	// stored means this exchange is done.
	if in.MessageID != "" && p.Conversations.SeenExternalID(ctx, user.ID, in.MessageID) {
		log.Info().Str("identity", in.Identity).Str("message_id", in.MessageID).Msg("duplicate delivery ignored")
		return Result{Disposition: DispositionDuplicate}, nil
	}

	if in.MediaType != "" {
		return p.handleAttachment(ctx, user, in)
	}

	p.Conversations.Append(ctx, user.ID, domain.RoleUser, in.Text, repo.MessageOpts{ExternalID: in.MessageID})

	history := p.Conversations.Context(ctx, user.ID)

	historyText := make([]string, 0, len(history))
	for _, m := range history {
		historyText = append(historyText, m.Content)
	}
	cls := classify.Message(in.Text, historyText)

	if cls.IsInjection {
		return p.handleInjection(ctx, user, in)
	}

	contextInfo := ""
	if hasTag(cls.Tags, classify.TagAppointment) {
		contextInfo = p.appointmentContext(ctx, user.ID)
	}

	llmHistory := make([]llm.Message, 0, len(history))
	for _, m := range history {
		llmHistory = append(llmHistory, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, llmErr := p.Completer.Complete(ctx, llm.Request{
		SystemPrompt: prompt.Assemble(cls.Tags),
		History:      llmHistory,
		UserMessage:  llm.SanitizeUserText(in.Text),
		UserName:     user.DisplayName,
		Identity:     in.Identity,
		ContextInfo:  contextInfo,
	})
	if llmErr != nil {
		// The gateway already substituted a fallback reply.
		log.Warn().Err(llmErr).Str("identity", in.Identity).Msg("completion degraded to fallback")
	}

	finalReply := reply.ReplyText

	if reply.AppointmentAction != nil {
		finalReply = p.applyAppointmentAction(ctx, user, in, reply.AppointmentAction, finalReply)
	}

	if note := reply.InteractionLog; note != nil {
		if _, err := repo.InsertInteraction(ctx, p.DB, user.ID, in.Identity, note.Type, note.Sentiment, note.Details); err != nil {
			log.Error().Err(err).Str("identity", in.Identity).Msg("interaction log persist failed")
		}
	}

	if reply.NotifyAdmin && reply.AdminText != "" {
		p.Notifier.Notify(ctx, fmt.Sprintf("💬 Message from %s\n\n%s", user.DisplayName, reply.AdminText))
	}

	screened := guard.Screen(finalReply)
	if screened.Leaked {
		log.Warn().Str("identity", in.Identity).Strs("matches", screened.Matches).Msg("reply leak suppressed")
		p.Notifier.Notify(ctx, fmt.Sprintf(
			"🚨 CRITICAL: AI Response Leak Prevented\n\nUser: %s (%s)\nQuery: %s\n\nLeaked: %s",
			user.DisplayName, in.Identity, truncate(in.Text, 200), truncate(finalReply, 300)))
	}
	finalReply = screened.Reply

	if err := p.Sender.Send(ctx, in.Identity, finalReply, reply.ImageURL); err != nil {
		log.Error().Err(err).Str("identity", in.Identity).Msg("reply delivery failed")
	}
	p.Conversations.Append(ctx, user.ID, domain.RoleAssistant, finalReply, repo.MessageOpts{})

	return Result{Disposition: DispositionReplied, Reply: finalReply}, nil
}

// handleAttachment acknowledges media payloads without involving the model.
func (p *MessagePipeline) handleAttachment(ctx context.Context, user *domain.User, in Inbound) (Result, error) {
	text := in.Text
	if text == "" {
		text = "[Attachment]"
	}
	if err := p.Sender.Send(ctx, in.Identity, AttachmentReply, ""); err != nil {
		log.Error().Err(err).Str("identity", in.Identity).Msg("attachment ack delivery failed")
	}
	p.Conversations.Append(ctx, user.ID, domain.RoleUser, text, repo.MessageOpts{ExternalID: in.MessageID, MediaType: in.MediaType})
	p.Conversations.Append(ctx, user.ID, domain.RoleAssistant, AttachmentReply, repo.MessageOpts{})
	p.Notifier.Notify(ctx, fmt.Sprintf(
		"📎 File Received\n\nFrom: %s\nPhone: %s\nType: %s\nMessage: %s",
		user.DisplayName, in.Phone, in.MediaType, orDefault(in.Text, "No text")))
	return Result{Disposition: DispositionAttachment, Reply: AttachmentReply}, nil
}

// handleInjection answers a detected injection attempt. Repeat offenders
// within the tracking window are blocked outright; everyone else gets a
// fixed deflection so the attempt yields nothing to probe.
func (p *MessagePipeline) handleInjection(ctx context.Context, user *domain.User, in Inbound) (Result, error) {
	injectionAttempts.Inc()
	count := p.InjectionCounter.Hit(in.Identity)

	if count >= p.InjectionMax {
		log.Warn().Str("identity", in.Identity).Int("attempts", count).Msg("auto-blocking for repeated injection attempts")
		reason := fmt.Sprintf("Auto-blocked: %d prompt injection attempts", count)
		if err := repo.InsertBlock(ctx, p.DB, in.Identity, domain.BlockSilent, reason); err != nil {
			log.Error().Err(err).Str("identity", in.Identity).Msg("injection block persist failed")
		}
		if _, err := repo.InsertInteraction(ctx, p.DB, user.ID, in.Identity, "security_block", "negative", map[string]any{
			"reason": "repeated_injection_attempts",
			"count":  count,
		}); err != nil {
			log.Error().Err(err).Str("identity", in.Identity).Msg("security interaction persist failed")
		}
		p.Notifier.Notify(ctx, fmt.Sprintf(
			"🚨 AUTO-BLOCKED - Repeated Injection Attempts\n\nUser: %s\nPhone: %s\nJID: %s\n\nMessage: %s",
			user.DisplayName, in.Phone, in.Identity, truncate(in.Text, 300)))
		p.InjectionCounter.Reset(in.Identity)
		return Result{Disposition: DispositionBlocked}, nil
	}

	if err := p.Sender.Send(ctx, in.Identity, DefensiveReply, ""); err != nil {
		log.Error().Err(err).Str("identity", in.Identity).Msg("defensive reply delivery failed")
	}
	p.Conversations.Append(ctx, user.ID, domain.RoleAssistant, DefensiveReply, repo.MessageOpts{})

	if _, err := repo.InsertInteraction(ctx, p.DB, user.ID, in.Identity, "security_alert", "negative", map[string]any{
		"reason":  "prompt_injection_attempt",
		"message": truncate(in.Text, 200),
	}); err != nil {
		log.Error().Err(err).Str("identity", in.Identity).Msg("security interaction persist failed")
	}
	p.Notifier.Notify(ctx, fmt.Sprintf(
		"🚨 SECURITY ALERT - Prompt Injection Attempt #%d\n\nUser: %s\nPhone: %s\n\nMessage: %s",
		count, user.DisplayName, in.Phone, truncate(in.Text, 300)))

	return Result{Disposition: DispositionDeflected, Reply: DefensiveReply}, nil
}

// appointmentContext renders the slot and booking state offered to the
// model. Lookup failures degrade to an empty block.
func (p *MessagePipeline) appointmentContext(ctx context.Context, userID string) string {
	var b strings.Builder

	limit := p.SlotListLimit
	if limit <= 0 {
		limit = 5
	}
	slots, err := p.Appointments.ListAvailable(ctx, p.now(), limit)
	if err != nil {
		log.Error().Err(err).Msg("slot lookup failed")
	}
	if len(slots) > 0 {
		b.WriteString("Available Slots:\n")
		for i, s := range slots {
			fmt.Fprintf(&b, "%d. %s (ID: %d)\n", i+1, s.SlotTime.Format("Mon, 02 Jan 2006 15:04 MST"), s.ID)
		}
	}

	upcoming, past, err := p.Appointments.ListForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("booking lookup failed")
	}
	if len(upcoming) > 0 {
		b.WriteString("\nUpcoming Appointments:\n")
		for _, a := range upcoming {
			fmt.Fprintf(&b, "- %s %s [ID: %d]\n", a.SlotTime.Format("Mon, 02 Jan 2006 15:04 MST"), a.Reason, a.ID)
		}
	}
	if len(past) > 0 {
		b.WriteString("\nPast Appointments:\n")
		n := len(past)
		if n > 3 {
			past = past[n-3:]
		}
		for _, a := range past {
			fmt.Fprintf(&b, "- %s - %s\n", a.SlotTime.Format("Mon, 02 Jan 2006 15:04 MST"), a.Status)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// applyAppointmentAction executes a booking side effect requested by the
// model and folds the outcome into the reply text. Booking conflicts are
// normal user-facing sentences, not errors.
func (p *MessagePipeline) applyAppointmentAction(ctx context.Context, user *domain.User, in Inbound, action *llm.AppointmentAction, reply string) string {
	switch action.Action {
	case "book":
		if action.SlotID == 0 {
			return reply
		}
		slot, err := p.Appointments.Book(ctx, action.SlotID, user.ID, in.Identity, user.DisplayName, action.Reason)
		if err != nil {
			bookingOutcomes.WithLabelValues("book", "rejected").Inc()
			return reply + "\n\n❌ " + bookingErrorMessage(err, p.Appointments.CancelWindow)
		}
		bookingOutcomes.WithLabelValues("book", "ok").Inc()
		p.Notifier.Notify(ctx, fmt.Sprintf(
			"📅 New Appointment!\n\nWith: %s\nPhone: %s\nTime: %s\nReason: %s",
			user.DisplayName, in.Phone, slot.SlotTime.Format("Mon, 02 Jan 2006 15:04 MST"),
			orDefault(action.Reason, "Not specified")))
	case "cancel":
		id := action.AppointmentID
		if id == 0 {
			id = action.SlotID
		}
		if id == 0 {
			return reply
		}
		slot, err := p.Appointments.Cancel(ctx, id, user.ID)
		if err != nil {
			bookingOutcomes.WithLabelValues("cancel", "rejected").Inc()
			return reply + "\n\n❌ " + bookingErrorMessage(err, p.Appointments.CancelWindow)
		}
		bookingOutcomes.WithLabelValues("cancel", "ok").Inc()
		p.Notifier.Notify(ctx, fmt.Sprintf(
			"❌ Appointment Cancelled\n\nUser: %s\nTime: %s",
			user.DisplayName, slot.SlotTime.Format("Mon, 02 Jan 2006 15:04 MST")))
	}
	return reply
}

// bookingErrorMessage maps booking errors to the sentence shown in chat.
func bookingErrorMessage(err error, cancelWindow time.Duration) string {
	switch {
	case errors.Is(err, ErrActiveBookingExists):
		return "You already have an active booking. Please cancel it first or wait until it completes."
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotTaken):
		return "This slot is no longer available. Please choose another."
	case errors.Is(err, ErrBookingNotFound):
		return "Appointment not found or already cancelled."
	case errors.Is(err, ErrCancelWindowClosed):
		return fmt.Sprintf("Cancellation is only allowed within %d hours of booking.", int(cancelWindow.Hours()))
	default:
		return "An error occurred while processing your appointment. Please try again."
	}
}

// normalizeName title-cases human display names so stored profiles look
// consistent regardless of how the bridge or the web form capitalized them.
func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(s))
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
