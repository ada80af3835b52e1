// Package llm wraps the remote OpenAI-compatible completion API behind a
// small gateway interface. The gateway asks the model for a fixed-shape
// JSON object (reply text plus optional structured side effects) and is
// deliberately forgiving: transport failures, malformed JSON and a missing
// API key all degrade to a friendly fallback reply instead of surfacing an
// error to the end user.
package llm

import (
	"context"
	"regexp"
	"strings"
)

// Conversation roles accepted upstream.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Intents the model may report in a structured reply.
const (
	IntentGeneral           = "general"
	IntentAppointmentBook   = "appointment_book"
	IntentAppointmentView   = "appointment_view"
	IntentAppointmentCancel = "appointment_cancel"
	IntentProjectQuestion   = "project_question"
	IntentAIQuestion        = "ai_question"
	IntentPersonalQuestion  = "personal_question"
	IntentSecurityAlert     = "security_alert"
)

// Canned replies used when the upstream call cannot produce one.
const (
	// FallbackReply covers transport errors and upstream rejections.
	FallbackReply = "I apologize, but I'm having a moment of confusion. Could you please rephrase that? 😊"
	// DefaultReply substitutes an empty reply_text in an otherwise valid
	// structured response.
	DefaultReply = "I'm here to help! How can I assist you today?"
	// DemoReply is returned when no API key is configured.
	DemoReply = "🤖 (demo mode) Thanks for your message! The assistant is running without an AI backend right now, but Ranvir will get back to you soon."
)

// Message is a single conversation turn sent upstream.
type Message struct {
	Role    string
	Content string
}

// AppointmentAction is an optional side effect requested by the model.
type AppointmentAction struct {
	// Action is one of book, cancel or show.
	Action string `json:"action"`
	// SlotID identifies the slot to book.
	SlotID uint `json:"slot_id,omitempty"`
	// AppointmentID identifies the booking to cancel.
	AppointmentID uint `json:"appointment_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// InteractionNote is an optional audit entry requested by the model.
type InteractionNote struct {
	Type      string         `json:"type"`
	Sentiment string         `json:"sentiment"`
	Details   map[string]any `json:"details,omitempty"`
}

// StructuredReply mirrors the JSON object the model is instructed to emit.
type StructuredReply struct {
	Analysis          string             `json:"analysis"`
	Intent            string             `json:"intent"`
	ReplyText         string             `json:"reply_text"`
	AppointmentAction *AppointmentAction `json:"appointment_action,omitempty"`
	InteractionLog    *InteractionNote   `json:"interaction_log,omitempty"`
	NotifyAdmin       bool               `json:"notify_admin,omitempty"`
	AdminText         string             `json:"admin_text,omitempty"`
	ImageURL          string             `json:"image_url,omitempty"`
}

// Request carries everything the gateway needs for one completion.
type Request struct {
	// SystemPrompt is the assembled prompt for this message's topics.
	SystemPrompt string
	// History is the bounded conversation context, oldest first.
	History []Message
	// UserMessage is the sanitized current user turn.
	UserMessage string
	// UserName and Identity annotate the user turn with minimal,
	// non-sensitive context.
	UserName string
	Identity string
	// ContextInfo is an optional pre-rendered block (available slots,
	// existing bookings) appended to the user turn.
	ContextInfo string
}

// Completer produces a structured reply for one request. Implementations
// must always return a usable reply; the error is informational only and
// carries the upstream failure for logging.
type Completer interface {
	Complete(ctx context.Context, req Request) (*StructuredReply, error)
}

// Control-token markers stripped from user text before it is sent upstream.
var controlTokens = []*regexp.Regexp{
	regexp.MustCompile(`<\|.*?\|>`),
	regexp.MustCompile(`(?i)\{system\}`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)</?s>`),
}

// SanitizeUserText strips raw control-token markers from user input. The
// markers carry no conversational meaning and some upstream models treat
// them as template delimiters.
func SanitizeUserText(s string) string {
	for _, re := range controlTokens {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
