// Handler wiring.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Business rules (spam and
// injection policy, booking semantics, prompt assembly) live in the services
// layer; nothing in this package should grow domain logic.
package handlers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ranvir80/lumo-assistant/internal/delivery"
	"github.com/ranvir80/lumo-assistant/internal/services"
)

//
// Service contracts (context-aware)
//

// MessagePipeline runs the full per-message flow for webhook traffic.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessagePipeline interface {
	// Process handles one inbound message end to end and reports how it
	// was resolved.
	Process(ctx context.Context, in services.Inbound) (services.Result, error)
}

// ChatAnswerer produces an assistant reply for the REST chat endpoint.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatAnswerer interface {
	// Answer validates the request, runs the conversation flow, and
	// returns the reply text.
	Answer(ctx context.Context, req services.ChatRequest) (string, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints: webhook intake, REST chat, outbound
// send, and the Auth-Key protected admin surface.
type Handlers struct {
	pipeline MessagePipeline
	chatSvc  ChatAnswerer
	slots    *services.AppointmentService
	sender   delivery.Sender
	db       *gorm.DB

	// webhookTimeout bounds the detached background run kicked off by the
	// webhook ack. Zero means a 60s default.
	webhookTimeout time.Duration

	// now is the clock, overridable in tests. Nil means time.Now.
	now func() time.Time
}

// New constructs a Handlers instance bound to the given collaborators.
func New(pipeline MessagePipeline, chatSvc ChatAnswerer, slots *services.AppointmentService, sender delivery.Sender, db *gorm.DB) *Handlers {
	return &Handlers{
		pipeline: pipeline,
		chatSvc:  chatSvc,
		slots:    slots,
		sender:   sender,
		db:       db,
	}
}

func (h *Handlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *Handlers) timeout() time.Duration {
	if h.webhookTimeout > 0 {
		return h.webhookTimeout
	}
	return 60 * time.Second
}
