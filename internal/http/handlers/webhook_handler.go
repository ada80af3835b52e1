// Webhook intake.
//
// This file exposes the messaging-bridge entrypoint:
//   - POST /webhook (acknowledge immediately, process in the background)
//
// The bridge redelivers on slow responses, so the handler validates the
// payload, acks right away, and hands the message to the pipeline on a
// detached context. Redeliveries of the same message_id are deduplicated
// inside the pipeline, not here.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ranvir80/lumo-assistant/internal/services"
)

// WebhookRequest is the JSON payload posted by the messaging bridge.
type WebhookRequest struct {
	// From is the sender identity (e.g. "919921122233@s.whatsapp.net").
	From string `json:"from" binding:"required"`
	// Text is the message body; empty for pure media messages.
	Text string `json:"text"`
	// MediaMimetype is set when the message carries an attachment.
	MediaMimetype string `json:"media_mimetype"`
	DisplayName   string `json:"display_name"`
	PlainPhone    string `json:"plain_phone"`
	// MessageID is the bridge's message id, used for redelivery dedup.
	MessageID string `json:"message_id"`
}

// WebhookResponse is the immediate ack body.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Webhook godoc
// @ID          webhook
// @Summary     Receive an inbound message
// @Description Validates the bridge payload, acks immediately, and processes the message asynchronously.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.WebhookRequest  true  "Inbound message payload"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: from is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.MediaMimetype) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must carry text or media")
		return
	}

	in := services.Inbound{
		Identity:    strings.TrimSpace(req.From),
		Phone:       strings.TrimSpace(req.PlainPhone),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Text:        strings.TrimSpace(req.Text),
		MessageID:   strings.TrimSpace(req.MessageID),
		MediaType:   strings.TrimSpace(req.MediaMimetype),
	}

	// Ack before processing: the bridge retries anything that takes longer
	// than its delivery timeout, and a model round-trip usually does.
	ok(c, http.StatusOK, WebhookResponse{Success: true, Message: "Message received"})

	// Detach from the request context so the ack's cancellation does not
	// abort the run mid-pipeline.
	bg, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.timeout())
	go func() {
		defer cancel()
		res, err := h.pipeline.Process(bg, in)
		if err != nil {
			log.Error().Err(err).
				Str("identity", in.Identity).
				Str("message_id", in.MessageID).
				Msg("webhook pipeline failed")
			return
		}
		log.Debug().
			Str("identity", in.Identity).
			Str("disposition", string(res.Disposition)).
			Msg("webhook message processed")
	}()
}
