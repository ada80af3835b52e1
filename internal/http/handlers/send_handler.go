// Outbound send endpoint.
//
// This file exposes the operator-initiated delivery entrypoint:
//   - POST /send (Auth-Key protected)
//
// It forwards a message to the delivery bridge as-is. The pipeline does not
// go through this handler; it talks to the bridge directly.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SendRequest is the JSON payload for operator-initiated delivery.
type SendRequest struct {
	// JID is the recipient identity.
	JID string `json:"jid" binding:"required" example:"919921122233@s.whatsapp.net"`
	// Text is the message body; Message is accepted as an alias.
	Text     string `json:"text"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url"`
}

// Send godoc
// @ID          send
// @Summary     Send an outbound message
// @Tags        Send
// @Accept      json
// @Produce     json
//
// @Param       Auth-Key  header  string  true  "Shared admin secret"
// @Param       body      body    handlers.SendRequest  true  "Send payload"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Delivery failed"
// @Router      /send [post]
func (h *Handlers) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "jid is required")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(req.Message)
	}
	if text == "" && strings.TrimSpace(req.ImageURL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text or image_url is required")
		return
	}

	if err := h.sender.Send(c.Request.Context(), strings.TrimSpace(req.JID), text, strings.TrimSpace(req.ImageURL)); err != nil {
		fail(c, http.StatusBadGateway, ErrCodeSendFailed, "delivery bridge rejected the message")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true})
}
