// REST chat endpoint.
//
// This file exposes the browser-facing chat entrypoint:
//   - POST /api/chat
//
// Unlike the webhook, this endpoint is synchronous: the caller waits for the
// assistant reply. Validation failures map to 400; anything else degrades to
// a generic apology so the widget never renders an internal error.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ranvir80/lumo-assistant/internal/services"
)

// chatApology is returned on unexpected failures. Error details never reach
// the client.
const chatApology = "I'm sorry, something went wrong. Please try again! 🙏"

// ChatRequest is the JSON payload for the REST chat endpoint.
type ChatRequest struct {
	// UserID is a client-generated stable id (e.g. a browser session id).
	UserID  string `json:"userId" example:"web-3f2a9c"`
	Name    string `json:"name" example:"Asha"`
	Email   string `json:"email" example:"asha@example.com"`
	Message string `json:"message" example:"What is BoardBro?"`
}

// ChatResponse wraps the assistant reply.
type ChatResponse struct {
	Message string `json:"message"`
}

// Chat godoc
// @ID          chat
// @Summary     Ask the assistant
// @Description Validates the request, runs the conversation flow, and returns the assistant reply.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ChatResponse   "Generic apology"
// @Router      /api/chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	reply, err := h.chatSvc.Answer(c.Request.Context(), services.ChatRequest{
		UserID:  req.UserID,
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingField),
			errors.Is(err, services.ErrEmptyMessage),
			errors.Is(err, services.ErrInvalidEmail),
			errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("user_id", req.UserID).Msg("chat answer failed")
			ok(c, http.StatusInternalServerError, ChatResponse{Message: chatApology})
		}
		return
	}

	ok(c, http.StatusOK, ChatResponse{Message: reply})
}
