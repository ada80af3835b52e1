// Admin endpoints.
//
// This file exposes the Auth-Key protected operator surface:
//   - POST /admin/slots  (publish an open appointment slot)
//   - GET  /admin/slots  (list open slots)
//   - POST /admin/block  (silently blocklist an identity)
//
// Authentication is enforced by middleware.RequireAuthKey on the route group,
// not here.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ranvir80/lumo-assistant/internal/domain"
	"github.com/ranvir80/lumo-assistant/internal/repo"
	"github.com/ranvir80/lumo-assistant/internal/utils"
)

// CreateSlotRequest is the JSON payload for publishing an appointment slot.
type CreateSlotRequest struct {
	// SlotDatetime is the slot start in RFC3339 (e.g. "2026-09-03T15:00:00+05:30").
	SlotDatetime string `json:"slot_datetime" binding:"required" example:"2026-09-03T15:00:00+05:30"`
}

// BlockRequest is the JSON payload for manually blocklisting an identity.
type BlockRequest struct {
	// JID is the identity to block.
	JID    string `json:"jid" binding:"required" example:"919921122233@s.whatsapp.net"`
	Reason string `json:"reason" example:"abusive messages"`
}

// ListSlotsResponse wraps the open slots offered for booking.
type ListSlotsResponse struct {
	Slots []domain.AppointmentSlot `json:"slots"`
	Count int                      `json:"count"`
}

// CreateSlot godoc
// @ID          createSlot
// @Summary     Publish an appointment slot
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       Auth-Key  header  string  true  "Shared admin secret"
// @Param       body      body    handlers.CreateSlotRequest  true  "Slot payload"
//
// @Success     201  {object}  domain.AppointmentSlot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/slots [post]
func (h *Handlers) CreateSlot(c *gin.Context) {
	var req CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slot_datetime is required")
		return
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(req.SlotDatetime))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slot_datetime must be RFC3339")
		return
	}
	if at.Before(h.clock()) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slot_datetime must be in the future")
		return
	}

	slot, err := h.slots.CreateSlot(c.Request.Context(), at)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create slot")
		return
	}
	ok(c, http.StatusCreated, slot)
}

// ListSlots godoc
// @ID          listSlots
// @Summary     List open appointment slots
// @Tags        Admin
// @Produce     json
//
// @Param       Auth-Key  header  string  true   "Shared admin secret"
// @Param       limit     query   int     false  "Max slots returned"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListSlotsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/slots [get]
func (h *Handlers) ListSlots(c *gin.Context) {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)
	limit := utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	slots, err := h.slots.ListAvailable(c.Request.Context(), h.clock(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list slots")
		return
	}
	ok(c, http.StatusOK, ListSlotsResponse{Slots: slots, Count: len(slots)})
}

// Block godoc
// @ID          blockIdentity
// @Summary     Silently blocklist an identity
// @Description Adds the identity to the silent blocklist; subsequent messages are dropped without any reply.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       Auth-Key  header  string  true  "Shared admin secret"
// @Param       body      body    handlers.BlockRequest  true  "Block payload"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/block [post]
func (h *Handlers) Block(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "jid is required")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Manual block"
	}

	if err := repo.InsertBlock(c.Request.Context(), h.db, strings.TrimSpace(req.JID), domain.BlockSilent, reason); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeBlockFailed, "could not block identity")
		return
	}
	ok(c, http.StatusOK, gin.H{"success": true, "jid": strings.TrimSpace(req.JID)})
}
