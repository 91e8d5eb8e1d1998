package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/sms"
)

// @Summary Inbound SMS webhook
// @Description Technician replies to dispatch alerts, form-encoded per the gateway
// @Tags webhooks
// @Accept x-www-form-urlencoded
// @Produce json
// @Success 200 {object} map[string]any
// @Router /webhook/sms [post]
func (h *Handler) SMSWebhook(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	if from == "" || body == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "From and Body are required", nil)
		return
	}

	action := sms.ParseResponse(body)
	h.Logger.Info().Str("from", from).Str("action", string(action)).Msg("inbound sms")

	switch action {
	case sms.ActionAccept:
		h.handleAccept(c, from, body)
	case sms.ActionReject:
		h.handleReject(c, from, body)
	default:
		h.Logger.Info().Str("from", from).Msg("unrecognized sms reply, ignoring")
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *Handler) handleAccept(c *gin.Context, from, body string) {
	ctx := c.Request.Context()

	n, err := h.Store.FindPendingByPhone(ctx, from)
	if err != nil {
		h.Logger.Warn().Err(err).Str("from", from).Msg("accept with no pending notification")
		return
	}

	claimed, err := h.Store.ClaimNotificationResponse(ctx, n.ID, body)
	if err != nil {
		h.Logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to claim notification")
		return
	}
	if !claimed {
		// Escalation sweeper got there first; the owner already owns this one.
		h.Logger.Info().Str("notification_id", n.ID).Msg("accept arrived after timeout")
		return
	}

	if err := h.Store.MarkAccepted(ctx, n.CallID, time.Now().UTC()); err != nil {
		h.Logger.Error().Err(err).Str("call_id", n.CallID).Msg("failed to mark call accepted")
		return
	}
	if err := h.Store.DeleteEscalation(ctx, n.ID); err != nil {
		h.Logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to clear escalation deadline")
	}

	call, err := h.Store.GetCall(ctx, n.CallID)
	if err != nil {
		h.Logger.Error().Err(err).Str("call_id", n.CallID).Msg("failed to load call after accept")
		return
	}
	if call.CustomerPhone == "" {
		return
	}

	techName := "Our technician"
	if call.AssignedTechID != nil {
		if tech, err := h.Store.GetTechnician(ctx, *call.AssignedTechID); err == nil {
			techName = tech.Name
		}
	}

	confirmation := sms.CustomerConfirmation(techName, call.PriorityLevel == models.PriorityEmergency)
	if err := h.Sender.Send(ctx, call.CustomerPhone, confirmation); err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("customer confirmation SMS failed")
	}
}

func (h *Handler) handleReject(c *gin.Context, from, body string) {
	ctx := c.Request.Context()

	n, err := h.Store.FindPendingByPhone(ctx, from)
	if err != nil {
		h.Logger.Warn().Err(err).Str("from", from).Msg("reject with no pending notification")
		return
	}

	// Attempt counter rides on the deadline row; a standard dispatch has no
	// deadline, so fall back to zero.
	attempt := 0
	if d, err := h.Store.GetEscalation(ctx, n.ID); err == nil {
		attempt = d.Attempt
	}

	claimed, err := h.Store.ClaimNotificationResponse(ctx, n.ID, body)
	if err != nil {
		h.Logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to claim notification")
		return
	}
	if !claimed {
		h.Logger.Info().Str("notification_id", n.ID).Msg("reject arrived after timeout")
		return
	}

	if err := h.Store.DeleteEscalation(ctx, n.ID); err != nil {
		h.Logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to clear escalation deadline")
	}

	call, err := h.Store.GetCall(ctx, n.CallID)
	if err != nil {
		h.Logger.Error().Err(err).Str("call_id", n.CallID).Msg("failed to load call after reject")
		return
	}
	if err := h.Escalator.Advance(ctx, call, attempt, "Technician rejected the dispatch"); err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("advance after reject failed")
	}
}
