package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/region"
)

// TelephonyEvent is the provider's webhook envelope. The provider sends one
// envelope shape for every event kind; which fields are populated depends on
// the type.
type TelephonyEvent struct {
	Type    string           `json:"type"`
	Call    TelephonyCall    `json:"call"`
	Message TelephonyMessage `json:"message"`
}

type TelephonyCall struct {
	ID       string `json:"id"`
	Customer struct {
		Number string `json:"number"`
	} `json:"customer"`
	Transcript      string `json:"transcript"`
	RecordingURL    string `json:"recordingUrl"`
	DurationSeconds *int   `json:"duration"`
	Status          string `json:"status"`
}

type TelephonyMessage struct {
	Transcript   string `json:"transcript"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	FunctionCall struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
	} `json:"functionCall"`
}

// @Summary Telephony provider webhook
// @Description Call lifecycle events: call-started, transcript, function-call, status-update, call-ended
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /webhook/telephony [post]
func (h *Handler) TelephonyWebhook(c *gin.Context) {
	var ev TelephonyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	h.Logger.Info().Str("type", ev.Type).Str("provider_call_id", ev.Call.ID).Msg("telephony event")

	switch ev.Type {
	case "call-started":
		h.callStarted(c, ev)
	case "transcript":
		h.transcriptUpdate(c, ev)
	case "function-call":
		// Tool invocations arrive on their own synchronous endpoints; the
		// copy embedded in the event stream is acknowledged and ignored.
		c.JSON(http.StatusOK, gin.H{"status": "received", "function": ev.Message.FunctionCall.Name})
	case "status-update":
		h.statusUpdate(c, ev)
	case "call-ended":
		h.callEnded(c, ev)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	}
}

func (h *Handler) callStarted(c *gin.Context, ev TelephonyEvent) {
	call, err := h.Store.CreateCall(c.Request.Context(), models.Call{
		BusinessID:     h.DefaultBusinessID,
		ProviderCallID: ev.Call.ID,
		CustomerPhone:  ev.Call.Customer.Number,
		Status:         models.CallInProgress,
	})
	if err != nil {
		h.Logger.Error().Err(err).Str("provider_call_id", ev.Call.ID).Msg("failed to create call")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create call", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "call_created", "call_id": call.ID})
}

func (h *Handler) transcriptUpdate(c *gin.Context, ev TelephonyEvent) {
	if ev.Message.Transcript == "" {
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	call, err := h.Store.GetCallByProviderID(c.Request.Context(), ev.Call.ID)
	if err != nil {
		// Transcript fragments can beat the start event; drop them rather
		// than failing the provider's delivery.
		h.Logger.Warn().Err(err).Str("provider_call_id", ev.Call.ID).Msg("transcript for unknown call")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	speaker := "Agent"
	if ev.Message.Role == "user" {
		speaker = "Customer"
	}
	line := "\n" + speaker + ": " + ev.Message.Transcript
	if err := h.Store.AppendTranscript(c.Request.Context(), call.ID, line); err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to append transcript")
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *Handler) statusUpdate(c *gin.Context, ev TelephonyEvent) {
	token := ev.Message.Status
	if token == "" {
		token = ev.Call.Status
	}
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	call, err := h.Store.GetCallByProviderID(c.Request.Context(), ev.Call.ID)
	if err != nil {
		h.Logger.Warn().Err(err).Str("provider_call_id", ev.Call.ID).Msg("status update for unknown call")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	if err := h.Store.UpdateCallStatus(c.Request.Context(), call.ID, models.ProviderStatus(token)); err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to update call status")
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *Handler) callEnded(c *gin.Context, ev TelephonyEvent) {
	ctx := c.Request.Context()

	call, err := h.Store.GetCallByProviderID(ctx, ev.Call.ID)
	switch {
	case err == nil:
		if err := h.Store.FinalizeCall(ctx, call.ID, ev.Call.Transcript, ev.Call.RecordingURL, ev.Call.DurationSeconds); err != nil {
			h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to finalize call")
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to finalize call", err.Error())
			return
		}
	case errors.Is(err, pgx.ErrNoRows):
		// Start event never arrived; create the record retroactively.
		call, err = h.Store.CreateCall(ctx, models.Call{
			BusinessID:      h.DefaultBusinessID,
			ProviderCallID:  ev.Call.ID,
			CustomerPhone:   ev.Call.Customer.Number,
			Transcript:      ev.Call.Transcript,
			RecordingURL:    ev.Call.RecordingURL,
			DurationSeconds: ev.Call.DurationSeconds,
			Status:          models.CallCompleted,
		})
		if err != nil {
			h.Logger.Error().Err(err).Str("provider_call_id", ev.Call.ID).Msg("failed to create call retroactively")
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create call", err.Error())
			return
		}
	default:
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load call", err.Error())
		return
	}

	h.triageCompletedCall(c, call, ev.Call.Transcript)
	c.JSON(http.StatusOK, gin.H{"status": "completed", "call_id": call.ID})
}

// triageCompletedCall classifies a finished call and dispatches if it turns
// out to be an emergency. Calls already routed mid-conversation by the
// dispatch-emergency tool are left alone.
func (h *Handler) triageCompletedCall(c *gin.Context, call models.Call, finalTranscript string) {
	switch call.Status {
	case models.CallDispatched, models.CallAccepted, models.CallEscalated:
		return
	}

	transcript := finalTranscript
	if transcript == "" {
		transcript = call.Transcript
	}
	if transcript == "" {
		return
	}

	ctx := c.Request.Context()

	reg := ""
	if business, err := h.Store.GetBusiness(ctx, call.BusinessID); err == nil {
		reg = business.Region
	}
	if reg == "" {
		reg = region.Resolve(call.CustomerPhone)
	}

	result := h.Classifier.Classify(ctx, transcript, reg)

	priority := models.PriorityStandard
	if result.IsEmergency {
		priority = models.PriorityEmergency
	}
	if err := h.Store.SetCallPriority(ctx, call.ID, priority); err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to set call priority")
		return
	}
	call.PriorityLevel = priority

	if !result.IsEmergency {
		return
	}

	techs, err := h.Store.OnCallTechnicians(ctx, call.BusinessID)
	if err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to load on-call roster")
		return
	}

	dispatched, err := h.Dispatcher.Dispatch(ctx, call, techs)
	if err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("post-call dispatch failed")
		return
	}
	if !dispatched.Dispatched {
		if err := h.Escalator.Advance(ctx, call, 0, dispatched.Reason); err != nil {
			h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("owner escalation failed")
		}
		return
	}
	h.Logger.Info().Str("call_id", call.ID).Str("emergency_type", result.EmergencyType).
		Float64("confidence", result.Confidence).
		Msg("emergency detected after call end")
}
