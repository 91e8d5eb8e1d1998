package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hvac_triage/backend/internal/models"
)

// Tool webhooks are invoked synchronously by the voice assistant while the
// caller is on the line. They always answer 200 with a success flag and a
// speakable message; a hard failure here would dead-end the conversation.

type LookupCustomerRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// @Summary Look up a caller by phone number
// @Tags tools
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /webhook/lookup-customer [post]
func (h *Handler) LookupCustomer(c *gin.Context) {
	var req LookupCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	calls, err := h.Store.ListCallsByPhone(c.Request.Context(), h.DefaultBusinessID, req.PhoneNumber)
	if err != nil {
		h.Logger.Error().Err(err).Str("phone", req.PhoneNumber).Msg("customer lookup failed")
		c.JSON(http.StatusOK, gin.H{
			"success":              false,
			"is_existing_customer": false,
			"message":              "I'm having trouble looking up your information. Let me take your details.",
		})
		return
	}

	if len(calls) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"success":              true,
			"is_existing_customer": false,
			"message":              "I don't see you in our system yet. Can I get your name and address?",
		})
		return
	}

	latest := calls[0]
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"is_existing_customer": true,
		"customer_name":        orUnknown(latest.CustomerName),
		"customer_address":     orUnknown(latest.CustomerAddress),
		"previous_calls_count": len(calls),
		"message":              "Welcome back! I have your information on file. How can we help you today?",
	})
}

type DispatchEmergencyRequest struct {
	CustomerName string `json:"customer_name"`
	Address      string `json:"address"`
	Issue        string `json:"issue"`
}

// @Summary Dispatch a technician for an in-call emergency
// @Tags tools
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /webhook/dispatch-emergency [post]
func (h *Handler) DispatchEmergency(c *gin.Context) {
	var req DispatchEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if req.Issue == "" {
		req.Issue = "Emergency situation"
	}

	ctx := c.Request.Context()

	call, err := h.Store.CreateCall(ctx, models.Call{
		BusinessID:       h.DefaultBusinessID,
		CustomerName:     req.CustomerName,
		CustomerAddress:  req.Address,
		IssueDescription: req.Issue,
		PriorityLevel:    models.PriorityEmergency,
		Status:           models.CallDispatching,
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to create emergency call")
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "I'm having trouble dispatching a technician. Let me transfer you to our emergency line.",
		})
		return
	}

	techs, err := h.Store.OnCallTechnicians(ctx, h.DefaultBusinessID)
	if err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to load on-call roster")
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "I'm having trouble dispatching a technician. Let me transfer you to our emergency line.",
		})
		return
	}

	result, err := h.Dispatcher.Dispatch(ctx, call, techs)
	if err != nil {
		h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("emergency dispatch failed")
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "I'm having trouble dispatching a technician. Let me transfer you to our emergency line.",
		})
		return
	}

	if !result.Dispatched {
		// No coverage means the owner hears about it right now, not silence.
		if err := h.Escalator.Advance(ctx, call, 0, result.Reason); err != nil {
			h.Logger.Error().Err(err).Str("call_id", call.ID).Msg("owner escalation failed")
		}
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "I'm very sorry, but I don't have any technicians available right now. Let me escalate this to our owner immediately.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           fmt.Sprintf("I'm dispatching our emergency technician %s to your location right away. They should arrive within %s. Please stay safe.", result.TechnicianName, result.EstimatedETA),
		"technician_name":   result.TechnicianName,
		"estimated_arrival": result.EstimatedETA,
	})
}

type CheckCalendarRequest struct {
	ServiceType string `json:"service_type"`
}

// No scheduling engine behind this yet; the slots are canned.
var calendarSlots = []string{
	"Tomorrow morning between 9 AM and 12 PM",
	"Tomorrow afternoon between 1 PM and 4 PM",
	"Day after tomorrow, any time between 8 AM and 5 PM",
}

// @Summary Check appointment availability
// @Tags tools
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /webhook/check-calendar [post]
func (h *Handler) CheckCalendar(c *gin.Context) {
	var req CheckCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if req.ServiceType == "" {
		req.ServiceType = "maintenance"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"available_slots": calendarSlots,
		"message": fmt.Sprintf("For %s, I have availability: %s, %s, or %s. Which works best for you?",
			req.ServiceType, calendarSlots[0], calendarSlots[1], calendarSlots[2]),
	})
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
