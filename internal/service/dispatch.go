package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/sms"
)

// DispatchStore is the slice of persistence the dispatcher needs.
type DispatchStore interface {
	MarkDispatched(ctx context.Context, callID, techID string, at time.Time) error
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ScheduleEscalation(ctx context.Context, d models.EscalationDeadline) error
}

type DispatchResult struct {
	Dispatched      bool   `json:"dispatched"`
	TechnicianName  string `json:"technician_name,omitempty"`
	TechnicianPhone string `json:"technician_phone,omitempty"`
	EstimatedETA    string `json:"estimated_eta,omitempty"`
	NotificationID  string `json:"notification_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Demo stand-in for a real scheduling engine.
const estimatedETA = "30-60 minutes"

type Dispatcher struct {
	Store   DispatchStore
	Sender  sms.Sender
	Logger  zerolog.Logger
	Timeout time.Duration
}

// Dispatch notifies the head of the on-call roster. It is a single-shot
// choice: if the chosen technician is unreachable, the only second chance
// is the escalation path, not the next technician. The roster must already
// be ordered by priority.
func (d *Dispatcher) Dispatch(ctx context.Context, call models.Call, techs []models.Technician) (DispatchResult, error) {
	if len(techs) == 0 {
		return DispatchResult{
			Dispatched: false,
			Reason:     "no technician available",
		}, nil
	}

	tech := techs[0]
	now := time.Now().UTC()
	if err := d.Store.MarkDispatched(ctx, call.ID, tech.ID, now); err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{
		Dispatched:      true,
		TechnicianName:  tech.Name,
		TechnicianPhone: tech.PhoneNumber,
		EstimatedETA:    estimatedETA,
	}

	n, err := d.NotifyTechnician(ctx, call, tech, 0)
	if err != nil {
		d.Logger.Error().Err(err).Str("call_id", call.ID).Str("tech_id", tech.ID).
			Msg("technician notification failed")
		return result, nil
	}
	result.NotificationID = n.ID
	return result, nil
}

// NotifyTechnician persists the notification, arms the escalation deadline
// for emergencies, and then attempts the send. The row and the deadline go
// in first so a gateway failure still leaves the watchdog armed: a message
// that never arrived gets no reply, and the silence escalates to the owner
// through the normal timeout path.
func (d *Dispatcher) NotifyTechnician(ctx context.Context, call models.Call, tech models.Technician, attempt int) (models.Notification, error) {
	var body string
	if call.PriorityLevel == models.PriorityEmergency {
		body = sms.EmergencyAlert(call.CustomerName, call.CustomerPhone, call.CustomerAddress, call.IssueDescription)
	} else {
		body = sms.StandardAlert(call.CustomerName, call.CustomerPhone, call.CustomerAddress, call.IssueDescription)
	}

	n, err := d.Store.CreateNotification(ctx, models.Notification{
		CallID:         call.ID,
		RecipientType:  models.RecipientTechnician,
		RecipientPhone: tech.PhoneNumber,
		Message:        body,
		Status:         models.NotificationSent,
	})
	if err != nil {
		return models.Notification{}, err
	}

	if call.PriorityLevel == models.PriorityEmergency {
		err = d.Store.ScheduleEscalation(ctx, models.EscalationDeadline{
			NotificationID: n.ID,
			CallID:         call.ID,
			BusinessID:     call.BusinessID,
			DueAt:          time.Now().UTC().Add(d.Timeout),
			Attempt:        attempt,
		})
		if err != nil {
			d.Logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to arm escalation deadline")
		}
	}

	if err := d.Sender.Send(ctx, tech.PhoneNumber, body); err != nil {
		d.Logger.Error().Err(err).Str("call_id", call.ID).Str("tech", tech.Name).
			Msg("technician SMS failed, escalation watchdog remains armed")
		return n, nil
	}

	d.Logger.Info().Str("call_id", call.ID).Str("tech", tech.Name).Int("attempt", attempt).
		Msg("technician notified")
	return n, nil
}
