package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/sms"
)

// Dispatch policy on an unacknowledged notification: single-target goes
// straight to the owner; cascade works down the on-call roster first.
const (
	PolicySingle  = "single"
	PolicyCascade = "cascade"
)

// EscalationStore is the persistence slice the escalator needs beyond
// DispatchStore.
type EscalationStore interface {
	DispatchStore
	DueEscalations(ctx context.Context, now time.Time, limit int) ([]models.EscalationDeadline, error)
	GetEscalation(ctx context.Context, notificationID string) (models.EscalationDeadline, error)
	DeleteEscalation(ctx context.Context, notificationID string) error
	ClaimNotificationTimeout(ctx context.Context, notificationID string) (bool, error)
	GetCall(ctx context.Context, id string) (models.Call, error)
	GetBusiness(ctx context.Context, id string) (models.Business, error)
	OnCallTechnicians(ctx context.Context, businessID string) ([]models.Technician, error)
	MarkEscalated(ctx context.Context, callID string) error
}

// Escalator reconciles persisted escalation deadlines against current
// notification state. Deadlines live in the database, so a restart resumes
// pending windows instead of dropping them; "cancellation" of a timer is the
// atomic claim at fire time, never in-memory bookkeeping.
type Escalator struct {
	Store      EscalationStore
	Sender     sms.Sender
	Dispatcher *Dispatcher
	Logger     zerolog.Logger
	Policy     string
}

// Run sweeps on the given interval until the context is cancelled. One
// initial sweep picks up deadlines that came due while the process was down.
func (e *Escalator) Run(ctx context.Context, interval time.Duration) {
	e.Sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep fires every due deadline. Individual failures are logged and leave
// the deadline row in place for the next pass.
func (e *Escalator) Sweep(ctx context.Context) {
	due, err := e.Store.DueEscalations(ctx, time.Now().UTC(), 50)
	if err != nil {
		e.Logger.Error().Err(err).Msg("failed to load due escalations")
		return
	}
	for _, d := range due {
		if err := e.fire(ctx, d); err != nil {
			e.Logger.Error().Err(err).Str("notification_id", d.NotificationID).Msg("escalation failed")
		}
	}
}

func (e *Escalator) fire(ctx context.Context, d models.EscalationDeadline) error {
	claimed, err := e.Store.ClaimNotificationTimeout(ctx, d.NotificationID)
	if err != nil {
		return err
	}
	if !claimed {
		// Technician responded during the window; the deadline is stale.
		return e.Store.DeleteEscalation(ctx, d.NotificationID)
	}

	call, err := e.Store.GetCall(ctx, d.CallID)
	if err != nil {
		return err
	}
	reason := fmt.Sprintf("Technician did not respond within %s", e.Dispatcher.Timeout)
	if err := e.Advance(ctx, call, d.Attempt, reason); err != nil {
		return err
	}
	return e.Store.DeleteEscalation(ctx, d.NotificationID)
}

// Advance moves an unacknowledged dispatch one step along the policy:
// under cascade, the next on-call technician; otherwise (or when the roster
// is exhausted) the owner. The claim preceding Advance guarantees at most
// one escalation per notification.
func (e *Escalator) Advance(ctx context.Context, call models.Call, attempt int, reason string) error {
	if e.Policy == PolicyCascade {
		techs, err := e.Store.OnCallTechnicians(ctx, call.BusinessID)
		if err != nil {
			return err
		}
		if next := attempt + 1; next < len(techs) {
			tech := techs[next]
			if err := e.Store.MarkDispatched(ctx, call.ID, tech.ID, time.Now().UTC()); err != nil {
				return err
			}
			_, err := e.Dispatcher.NotifyTechnician(ctx, call, tech, next)
			return err
		}
	}
	return e.escalateToOwner(ctx, call, reason)
}

func (e *Escalator) escalateToOwner(ctx context.Context, call models.Call, reason string) error {
	if err := e.Store.MarkEscalated(ctx, call.ID); err != nil {
		return err
	}

	business, err := e.Store.GetBusiness(ctx, call.BusinessID)
	if err != nil {
		return err
	}
	if business.OwnerPhone == "" {
		e.Logger.Warn().Str("call_id", call.ID).Msg("no owner phone on file, escalation recorded without notification")
		return nil
	}

	body := sms.OwnerEscalation(call.CustomerName, call.CustomerPhone, call.CustomerAddress, call.IssueDescription, reason)
	if err := e.Sender.Send(ctx, business.OwnerPhone, body); err != nil {
		e.Logger.Error().Err(err).Str("call_id", call.ID).Msg("owner escalation SMS failed")
		return nil
	}

	_, err = e.Store.CreateNotification(ctx, models.Notification{
		CallID:         call.ID,
		RecipientType:  models.RecipientOwner,
		RecipientPhone: business.OwnerPhone,
		Message:        body,
		Status:         models.NotificationSent,
	})
	if err != nil {
		return err
	}

	e.Logger.Info().Str("call_id", call.ID).Str("reason", reason).Msg("escalated to owner")
	return nil
}
