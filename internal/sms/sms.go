// Package sms talks to the text-messaging gateway and owns the message
// templates plus technician-reply parsing.
package sms

import (
	"context"
	"fmt"
	"strings"
)

// Sender delivers a short text message. Implementations must not panic on
// gateway failures; callers treat a returned error as "message not sent"
// and keep going.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Action is the parsed intent of an inbound technician SMS.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionUnknown Action = "unknown"
)

// ParseResponse interprets a technician reply. First matching rule wins.
// The "no" test is a plain substring match, so "no problem" parses as a
// reject; that heuristic is inherited from the dispatch scripts technicians
// are trained on.
func ParseResponse(body string) Action {
	lower := strings.ToLower(strings.TrimSpace(body))
	if strings.Contains(lower, "accept") || strings.Contains(lower, "yes") {
		return ActionAccept
	}
	if strings.Contains(lower, "reject") || strings.Contains(lower, "no") || strings.Contains(lower, "decline") {
		return ActionReject
	}
	return ActionUnknown
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}

// EmergencyAlert is the technician-facing message for an emergency dispatch.
func EmergencyAlert(customerName, customerPhone, customerAddress, issue string) string {
	return fmt.Sprintf(`EMERGENCY CALL - %s

Issue: %s
Phone: %s
Address: %s

Reply ACCEPT to take this call or view dashboard for details.`,
		orNotProvided(customerName), issue, orNotProvided(customerPhone), orNotProvided(customerAddress))
}

// StandardAlert is the technician-facing message for a routine request.
func StandardAlert(customerName, customerPhone, customerAddress, issue string) string {
	return fmt.Sprintf(`SERVICE REQUEST - %s

Issue: %s
Phone: %s
Address: %s

View dashboard to schedule this service call.`,
		orNotProvided(customerName), issue, orNotProvided(customerPhone), orNotProvided(customerAddress))
}

// OwnerEscalation is sent when a dispatch goes unacknowledged.
func OwnerEscalation(customerName, customerPhone, customerAddress, issue, reason string) string {
	return fmt.Sprintf(`ESCALATED EMERGENCY - %s

Reason: %s

Issue: %s
Phone: %s
Address: %s

IMMEDIATE ATTENTION REQUIRED`,
		orNotProvided(customerName), reason, issue, orNotProvided(customerPhone), orNotProvided(customerAddress))
}

// CustomerConfirmation tells the caller help is on the way.
func CustomerConfirmation(technicianName string, emergency bool) string {
	if emergency {
		return fmt.Sprintf(`Your emergency service request has been received. %s will contact you within the next few minutes.

Stay safe and thank you for your patience.`, technicianName)
	}
	return `Your service request has been received. We'll contact you first thing in the morning to schedule your appointment.

Thank you for choosing us!`
}
