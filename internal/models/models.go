package models

import "time"

// Call status lifecycle. Transitions are monotonic except the
// dispatched -> accepted / dispatched -> escalated branch, which is
// resolved exactly once per call.
const (
	CallReceived    = "received"
	CallInProgress  = "in_progress"
	CallAnalyzing   = "analyzing"
	CallDispatching = "dispatching"
	CallDispatched  = "dispatched"
	CallAccepted    = "accepted"
	CallEscalated   = "escalated"
	CallCompleted   = "completed"
	CallMissed      = "missed"
)

const (
	PriorityNone      = "none"
	PriorityStandard  = "standard"
	PriorityEmergency = "emergency"
)

const (
	NotificationSent      = "sent"
	NotificationDelivered = "delivered"
	NotificationResponded = "responded"
	NotificationTimeout   = "timeout"
)

const (
	RecipientTechnician = "technician"
	RecipientOwner      = "owner"
)

const (
	RegionNorth = "north"
	RegionSouth = "south"
)

type Business struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Region      string    `json:"region"`
	HoursStart  string    `json:"hours_start,omitempty"`
	HoursEnd    string    `json:"hours_end,omitempty"`
	OwnerName   string    `json:"owner_name,omitempty"`
	OwnerPhone  string    `json:"owner_phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Technician struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	Name          string    `json:"name"`
	PhoneNumber   string    `json:"phone_number"`
	Email         string    `json:"email,omitempty"`
	IsOnCall      bool      `json:"is_on_call"`
	PriorityOrder int       `json:"priority_order"`
	CreatedAt     time.Time `json:"created_at"`
}

type Call struct {
	ID               string     `json:"id"`
	BusinessID       string     `json:"business_id"`
	ProviderCallID   string     `json:"provider_call_id,omitempty"`
	CustomerName     string     `json:"customer_name,omitempty"`
	CustomerPhone    string     `json:"customer_phone,omitempty"`
	CustomerAddress  string     `json:"customer_address,omitempty"`
	IssueDescription string     `json:"issue_description,omitempty"`
	Transcript       string     `json:"transcript,omitempty"`
	PriorityLevel    string     `json:"priority_level,omitempty"`
	Status           string     `json:"status"`
	AssignedTechID   *string    `json:"assigned_tech_id,omitempty"`
	RecordingURL     string     `json:"recording_url,omitempty"`
	DurationSeconds  *int       `json:"duration_seconds,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	DispatchedAt     *time.Time `json:"dispatched_at,omitempty"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
}

type Notification struct {
	ID             string     `json:"id"`
	CallID         string     `json:"call_id"`
	RecipientType  string     `json:"recipient_type"`
	RecipientPhone string     `json:"recipient_phone"`
	Message        string     `json:"message"`
	Status         string     `json:"status"`
	SentAt         time.Time  `json:"sent_at"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
	ResponseText   string     `json:"response_text,omitempty"`
}

// EscalationDeadline is a persisted escalation timer. A background sweeper
// reconciles due rows against current notification status, so pending
// escalations survive a process restart.
type EscalationDeadline struct {
	NotificationID string    `json:"notification_id"`
	CallID         string    `json:"call_id"`
	BusinessID     string    `json:"business_id"`
	DueAt          time.Time `json:"due_at"`
	Attempt        int       `json:"attempt"`
}

type DailyReport struct {
	ID                     string    `json:"id"`
	BusinessID             string    `json:"business_id"`
	ReportDate             string    `json:"report_date"`
	TotalCalls             int       `json:"total_calls"`
	EmergencyCalls         int       `json:"emergency_calls"`
	StandardCalls          int       `json:"standard_calls"`
	MissedCalls            int       `json:"missed_calls"`
	AvgResponseTimeSeconds *int      `json:"avg_response_time_seconds,omitempty"`
	ReportData             []byte    `json:"report_data,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// Classification is the classifier output. It is not persisted as its own
// row; the interesting parts end up on the Call.
type Classification struct {
	IsEmergency      bool     `json:"is_emergency"`
	EmergencyType    string   `json:"emergency_type,omitempty"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	DetectedKeywords []string `json:"detected_keywords,omitempty"`
}

// ProviderStatus maps a telephony-provider status token onto a call status.
// Unknown tokens pass through unchanged.
func ProviderStatus(token string) string {
	switch token {
	case "queued", "ringing":
		return CallReceived
	case "in-progress", "forwarding":
		return CallInProgress
	case "ended":
		return CallCompleted
	}
	return token
}
