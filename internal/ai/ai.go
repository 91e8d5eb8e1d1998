package ai

import "context"

// Judgment is the fixed-shape verdict returned by the semantic collaborator.
type Judgment struct {
	IsEmergency   bool    `json:"is_emergency"`
	EmergencyType string  `json:"emergency_type"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// Judge analyzes a raw call transcript for emergency context. Callers must
// treat any error as a degraded non-emergency verdict; a Judge failure never
// aborts call handling.
type Judge interface {
	JudgeTranscript(ctx context.Context, transcript, region string) (Judgment, error)
}
