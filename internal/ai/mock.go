package ai

import (
	"context"
	"strings"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/utils"
)

// MockJudge is a deterministic offline stand-in used when no judge endpoint
// is configured. It reacts to a few obvious cues so demo transcripts behave
// sensibly, and hashes the transcript for stable confidence values.
type MockJudge struct{}

var mockCues = []struct {
	cue   string
	etype string
}{
	{"gas", "gas"},
	{"carbon monoxide", "safety"},
	{"smoke", "safety"},
	{"no heat", "no_heat"},
	{"freezing", "no_heat"},
	{"no ac", "no_ac"},
	{"no air", "no_ac"},
	{"flood", "water"},
	{"leak", "water"},
	{"emergency", ""},
	{"urgent", ""},
}

func (MockJudge) JudgeTranscript(ctx context.Context, transcript, region string) (Judgment, error) {
	lower := strings.ToLower(transcript)
	for _, c := range mockCues {
		if strings.Contains(lower, c.cue) {
			h := utils.HashStringToUint64(transcript)
			confidence := 0.7 + float64(h%25)/100
			etype := c.etype
			if etype == "" {
				if region == models.RegionNorth {
					etype = "no_heat"
				} else {
					etype = "no_ac"
				}
			}
			return Judgment{
				IsEmergency:   true,
				EmergencyType: etype,
				Confidence:    confidence,
				Reasoning:     "mock judge matched cue: " + c.cue,
			}, nil
		}
	}
	return Judgment{
		IsEmergency: false,
		Confidence:  0.3,
		Reasoning:   "mock judge found no emergency cues",
	}, nil
}
