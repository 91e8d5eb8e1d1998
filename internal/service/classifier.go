package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/ai"
	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/region"
)

// Keyword taxonomy, scanned in this order. The first category with a match
// wins the emergency_type, even when later categories also match; all
// matched phrases are still collected. Single-category classification is a
// deliberate simplification of the triage flow.
var emergencyKeywords = []struct {
	Category string
	Phrases  []string
}{
	{"gas", []string{"gas leak", "smell gas", "gas odor", "gas smell"}},
	{"no_heat", []string{"no heat", "furnace out", "furnace not working", "heater broken", "freezing"}},
	{"no_ac", []string{"no ac", "no air", "ac out", "air conditioning broken", "overheating"}},
	{"water", []string{"water leak", "flooding", "water damage"}},
	{"safety", []string{"carbon monoxide", "smoke", "fire"}},
}

const regionalConfidenceBoost = 0.2

type Classifier struct {
	Judge  ai.Judge
	Logger zerolog.Logger
}

// Classify combines keyword matching with the semantic judgment. It never
// returns an error: a failed judge degrades to an explicit non-emergency
// verdict so call handling always continues. That default fails open on
// emergency detection; see DESIGN.md before tightening it.
func (c *Classifier) Classify(ctx context.Context, transcript, reg string) models.Classification {
	lower := strings.ToLower(transcript)

	var detected []string
	var keywordType string
	for _, cat := range emergencyKeywords {
		matched := false
		for _, phrase := range cat.Phrases {
			if strings.Contains(lower, phrase) {
				detected = append(detected, phrase)
				matched = true
			}
		}
		if matched && keywordType == "" {
			keywordType = cat.Category
		}
	}

	judgment := c.judge(ctx, transcript, reg)

	result := models.Classification{
		IsEmergency:      len(detected) > 0 || judgment.IsEmergency,
		EmergencyType:    keywordType,
		Confidence:       judgment.Confidence,
		Reasoning:        judgment.Reasoning,
		DetectedKeywords: detected,
	}
	if result.EmergencyType == "" {
		result.EmergencyType = judgment.EmergencyType
	}

	for _, issue := range region.PriorityIssues(reg) {
		if result.EmergencyType == issue {
			result.Confidence = min1(result.Confidence + regionalConfidenceBoost)
			break
		}
	}
	return result
}

func (c *Classifier) judge(ctx context.Context, transcript, reg string) ai.Judgment {
	if c.Judge == nil {
		return ai.Judgment{Reasoning: "no judge configured"}
	}
	judgment, err := c.Judge.JudgeTranscript(ctx, transcript, reg)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("semantic judgment failed, defaulting to non-emergency")
		return ai.Judgment{
			IsEmergency: false,
			Confidence:  0.0,
			Reasoning:   "analysis failed",
		}
	}
	return judgment
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
