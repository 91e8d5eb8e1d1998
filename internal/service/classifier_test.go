package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/ai"
	"github.com/hvac_triage/backend/internal/models"
)

type stubJudge struct {
	judgment ai.Judgment
	err      error
}

func (s stubJudge) JudgeTranscript(ctx context.Context, transcript, region string) (ai.Judgment, error) {
	return s.judgment, s.err
}

func newClassifier(j ai.Judge) *Classifier {
	return &Classifier{Judge: j, Logger: zerolog.Nop()}
}

func TestClassifyKeywordCaseInsensitive(t *testing.T) {
	c := newClassifier(stubJudge{judgment: ai.Judgment{Confidence: 0.5}})
	result := c.Classify(context.Background(), "I smell GAS in my kitchen", models.RegionSouth)

	if !result.IsEmergency {
		t.Fatal("expected emergency")
	}
	if result.EmergencyType != "gas" {
		t.Fatalf("emergency_type = %q, want gas", result.EmergencyType)
	}
	found := false
	for _, kw := range result.DetectedKeywords {
		if kw == "smell gas" {
			found = true
		}
	}
	if !found {
		t.Fatalf("detected_keywords = %v, want smell gas", result.DetectedKeywords)
	}
}

func TestClassifyFirstCategoryWins(t *testing.T) {
	c := newClassifier(stubJudge{judgment: ai.Judgment{Confidence: 0.5}})
	result := c.Classify(context.Background(), "there's a gas leak and we have no heat", models.RegionNorth)

	if result.EmergencyType != "gas" {
		t.Fatalf("emergency_type = %q, want gas (first category in scan order)", result.EmergencyType)
	}
	if len(result.DetectedKeywords) < 2 {
		t.Fatalf("detected_keywords = %v, want matches from both categories", result.DetectedKeywords)
	}
}

func TestClassifySemanticOnlyEmergency(t *testing.T) {
	c := newClassifier(stubJudge{judgment: ai.Judgment{
		IsEmergency:   true,
		EmergencyType: "no_heat",
		Confidence:    0.8,
		Reasoning:     "elderly resident without heat",
	}})
	result := c.Classify(context.Background(), "my grandmother's house is very cold", models.RegionSouth)

	if !result.IsEmergency {
		t.Fatal("judgment alone should mark the call an emergency")
	}
	if result.EmergencyType != "no_heat" {
		t.Fatalf("emergency_type = %q, want judgment's no_heat", result.EmergencyType)
	}
	if len(result.DetectedKeywords) != 0 {
		t.Fatalf("detected_keywords = %v, want none", result.DetectedKeywords)
	}
}

func TestClassifyRegionalBoostCapped(t *testing.T) {
	c := newClassifier(stubJudge{judgment: ai.Judgment{IsEmergency: true, Confidence: 0.9}})
	result := c.Classify(context.Background(), "the ac out completely", models.RegionSouth)

	if result.EmergencyType != "no_ac" {
		t.Fatalf("emergency_type = %q, want no_ac", result.EmergencyType)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0 (0.9 + 0.2 capped)", result.Confidence)
	}
}

func TestClassifyRegionalBoostApplies(t *testing.T) {
	c := newClassifier(stubJudge{judgment: ai.Judgment{IsEmergency: true, Confidence: 0.5}})
	result := c.Classify(context.Background(), "furnace out since last night", models.RegionNorth)

	if result.Confidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7 (0.5 + 0.2 north boost for no_heat)", result.Confidence)
	}
}

func TestClassifyNoBoostOutsideRegionPriorities(t *testing.T) {
	c := newClassifier(stubJudge{judgment: ai.Judgment{IsEmergency: true, Confidence: 0.5}})
	result := c.Classify(context.Background(), "furnace out since last night", models.RegionSouth)

	if result.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5 (no_heat is not a south priority)", result.Confidence)
	}
}

func TestClassifyJudgeFailureDegrades(t *testing.T) {
	c := newClassifier(stubJudge{err: errors.New("judge unavailable")})
	result := c.Classify(context.Background(), "just calling about my bill", models.RegionSouth)

	if result.IsEmergency {
		t.Fatal("failed judge with no keywords must default to non-emergency")
	}
	if result.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0.0", result.Confidence)
	}
	if result.Reasoning == "" {
		t.Fatal("degraded result should still carry a reasoning string")
	}
}

func TestClassifyKeywordsSurviveJudgeFailure(t *testing.T) {
	c := newClassifier(stubJudge{err: errors.New("judge unavailable")})
	result := c.Classify(context.Background(), "gas leak in the basement", models.RegionNorth)

	if !result.IsEmergency {
		t.Fatal("keyword match must mark an emergency even when the judge fails")
	}
	if result.EmergencyType != "gas" {
		t.Fatalf("emergency_type = %q, want gas", result.EmergencyType)
	}
}

func TestClassifyEmptyTranscript(t *testing.T) {
	c := newClassifier(stubJudge{err: errors.New("judge unavailable")})
	result := c.Classify(context.Background(), "", models.RegionSouth)

	if result.IsEmergency || result.Confidence != 0.0 {
		t.Fatalf("empty transcript with failed judge = %+v, want non-emergency 0.0", result)
	}
}
