package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPJudge calls an OpenAI-compatible chat-completions endpoint and asks
// for a strict-JSON emergency verdict. Server-side errors are retried with
// exponential backoff; client-side errors are not.
type HTTPJudge struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

const systemPromptFmt = `You are an HVAC emergency detection system for the %s region.

Analyze the call transcript and determine if this is an emergency situation.

EMERGENCY CRITERIA:
- Gas leaks or gas smells (ALWAYS emergency)
- No heat in cold weather (especially with vulnerable people)
- No AC in extreme heat (especially with vulnerable people, elderly, or children)
- Water leaks or flooding
- Carbon monoxide or safety concerns

REGIONAL CONTEXT (%s):
- North: No heat is critical in winter
- South: No AC is critical in summer

Return your analysis in this exact JSON format:
{
    "is_emergency": true/false,
    "emergency_type": "gas" | "no_heat" | "no_ac" | "water" | "safety" | null,
    "confidence": 0.0-1.0,
    "reasoning": "brief explanation"
}`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type retryableError struct{ err error }

func (r retryableError) Error() string { return r.err.Error() }

func (j HTTPJudge) JudgeTranscript(ctx context.Context, transcript, region string) (Judgment, error) {
	if strings.TrimSpace(j.BaseURL) == "" {
		return Judgment{}, errors.New("judge base URL not configured")
	}
	client := j.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := chatRequest{
		Model:       j.Model,
		Temperature: 0.3,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptFmt, region, region)},
			{Role: "user", Content: "Transcript: " + transcript},
		},
	}
	payload.ResponseFormat.Type = "json_object"
	body, _ := json.Marshal(payload)

	url := strings.TrimRight(j.BaseURL, "/") + "/chat/completions"

	var out Judgment
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if j.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+j.APIKey)
		}
		resp, err := client.Do(req)
		if err != nil {
			return retryableError{err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return retryableError{fmt.Errorf("judge server error: %s", resp.Status)}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("judge http error: %s", resp.Status))
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(err)
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(errors.New("empty judge response"))
		}
		content := parsed.Choices[0].Message.Content
		// The model may wrap the object in prose; take the outermost braces.
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return backoff.Permanent(fmt.Errorf("no JSON object in judge response"))
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 20 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return Judgment{}, err
	}
	return out, nil
}
