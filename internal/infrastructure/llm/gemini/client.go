// Package gemini classifies job-application emails through the Gemini API.
// It is the hosted alternative to the local Ollama provider and satisfies the
// same classifier port.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

const defaultModel = "gemini-2.5-flash"

type Classifier struct {
	client    *genai.Client
	modelName string
}

func NewClassifier(ctx context.Context, apiKey, model string) (*Classifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Classifier{client: client, modelName: model}, nil
}

func (c *Classifier) Classify(ctx context.Context, email domain.ParsedEmail) (domain.Classification, error) {
	if c == nil || c.client == nil {
		return domain.Classification{}, errors.New("gemini classifier is not initialized")
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(buildPrompt(email)), cfg)
	if err != nil {
		return domain.Classification{}, wrapAPIError(err)
	}

	text := collectText(resp)
	if text == "" {
		return domain.Classification{}, errors.New("gemini api returned empty response")
	}
	return parseVerdict(text)
}

func (c *Classifier) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

type verdictPayload struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	InterviewAt string  `json:"interview_at"`
	Deadline    string  `json:"deadline"`
	NextSteps   string  `json:"next_steps"`
}

func parseVerdict(raw string) (domain.Classification, error) {
	var payload verdictPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}

	cls := domain.Classification{
		Category:   normalizeCategory(payload.Category),
		Confidence: payload.Confidence,
		Reasoning:  strings.TrimSpace(payload.Reasoning),
		Extracted: domain.ExtractedFields{
			NextSteps: strings.TrimSpace(payload.NextSteps),
		},
	}
	cls.Extracted.InterviewAt = parseTime(payload.InterviewAt)
	cls.Extracted.Deadline = parseTime(payload.Deadline)
	return cls, nil
}

func normalizeCategory(raw string) domain.EmailCategory {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, " ", "_")
	cleaned = strings.ReplaceAll(cleaned, "-", "_")
	return domain.EmailCategory(cleaned)
}

var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") || strings.EqualFold(raw, "none") {
		return nil
	}
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// wrapAPIError marks retryable API statuses as temporary so the worker's
// executor retries them instead of failing the run outright.
func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 408, 429, 500, 502, 503, 504:
			return domain.WrapError(domain.ErrTemporary, "gemini classify", err)
		}
		return fmt.Errorf("gemini classify: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, "gemini classify", err)
}

func buildPrompt(email domain.ParsedEmail) string {
	const maxBody = 4000
	body := email.Body
	if len(body) > maxBody {
		body = body[:maxBody]
	}

	var b strings.Builder
	b.WriteString(`You classify emails in a job-application tracker.
Return a strict JSON object with keys:
category (one of: rejection, interview_request, offer, screening_invite, assessment_request, generic_update, unrelated),
confidence (number from 0 to 1),
reasoning (one short sentence),
interview_at (ISO 8601 datetime or empty string),
deadline (ISO 8601 datetime or empty string),
next_steps (string, may be empty).
No markdown, no extra keys.

From: `)
	b.WriteString(email.From)
	if email.FromName != "" {
		b.WriteString(" (")
		b.WriteString(email.FromName)
		b.WriteString(")")
	}
	b.WriteString("\nSubject: ")
	b.WriteString(email.Subject)
	b.WriteString("\n\nBody:\n")
	b.WriteString(body)
	return b.String()
}
