package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

type Options struct {
	Timeout time.Duration
	// RequestsPerSecond throttles calls to a local instance; zero disables
	// the limiter.
	RequestsPerSecond float64
	Burst             int
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Classifier categorizes job-application emails through a local Ollama model.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// classificationResponse mirrors the JSON shape the prompt demands. Date
// fields come back as strings; parsing stays lenient because small models
// drift on formats.
type classificationResponse struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	InterviewAt string  `json:"interview_at"`
	Deadline    string  `json:"deadline"`
	NextSteps   string  `json:"next_steps"`
}

func (c *Classifier) Classify(ctx context.Context, email domain.ParsedEmail) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, buildClassificationPrompt(email))
	if err != nil {
		return domain.Classification{}, wrapTemporaryIfNeeded("ollama classify", err)
	}

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	return toClassification(parsed), nil
}

func toClassification(parsed classificationResponse) domain.Classification {
	cls := domain.Classification{
		Category:   normalizeCategory(parsed.Category),
		Confidence: parsed.Confidence,
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
		Extracted: domain.ExtractedFields{
			NextSteps: strings.TrimSpace(parsed.NextSteps),
		},
	}
	cls.Extracted.InterviewAt = parseModelTime(parsed.InterviewAt)
	cls.Extracted.Deadline = parseModelTime(parsed.Deadline)
	return cls
}

func normalizeCategory(raw string) domain.EmailCategory {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, " ", "_")
	cleaned = strings.ReplaceAll(cleaned, "-", "_")
	return domain.EmailCategory(cleaned)
}

var modelTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseModelTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") || strings.EqualFold(raw, "none") {
		return nil
	}
	for _, layout := range modelTimeFormats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
