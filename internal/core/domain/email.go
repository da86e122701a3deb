package domain

import "time"

// ParsedEmail carries the already-extracted plain-text fields of one inbound
// email. The gateway handles MIME; nothing here parses raw mail.
type ParsedEmail struct {
	From       string    `json:"from"`
	FromName   string    `json:"from_name,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

type EmailCategory string

const (
	CategoryRejection         EmailCategory = "rejection"
	CategoryInterviewRequest  EmailCategory = "interview_request"
	CategoryOffer             EmailCategory = "offer"
	CategoryScreeningInvite   EmailCategory = "screening_invite"
	CategoryAssessmentRequest EmailCategory = "assessment_request"
	CategoryGenericUpdate     EmailCategory = "generic_update"
	CategoryUnrelated         EmailCategory = "unrelated"
)

func (c EmailCategory) Valid() bool {
	switch c {
	case CategoryRejection, CategoryInterviewRequest, CategoryOffer,
		CategoryScreeningInvite, CategoryAssessmentRequest,
		CategoryGenericUpdate, CategoryUnrelated:
		return true
	default:
		return false
	}
}

// ExtractedFields are optional structured values the model pulled out of the
// email body.
type ExtractedFields struct {
	InterviewAt *time.Time `json:"interview_at,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	NextSteps   string     `json:"next_steps,omitempty"`
}

type Classification struct {
	Category   EmailCategory   `json:"category"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Extracted  ExtractedFields `json:"extracted,omitempty"`
}

// FallbackClassification is returned whenever the model call fails, so the
// email still ends up with an auditable record instead of blocking the run.
func FallbackClassification() Classification {
	return Classification{
		Category:   CategoryGenericUpdate,
		Confidence: 0.5,
		Reasoning:  "classification failed",
	}
}

// EmailRecord is the write-once audit artifact for one processed email. Only
// the manual-override flag and the application link (review-queue resolution)
// change after creation.
type EmailRecord struct {
	ID             string          `json:"id"`
	MessageID      string          `json:"message_id"`
	UserID         string          `json:"user_id"`
	ApplicationID  *string         `json:"application_id,omitempty"`
	Sender         string          `json:"sender"`
	SenderName     string          `json:"sender_name,omitempty"`
	Subject        string          `json:"subject"`
	BodyPreview    string          `json:"body_preview"`
	ReceivedAt     time.Time       `json:"received_at"`
	Classification *Classification `json:"classification,omitempty"`
	ManualOverride bool            `json:"manual_override"`
	CreatedAt      time.Time       `json:"created_at"`
}

const BodyPreviewLimit = 500

// PreviewBody truncates a body to the stored preview size without splitting
// a multi-byte rune.
func PreviewBody(body string) string {
	if len(body) <= BodyPreviewLimit {
		return body
	}
	cut := BodyPreviewLimit
	for cut > 0 && body[cut]&0xC0 == 0x80 {
		cut--
	}
	return body[:cut]
}
