package ollama

import (
	"strings"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

func buildClassificationPrompt(email domain.ParsedEmail) string {
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
