package domain

import "time"

type TriggerType string

const (
	TriggerManual          TriggerType = "manual"
	TriggerEmailAuto       TriggerType = "email_auto"
	TriggerEmailAutoReview TriggerType = "email_auto_review"
	TriggerEmailManual     TriggerType = "email_manual"
	TriggerImport          TriggerType = "import"
)

// StatusHistoryEntry is append-only: one row per status change. FromStatus is
// nil for the creation event.
type StatusHistoryEntry struct {
	ID            string             `json:"id"`
	ApplicationID string             `json:"application_id"`
	FromStatus    *ApplicationStatus `json:"from_status,omitempty"`
	ToStatus      ApplicationStatus  `json:"to_status"`
	Trigger       TriggerType        `json:"trigger"`
	EmailRecordID *string            `json:"email_record_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
