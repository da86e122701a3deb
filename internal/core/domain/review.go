package domain

import "time"

type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewLinked    ReviewStatus = "linked"
	ReviewDismissed ReviewStatus = "dismissed"
)

// UnmatchedEmail is a review-queue entry for an email the Matcher could not
// associate with any tracked application.
type UnmatchedEmail struct {
	ID                  string       `json:"id"`
	EmailRecordID       string       `json:"email_record_id"`
	UserID              string       `json:"user_id"`
	SuggestedApps       []string     `json:"suggested_application_ids"`
	LinkedApplicationID *string      `json:"linked_application_id,omitempty"`
	Status              ReviewStatus `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// MaxSuggestions caps the ranked suggestion list on a review-queue entry.
const MaxSuggestions = 5
