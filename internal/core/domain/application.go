package domain

import "time"

type ApplicationStatus string

const (
	StatusSaved        ApplicationStatus = "saved"
	StatusApplied      ApplicationStatus = "applied"
	StatusScreening    ApplicationStatus = "screening"
	StatusInterviewing ApplicationStatus = "interviewing"
	StatusOffer        ApplicationStatus = "offer"
	StatusAccepted     ApplicationStatus = "accepted"
	StatusRejected     ApplicationStatus = "rejected"
	StatusWithdrawn    ApplicationStatus = "withdrawn"
	StatusGhosted      ApplicationStatus = "ghosted"
)

// TerminalStatuses have no outgoing transitions.
var TerminalStatuses = []ApplicationStatus{StatusAccepted, StatusRejected, StatusWithdrawn}

func (s ApplicationStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSaved, StatusApplied, StatusScreening, StatusInterviewing,
		StatusOffer, StatusAccepted, StatusRejected, StatusWithdrawn, StatusGhosted:
		return true
	default:
		return false
	}
}

type JobType string

const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeInternship JobType = "internship"
)

type LocationType string

const (
	LocationOnsite LocationType = "onsite"
	LocationRemote LocationType = "remote"
	LocationHybrid LocationType = "hybrid"
)

// Application is the only long-lived mutable entity the pipeline touches.
// It is created by manual entry, the extension, or import, and never
// hard-deleted here.
type Application struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	JobTitle     string            `json:"job_title"`
	CompanyName  string            `json:"company_name"`
	Status       ApplicationStatus `json:"status"`
	JobType      JobType           `json:"job_type,omitempty"`
	LocationType LocationType      `json:"location_type,omitempty"`
	Location     string            `json:"location,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
