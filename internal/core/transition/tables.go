package transition

import "github.com/mvoronkov/jobtrail/internal/core/domain"

// Tables holds the static decision data the engine runs on. Injected at
// construction so tests can substitute alternate mappings.
type Tables struct {
	// Targets maps a category to the status it drives toward. Categories
	// absent from the map never cause an update.
	Targets map[domain.EmailCategory]domain.ApplicationStatus
	// Edges lists the legal outgoing transitions per status. Terminal
	// statuses have no entry.
	Edges map[domain.ApplicationStatus][]domain.ApplicationStatus
	// ReviewThreshold is the confidence below which nothing is applied.
	ReviewThreshold float64
	// AutoThreshold is the confidence from which updates apply silently;
	// between the two thresholds updates apply flagged for review.
	AutoThreshold float64
}

func DefaultTables() Tables {
	return Tables{
		Targets: map[domain.EmailCategory]domain.ApplicationStatus{
			domain.CategoryRejection:         domain.StatusRejected,
			domain.CategoryInterviewRequest:  domain.StatusInterviewing,
			domain.CategoryOffer:             domain.StatusOffer,
			domain.CategoryScreeningInvite:   domain.StatusScreening,
			domain.CategoryAssessmentRequest: domain.StatusScreening,
		},
		Edges: map[domain.ApplicationStatus][]domain.ApplicationStatus{
			domain.StatusSaved: {
				domain.StatusApplied, domain.StatusScreening, domain.StatusInterviewing,
				domain.StatusOffer, domain.StatusRejected, domain.StatusWithdrawn,
			},
			domain.StatusApplied: {
				domain.StatusScreening, domain.StatusInterviewing, domain.StatusOffer,
				domain.StatusAccepted, domain.StatusRejected, domain.StatusWithdrawn,
				domain.StatusGhosted,
			},
			domain.StatusScreening: {
				domain.StatusInterviewing, domain.StatusOffer, domain.StatusAccepted,
				domain.StatusRejected, domain.StatusWithdrawn, domain.StatusGhosted,
			},
			domain.StatusInterviewing: {
				domain.StatusOffer, domain.StatusAccepted, domain.StatusRejected,
				domain.StatusWithdrawn, domain.StatusGhosted,
			},
			domain.StatusOffer: {
				domain.StatusAccepted, domain.StatusRejected, domain.StatusWithdrawn,
			},
			domain.StatusGhosted: {
				domain.StatusScreening, domain.StatusInterviewing, domain.StatusRejected,
			},
		},
		ReviewThreshold: 0.7,
		AutoThreshold:   0.9,
	}
}
