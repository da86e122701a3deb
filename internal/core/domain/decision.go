package domain

// TransitionDecision is the Transition Engine's output: whether to mutate the
// application status, to what, and whether a human should look at it.
type TransitionDecision struct {
	ShouldUpdate bool               `json:"should_update"`
	Target       *ApplicationStatus `json:"target,omitempty"`
	NeedsReview  bool               `json:"needs_review"`
	Reason       string             `json:"reason"`
}

// Trigger maps a decision onto the history trigger type recorded with the
// status change it produced.
func (d TransitionDecision) Trigger() TriggerType {
	if d.NeedsReview {
		return TriggerEmailAutoReview
	}
	return TriggerEmailAuto
}
