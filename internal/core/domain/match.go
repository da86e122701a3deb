package domain

type MatchMethod string

const (
	MatchMethodATS     MatchMethod = "ats"
	MatchMethodDomain  MatchMethod = "domain"
	MatchMethodAlias   MatchMethod = "alias"
	MatchMethodSubject MatchMethod = "subject"
	MatchMethodNone    MatchMethod = "none"
)

// MatchResult is the Matcher's verdict for one email. ApplicationID is nil
// when nothing matched; CompanyName is the name the winning strategy
// recovered, kept even on a miss for review-queue display.
type MatchResult struct {
	ApplicationID *string     `json:"application_id,omitempty"`
	CompanyName   string      `json:"company_name,omitempty"`
	Confidence    float64     `json:"confidence"`
	Method        MatchMethod `json:"method"`
}

func (m MatchResult) Matched() bool {
	return m.ApplicationID != nil
}
