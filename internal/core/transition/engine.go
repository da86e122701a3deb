// Package transition decides whether a classified email may change an
// application's status. Decide is total and side-effect free.
package transition

import (
	"fmt"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type Engine struct {
	tables Tables
}

func NewEngine(tables Tables) *Engine {
	if tables.ReviewThreshold <= 0 {
		tables.ReviewThreshold = DefaultTables().ReviewThreshold
	}
	if tables.AutoThreshold <= 0 {
		tables.AutoThreshold = DefaultTables().AutoThreshold
	}
	return &Engine{tables: tables}
}

// Decide applies the rules in fixed order: no-op categories first, then edge
// legality, then the confidence bands. An illegal edge wins over any
// confidence because it signals a misclassification or out-of-order delivery,
// never something to apply silently.
func (e *Engine) Decide(category domain.EmailCategory, confidence float64, current domain.ApplicationStatus) domain.TransitionDecision {
	target, ok := e.tables.Targets[category]
	if !ok {
		return domain.TransitionDecision{
			ShouldUpdate: false,
			NeedsReview:  false,
			Reason:       fmt.Sprintf("category %s does not change status", category),
		}
	}

	if !e.legalEdge(current, target) {
		return domain.TransitionDecision{
			ShouldUpdate: false,
			Target:       &target,
			NeedsReview:  true,
			Reason:       fmt.Sprintf("transition %s -> %s is not allowed", current, target),
		}
	}

	switch {
	case confidence < e.tables.ReviewThreshold:
		return domain.TransitionDecision{
			ShouldUpdate: false,
			Target:       &target,
			NeedsReview:  true,
			Reason:       fmt.Sprintf("confidence %.2f below review threshold %.2f", confidence, e.tables.ReviewThreshold),
		}
	case confidence < e.tables.AutoThreshold:
		return domain.TransitionDecision{
			ShouldUpdate: true,
			Target:       &target,
			NeedsReview:  true,
			Reason:       fmt.Sprintf("confidence %.2f applied with review flag", confidence),
		}
	default:
		return domain.TransitionDecision{
			ShouldUpdate: true,
			Target:       &target,
			NeedsReview:  false,
			Reason:       fmt.Sprintf("confidence %.2f above auto threshold %.2f", confidence, e.tables.AutoThreshold),
		}
	}
}

func (e *Engine) legalEdge(from, to domain.ApplicationStatus) bool {
	for _, next := range e.tables.Edges[from] {
		if next == to {
			return true
		}
	}
	return false
}
