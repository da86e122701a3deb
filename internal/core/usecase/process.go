package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
	"github.com/mvoronkov/jobtrail/internal/core/transition"
)

// ApplicationMatcher associates an email with a tracked application.
type ApplicationMatcher interface {
	Match(ctx context.Context, userID string, email domain.ParsedEmail) (domain.MatchResult, error)
}

// EmailVerdictFunc produces a classification for an email. It never fails;
// degraded verdicts come back as the safe default.
type EmailVerdictFunc interface {
	Classify(ctx context.Context, email domain.ParsedEmail) domain.Classification
}

// ProcessEmailUseCase drives one pipeline run through its steps: match,
// classify, record, route. Every step checkpoint is durable, so redelivery
// resumes from the cursor instead of redoing earlier steps. All writes are
// guarded so replays cannot double-apply.
type ProcessEmailUseCase struct {
	runs       ports.RunRepository
	apps       ports.ApplicationRepository
	emails     ports.EmailRecordRepository
	reviews    ports.ReviewRepository
	matcher    ApplicationMatcher
	classifier EmailVerdictFunc
	engine     *transition.Engine
}

func NewProcessEmailUseCase(
	runs ports.RunRepository,
	apps ports.ApplicationRepository,
	emails ports.EmailRecordRepository,
	reviews ports.ReviewRepository,
	matcher ApplicationMatcher,
	classifier EmailVerdictFunc,
	engine *transition.Engine,
) *ProcessEmailUseCase {
	return &ProcessEmailUseCase{
		runs:       runs,
		apps:       apps,
		emails:     emails,
		reviews:    reviews,
		matcher:    matcher,
		classifier: classifier,
		engine:     engine,
	}
}

func (uc *ProcessEmailUseCase) ProcessByID(ctx context.Context, messageID string) error {
	run, err := uc.runs.Get(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load pipeline run: %w", err)
	}
	if run.Status == domain.RunDone {
		return nil
	}

	attempts, err := uc.runs.MarkRunning(ctx, messageID)
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	if attempts > domain.MaxRunAttempts {
		if err := uc.runs.MarkFailed(ctx, messageID, "retry budget exhausted"); err != nil {
			return fmt.Errorf("mark run failed: %w", err)
		}
		// Swallow the message: redelivering a poisoned run forever helps no one.
		return nil
	}

	if err := uc.runSteps(ctx, run); err != nil {
		if attempts >= domain.MaxRunAttempts {
			if failErr := uc.runs.MarkFailed(ctx, messageID, err.Error()); failErr != nil {
				return fmt.Errorf("%w; mark failed status: %v", err, failErr)
			}
			return nil
		}
		return err
	}

	if err := uc.runs.MarkDone(ctx, messageID); err != nil {
		return fmt.Errorf("mark run done: %w", err)
	}
	return nil
}

func (uc *ProcessEmailUseCase) runSteps(ctx context.Context, run *domain.PipelineRun) error {
	if run.Step == domain.StepReceived {
		if err := uc.stepMatch(ctx, run); err != nil {
			return err
		}
	}
	if run.Step == domain.StepMatched {
		if err := uc.stepClassify(ctx, run); err != nil {
			return err
		}
	}
	if run.Step == domain.StepClassified {
		if err := uc.stepRecord(ctx, run); err != nil {
			return err
		}
	}
	if run.Step == domain.StepRecorded {
		if err := uc.stepRoute(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (uc *ProcessEmailUseCase) stepMatch(ctx context.Context, run *domain.PipelineRun) error {
	result, err := uc.matcher.Match(ctx, run.UserID, run.Email)
	if err != nil {
		return fmt.Errorf("match email: %w", err)
	}
	run.Match = &result
	return uc.checkpoint(ctx, run, domain.StepMatched)
}

func (uc *ProcessEmailUseCase) stepClassify(ctx context.Context, run *domain.PipelineRun) error {
	cls := uc.classifier.Classify(ctx, run.Email)
	run.Classification = &cls
	return uc.checkpoint(ctx, run, domain.StepClassified)
}

func (uc *ProcessEmailUseCase) stepRecord(ctx context.Context, run *domain.PipelineRun) error {
	rec := &domain.EmailRecord{
		ID:             uuid.NewString(),
		MessageID:      run.MessageID,
		UserID:         run.UserID,
		Sender:         run.Email.From,
		SenderName:     run.Email.FromName,
		Subject:        run.Email.Subject,
		BodyPreview:    domain.PreviewBody(run.Email.Body),
		ReceivedAt:     run.Email.ReceivedAt,
		Classification: run.Classification,
		CreatedAt:      time.Now().UTC(),
	}
	if run.Match != nil && run.Match.Matched() {
		rec.ApplicationID = run.Match.ApplicationID
	}

	stored, err := uc.emails.CreateIfAbsent(ctx, rec)
	if err != nil {
		return fmt.Errorf("record email: %w", err)
	}
	run.EmailRecordID = &stored.ID
	return uc.checkpoint(ctx, run, domain.StepRecorded)
}

func (uc *ProcessEmailUseCase) stepRoute(ctx context.Context, run *domain.PipelineRun) error {
	cls := run.Classification
	if cls == nil {
		fallback := domain.FallbackClassification()
		cls = &fallback
	}

	switch {
	case run.Match == nil || !run.Match.Matched():
		// Every unmatched email lands in the review queue, unrelated ones
		// included: a wrong "unrelated" verdict must stay visible.
		if err := uc.enqueueReview(ctx, run); err != nil {
			return err
		}
	default:
		if err := uc.applyTransition(ctx, run, cls); err != nil {
			return err
		}
	}

	return uc.checkpoint(ctx, run, domain.StepRouted)
}

// strongMatchConfidence separates the deterministic sender matches (ats,
// domain, alias) from the subject-template heuristic. Transitions riding a
// weaker match are applied but flagged, never silent.
const strongMatchConfidence = 0.8

// applyTransition asks the engine for a verdict on the classification and
// performs the guarded status update. The review queue is reserved for
// unmatched emails; a matched email that needs a second look is flagged
// through its history trigger instead.
func (uc *ProcessEmailUseCase) applyTransition(ctx context.Context, run *domain.PipelineRun, cls *domain.Classification) error {
	app, err := uc.apps.GetByID(ctx, *run.Match.ApplicationID)
	if err != nil {
		if domain.IsKind(err, domain.ErrApplicationNotFound) {
			// Application deleted between match and route: treat as unmatched.
			return uc.enqueueReview(ctx, run)
		}
		return fmt.Errorf("load matched application: %w", err)
	}

	decision := uc.engine.Decide(cls.Category, cls.Confidence, app.Status)
	if decision.ShouldUpdate && !decision.NeedsReview && run.Match.Confidence < strongMatchConfidence {
		decision.NeedsReview = true
	}

	if decision.ShouldUpdate {
		entry := &domain.StatusHistoryEntry{
			ID:            uuid.NewString(),
			ApplicationID: app.ID,
			FromStatus:    &app.Status,
			ToStatus:      *decision.Target,
			Trigger:       decision.Trigger(),
			EmailRecordID: run.EmailRecordID,
			CreatedAt:     time.Now().UTC(),
		}
		applied, err := uc.apps.UpdateStatusGuarded(ctx, app.ID, app.Status, *decision.Target, entry)
		if err != nil {
			return fmt.Errorf("update application status: %w", err)
		}
		if !applied {
			// The status moved underneath us, most likely a concurrent manual
			// edit. The user's write wins; this email stays a no-op.
			slog.Warn("status guard failed, withholding transition",
				"application_id", app.ID,
				"message_id", run.MessageID,
				"wanted_status", string(*decision.Target),
			)
		}
	}
	return nil
}

func (uc *ProcessEmailUseCase) enqueueReview(ctx context.Context, run *domain.PipelineRun) error {
	if run.EmailRecordID == nil {
		return domain.WrapError(domain.ErrInvalidInput, "enqueue review", fmt.Errorf("run %s has no email record", run.MessageID))
	}

	suggestions, err := uc.suggestApplications(ctx, run.UserID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := &domain.UnmatchedEmail{
		ID:            uuid.NewString(),
		EmailRecordID: *run.EmailRecordID,
		UserID:        run.UserID,
		SuggestedApps: suggestions,
		Status:        domain.ReviewPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := uc.reviews.CreateIfAbsent(ctx, entry); err != nil {
		return fmt.Errorf("enqueue review entry: %w", err)
	}
	return nil
}

// suggestApplications ranks candidate applications for the review UI: active
// ones first, newest first, capped at the suggestion limit.
func (uc *ProcessEmailUseCase) suggestApplications(ctx context.Context, userID string) ([]string, error) {
	active := []domain.ApplicationStatus{
		domain.StatusApplied, domain.StatusScreening,
		domain.StatusInterviewing, domain.StatusOffer, domain.StatusGhosted,
	}
	apps, err := uc.apps.ListByStatuses(ctx, userID, active)
	if err != nil {
		return nil, fmt.Errorf("list candidate applications: %w", err)
	}

	ids := make([]string, 0, domain.MaxSuggestions)
	for _, app := range apps {
		if len(ids) == domain.MaxSuggestions {
			break
		}
		ids = append(ids, app.ID)
	}
	return ids, nil
}

func (uc *ProcessEmailUseCase) checkpoint(ctx context.Context, run *domain.PipelineRun, next domain.RunStep) error {
	run.Step = next
	run.UpdatedAt = time.Now().UTC()
	if err := uc.runs.Checkpoint(ctx, run); err != nil {
		return fmt.Errorf("checkpoint step %s: %w", next, err)
	}
	return nil
}
