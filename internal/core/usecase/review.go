package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
	"github.com/mvoronkov/jobtrail/internal/core/transition"
)

// ReviewQueueUseCase resolves review-queue entries. Linking replays the stored
// classification against the chosen application, so a human confirmation can
// still move the status, recorded with the manual trigger.
type ReviewQueueUseCase struct {
	reviews ports.ReviewRepository
	emails  ports.EmailRecordRepository
	apps    ports.ApplicationRepository
	engine  *transition.Engine
}

func NewReviewQueueUseCase(
	reviews ports.ReviewRepository,
	emails ports.EmailRecordRepository,
	apps ports.ApplicationRepository,
	engine *transition.Engine,
) *ReviewQueueUseCase {
	return &ReviewQueueUseCase{
		reviews: reviews,
		emails:  emails,
		apps:    apps,
		engine:  engine,
	}
}

func (uc *ReviewQueueUseCase) ListPending(ctx context.Context, userID string) ([]domain.UnmatchedEmail, error) {
	entries, err := uc.reviews.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	return entries, nil
}

func (uc *ReviewQueueUseCase) Link(ctx context.Context, entryID, applicationID string) (*domain.UnmatchedEmail, error) {
	entry, err := uc.reviews.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("load review entry: %w", err)
	}
	if entry.Status != domain.ReviewPending {
		return nil, domain.WrapError(domain.ErrConflict, "link review entry",
			fmt.Errorf("entry already %s", entry.Status))
	}

	app, err := uc.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("load target application: %w", err)
	}
	if app.UserID != entry.UserID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "link review entry",
			errors.New("application belongs to another user"))
	}

	if err := uc.emails.LinkApplication(ctx, entry.EmailRecordID, app.ID); err != nil {
		return nil, fmt.Errorf("link email record: %w", err)
	}

	if err := uc.replayClassification(ctx, entry, app); err != nil {
		return nil, err
	}

	if err := uc.reviews.MarkLinked(ctx, entryID, app.ID); err != nil {
		return nil, fmt.Errorf("mark review entry linked: %w", err)
	}

	entry.Status = domain.ReviewLinked
	entry.LinkedApplicationID = &app.ID
	entry.UpdatedAt = time.Now().UTC()
	return entry, nil
}

// replayClassification applies the email's stored verdict to the manually
// chosen application. The human link substitutes for match confidence, so
// only edge legality can still withhold the transition.
func (uc *ReviewQueueUseCase) replayClassification(ctx context.Context, entry *domain.UnmatchedEmail, app *domain.Application) error {
	rec, err := uc.emails.GetByID(ctx, entry.EmailRecordID)
	if err != nil {
		return fmt.Errorf("load email record: %w", err)
	}
	if rec.Classification == nil {
		return nil
	}

	decision := uc.engine.Decide(rec.Classification.Category, 1.0, app.Status)
	if !decision.ShouldUpdate {
		return nil
	}

	historyEntry := &domain.StatusHistoryEntry{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		FromStatus:    &app.Status,
		ToStatus:      *decision.Target,
		Trigger:       domain.TriggerEmailManual,
		EmailRecordID: &rec.ID,
		CreatedAt:     time.Now().UTC(),
	}
	applied, err := uc.apps.UpdateStatusGuarded(ctx, app.ID, app.Status, *decision.Target, historyEntry)
	if err != nil {
		return fmt.Errorf("apply linked transition: %w", err)
	}
	if !applied {
		// Status moved since the entry was created. The link still stands;
		// the user sees the current status either way.
		return nil
	}
	return nil
}

func (uc *ReviewQueueUseCase) Dismiss(ctx context.Context, entryID string) error {
	entry, err := uc.reviews.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("load review entry: %w", err)
	}
	if entry.Status != domain.ReviewPending {
		return domain.WrapError(domain.ErrConflict, "dismiss review entry",
			fmt.Errorf("entry already %s", entry.Status))
	}
	if err := uc.reviews.MarkDismissed(ctx, entryID); err != nil {
		return fmt.Errorf("mark review entry dismissed: %w", err)
	}
	return nil
}
