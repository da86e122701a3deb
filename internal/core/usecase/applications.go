package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
)

// ApplicationUseCase handles manual application management: creation, reads,
// manual status moves and spreadsheet import. Manual moves bypass the
// transition engine; the user is the authority over their own board.
type ApplicationUseCase struct {
	apps    ports.ApplicationRepository
	history ports.HistoryRepository
	parser  ports.SpreadsheetParser
}

func NewApplicationUseCase(
	apps ports.ApplicationRepository,
	history ports.HistoryRepository,
	parser ports.SpreadsheetParser,
) *ApplicationUseCase {
	return &ApplicationUseCase{
		apps:    apps,
		history: history,
		parser:  parser,
	}
}

func (uc *ApplicationUseCase) Create(ctx context.Context, app *domain.Application) (*domain.Application, error) {
	if err := validateNewApplication(app); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app.ID = uuid.NewString()
	if app.Status == "" {
		app.Status = domain.StatusSaved
	}
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := uc.apps.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	if err := uc.appendCreationHistory(ctx, app, domain.TriggerManual); err != nil {
		return nil, err
	}
	return app, nil
}

func (uc *ApplicationUseCase) Get(ctx context.Context, userID, id string) (*domain.Application, error) {
	app, err := uc.apps.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app.UserID != userID {
		return nil, domain.WrapError(domain.ErrApplicationNotFound, "load application",
			errors.New("owned by another user"))
	}
	return app, nil
}

func (uc *ApplicationUseCase) List(ctx context.Context, userID string) ([]domain.Application, error) {
	apps, err := uc.apps.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (uc *ApplicationUseCase) History(ctx context.Context, userID, id string) ([]domain.StatusHistoryEntry, error) {
	if _, err := uc.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	entries, err := uc.history.ListByApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}

// SetStatus performs a user-initiated status change. Any target status is
// allowed; the guard only protects against concurrent writers.
func (uc *ApplicationUseCase) SetStatus(ctx context.Context, userID, id string, next domain.ApplicationStatus) (*domain.Application, error) {
	if !next.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "set status",
			fmt.Errorf("unknown status %q", next))
	}

	app, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if app.Status == next {
		return app, nil
	}

	entry := &domain.StatusHistoryEntry{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		FromStatus:    &app.Status,
		ToStatus:      next,
		Trigger:       domain.TriggerManual,
		CreatedAt:     time.Now().UTC(),
	}
	applied, err := uc.apps.UpdateStatusGuarded(ctx, app.ID, app.Status, next, entry)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if !applied {
		return nil, domain.WrapError(domain.ErrConflict, "set status",
			errors.New("status changed concurrently"))
	}

	app.Status = next
	app.UpdatedAt = entry.CreatedAt
	return app, nil
}

// Import parses an uploaded sheet and creates one application per valid row.
// Invalid rows are skipped and reported, never aborting the whole file.
func (uc *ApplicationUseCase) Import(ctx context.Context, userID string, sheet io.Reader) (*ports.ImportReport, error) {
	rows, err := uc.parser.Parse(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse import sheet", err)
	}

	report := &ports.ImportReport{}
	for i, row := range rows {
		row.UserID = userID
		if row.Status == "" {
			row.Status = domain.StatusSaved
		}
		if err := validateNewApplication(&row); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		now := time.Now().UTC()
		row.ID = uuid.NewString()
		row.CreatedAt = now
		row.UpdatedAt = now

		if err := uc.apps.Create(ctx, &row); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if err := uc.appendCreationHistory(ctx, &row, domain.TriggerImport); err != nil {
			return nil, err
		}
		report.Imported++
	}
	return report, nil
}

func (uc *ApplicationUseCase) appendCreationHistory(ctx context.Context, app *domain.Application, trigger domain.TriggerType) error {
	entry := &domain.StatusHistoryEntry{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		ToStatus:      app.Status,
		Trigger:       trigger,
		CreatedAt:     app.CreatedAt,
	}
	if err := uc.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("append creation history: %w", err)
	}
	return nil
}

func validateNewApplication(app *domain.Application) error {
	if strings.TrimSpace(app.UserID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate application", errors.New("missing user id"))
	}
	if strings.TrimSpace(app.CompanyName) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate application", errors.New("missing company name"))
	}
	if strings.TrimSpace(app.JobTitle) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate application", errors.New("missing job title"))
	}
	if app.Status != "" && !app.Status.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate application",
			fmt.Errorf("unknown status %q", app.Status))
	}
	return nil
}
