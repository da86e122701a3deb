package ports

import (
	"context"
	"io"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

// InboundEmailEvent is the gateway's webhook payload.
type InboundEmailEvent struct {
	UserID    string             `json:"user_id"`
	MessageID string             `json:"message_id,omitempty"`
	Email     domain.ParsedEmail `json:"email"`
}

// EmailIntake accepts gateway events and enqueues them for processing. The
// bool reports whether the event started a new run; redeliveries return the
// existing run with false.
type EmailIntake interface {
	Receive(ctx context.Context, event InboundEmailEvent) (*domain.PipelineRun, bool, error)
}

// EmailProcessor is the asynchronous pipeline entry point.
type EmailProcessor interface {
	ProcessByID(ctx context.Context, messageID string) error
}

// ReviewQueue exposes the unmatched-email queue to the corrective UI.
type ReviewQueue interface {
	ListPending(ctx context.Context, userID string) ([]domain.UnmatchedEmail, error)
	Link(ctx context.Context, entryID, applicationID string) (*domain.UnmatchedEmail, error)
	Dismiss(ctx context.Context, entryID string) error
}

// ApplicationIntake covers manual creation and spreadsheet import.
type ApplicationIntake interface {
	Create(ctx context.Context, app *domain.Application) (*domain.Application, error)
	Import(ctx context.Context, userID string, sheet io.Reader) (*ImportReport, error)
}

// ImportReport summarizes one spreadsheet import.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
