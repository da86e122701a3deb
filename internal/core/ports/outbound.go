package ports

import (
	"context"
	"io"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

// ApplicationRepository reads and mutates tracked applications. All reads used
// by the Matcher are side-effect free.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Application, error)
	// ListByCompanyName returns the owner's applications whose company name
	// contains the fragment, case-insensitively, newest first.
	ListByCompanyName(ctx context.Context, userID, fragment string) ([]domain.Application, error)
	// ListByStatuses returns the owner's applications in any of the given
	// statuses, newest first.
	ListByStatuses(ctx context.Context, userID string, statuses []domain.ApplicationStatus) ([]domain.Application, error)
	// UpdateStatusGuarded sets the status only while it still equals expected,
	// appending the history entry in the same transaction. A false return
	// means the optimistic guard failed and nothing was written.
	UpdateStatusGuarded(ctx context.Context, id string, expected, next domain.ApplicationStatus, entry *domain.StatusHistoryEntry) (bool, error)
}

// EmailRecordRepository persists per-email audit records.
type EmailRecordRepository interface {
	// CreateIfAbsent inserts the record unless one already exists for its
	// message id, and returns the stored record either way.
	CreateIfAbsent(ctx context.Context, rec *domain.EmailRecord) (*domain.EmailRecord, error)
	GetByID(ctx context.Context, id string) (*domain.EmailRecord, error)
	// LinkApplication attaches an application to an unmatched record and sets
	// the manual-override flag.
	LinkApplication(ctx context.Context, recordID, applicationID string) error
}

// ReviewRepository manages the unmatched-email review queue.
type ReviewRepository interface {
	// CreateIfAbsent inserts an entry unless the email record already has one.
	CreateIfAbsent(ctx context.Context, entry *domain.UnmatchedEmail) (*domain.UnmatchedEmail, error)
	GetByID(ctx context.Context, id string) (*domain.UnmatchedEmail, error)
	ListPending(ctx context.Context, userID string) ([]domain.UnmatchedEmail, error)
	MarkLinked(ctx context.Context, id, applicationID string) error
	MarkDismissed(ctx context.Context, id string) error
}

// HistoryRepository reads and appends status-history rows. Appends that
// accompany a status change go through ApplicationRepository.UpdateStatusGuarded
// instead, so row and status always land in one transaction.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByApplication(ctx context.Context, applicationID string) ([]domain.StatusHistoryEntry, error)
}

// RunRepository is the durable checkpoint store for pipeline runs.
type RunRepository interface {
	// CreateIfAbsent registers a run for the message unless one exists, and
	// reports whether this call created it.
	CreateIfAbsent(ctx context.Context, run *domain.PipelineRun) (created bool, err error)
	Get(ctx context.Context, messageID string) (*domain.PipelineRun, error)
	// Checkpoint persists the step cursor and any step results set on run.
	Checkpoint(ctx context.Context, run *domain.PipelineRun) error
	MarkRunning(ctx context.Context, messageID string) (attempts int, err error)
	MarkDone(ctx context.Context, messageID string) error
	MarkFailed(ctx context.Context, messageID, lastError string) error
}

// MessageQueue hands inbound message ids to the pipeline workers with
// at-least-once delivery.
type MessageQueue interface {
	PublishEmailReceived(ctx context.Context, messageID string) error
	SubscribeEmailReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// EmailClassifier is the model-provider contract. Implementations surface
// provider failures; the safe-default fallback lives above them.
type EmailClassifier interface {
	Classify(ctx context.Context, email domain.ParsedEmail) (domain.Classification, error)
}

// ClassificationCache stores classification results under a content-hash key
// for a bounded TTL. A miss returns ok=false, never an error a caller must
// handle differently from a miss.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (domain.Classification, bool)
	Set(ctx context.Context, key string, cls domain.Classification, ttl time.Duration)
}

// PayloadArchive keeps raw inbound events for audit and replay.
type PayloadArchive interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SpreadsheetParser decodes an uploaded sheet into application rows. Rows come
// back as-parsed; validation and ownership stamping happen in the use case.
type SpreadsheetParser interface {
	Parse(r io.Reader) ([]domain.Application, error)
}
