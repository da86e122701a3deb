package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, email_record_id, user_id, suggested_apps, linked_application_id, status, created_at, updated_at`

func (r *ReviewRepository) CreateIfAbsent(ctx context.Context, entry *domain.UnmatchedEmail) (*domain.UnmatchedEmail, error) {
	suggestions, err := json.Marshal(entry.SuggestedApps)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO review_queue (id, email_record_id, user_id, suggested_apps, linked_application_id, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (email_record_id) DO NOTHING
`,
		entry.ID, entry.EmailRecordID, entry.UserID, suggestions,
		entry.LinkedApplicationID, string(entry.Status), entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert review entry: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT `+reviewColumns+`
FROM review_queue
WHERE email_record_id = $1
`, entry.EmailRecordID)
	stored, err := scanReviewEntry(row)
	if err != nil {
		return nil, fmt.Errorf("fetch review entry after insert: %w", err)
	}
	return &stored, nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.UnmatchedEmail, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+reviewColumns+`
FROM review_queue
WHERE id = $1
`, id)

	entry, err := scanReviewEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review entry %s: %w", id, domain.ErrReviewEntryNotFound)
		}
		return nil, fmt.Errorf("get review entry by id: %w", err)
	}
	return &entry, nil
}

func (r *ReviewRepository) ListPending(ctx context.Context, userID string) ([]domain.UnmatchedEmail, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+reviewColumns+`
FROM review_queue
WHERE user_id = $1 AND status = $2
ORDER BY created_at
`, userID, string(domain.ReviewPending))
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UnmatchedEmail, 0)
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review entries: %w", err)
	}
	return out, nil
}

func (r *ReviewRepository) MarkLinked(ctx context.Context, id, applicationID string) error {
	return r.resolve(ctx, id, domain.ReviewLinked, &applicationID)
}

func (r *ReviewRepository) MarkDismissed(ctx context.Context, id string) error {
	return r.resolve(ctx, id, domain.ReviewDismissed, nil)
}

// resolve flips a pending entry to its terminal state. The status guard keeps
// two concurrent resolutions from both claiming the entry.
func (r *ReviewRepository) resolve(ctx context.Context, id string, status domain.ReviewStatus, applicationID *string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE review_queue
SET status = $2, linked_application_id = $3, updated_at = $4
WHERE id = $1 AND status = $5
`, id, string(status), applicationID, time.Now().UTC(), string(domain.ReviewPending))
	if err != nil {
		return fmt.Errorf("resolve review entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve review entry rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("review entry %s not pending: %w", id, domain.ErrConflict)
	}
	return nil
}

func scanReviewEntry(row rowScanner) (domain.UnmatchedEmail, error) {
	var entry domain.UnmatchedEmail
	var suggestions []byte
	var status string
	err := row.Scan(
		&entry.ID,
		&entry.EmailRecordID,
		&entry.UserID,
		&suggestions,
		&entry.LinkedApplicationID,
		&status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return domain.UnmatchedEmail{}, err
	}
	if err := json.Unmarshal(suggestions, &entry.SuggestedApps); err != nil {
		return domain.UnmatchedEmail{}, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	entry.Status = domain.ReviewStatus(status)
	return entry, nil
}
