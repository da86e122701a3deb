package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	var fromStatus interface{}
	if entry.FromStatus != nil {
		fromStatus = string(*entry.FromStatus)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO status_history (id, application_id, from_status, to_status, trigger_type, email_record_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, entry.ID, entry.ApplicationID, fromStatus, string(entry.ToStatus), string(entry.Trigger), entry.EmailRecordID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, application_id, from_status, to_status, trigger_type, email_record_id, created_at
FROM status_history
WHERE application_id = $1
ORDER BY created_at
`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StatusHistoryEntry, 0)
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		var fromStatus sql.NullString
		var toStatus, trigger string
		if err := rows.Scan(
			&entry.ID,
			&entry.ApplicationID,
			&fromStatus,
			&toStatus,
			&trigger,
			&entry.EmailRecordID,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if fromStatus.Valid {
			status := domain.ApplicationStatus(fromStatus.String)
			entry.FromStatus = &status
		}
		entry.ToStatus = domain.ApplicationStatus(toStatus)
		entry.Trigger = domain.TriggerType(trigger)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}
	return out, nil
}
