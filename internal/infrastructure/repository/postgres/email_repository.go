package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type EmailRecordRepository struct {
	db *sql.DB
}

func NewEmailRecordRepository(db *sql.DB) *EmailRecordRepository {
	return &EmailRecordRepository{db: db}
}

const emailColumns = `id, message_id, user_id, application_id, sender, sender_name, subject, body_preview, received_at, classification, manual_override, created_at`

// CreateIfAbsent inserts the record keyed by message id. On conflict the
// existing row wins and comes back unchanged, which makes pipeline replays
// write-once.
func (r *EmailRecordRepository) CreateIfAbsent(ctx context.Context, rec *domain.EmailRecord) (*domain.EmailRecord, error) {
	clsJSON, err := marshalClassification(rec.Classification)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO email_records (id, message_id, user_id, application_id, sender, sender_name, subject, body_preview, received_at, classification, manual_override, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (message_id) DO NOTHING
`,
		rec.ID, rec.MessageID, rec.UserID, rec.ApplicationID, rec.Sender, rec.SenderName,
		rec.Subject, rec.BodyPreview, rec.ReceivedAt, clsJSON, rec.ManualOverride, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert email record: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT `+emailColumns+`
FROM email_records
WHERE message_id = $1
`, rec.MessageID)
	stored, err := scanEmailRecord(row)
	if err != nil {
		return nil, fmt.Errorf("fetch email record after insert: %w", err)
	}
	return &stored, nil
}

func (r *EmailRecordRepository) GetByID(ctx context.Context, id string) (*domain.EmailRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+emailColumns+`
FROM email_records
WHERE id = $1
`, id)

	rec, err := scanEmailRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email record %s: %w", id, domain.ErrEmailRecordNotFound)
		}
		return nil, fmt.Errorf("get email record by id: %w", err)
	}
	return &rec, nil
}

func (r *EmailRecordRepository) LinkApplication(ctx context.Context, recordID, applicationID string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE email_records
SET application_id = $2, manual_override = TRUE
WHERE id = $1
`, recordID, applicationID)
	if err != nil {
		return fmt.Errorf("link email record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link email record rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("email record %s: %w", recordID, domain.ErrEmailRecordNotFound)
	}
	return nil
}

func marshalClassification(cls *domain.Classification) (interface{}, error) {
	if cls == nil {
		return nil, nil
	}
	raw, err := json.Marshal(cls)
	if err != nil {
		return nil, fmt.Errorf("marshal classification: %w", err)
	}
	return raw, nil
}

func scanEmailRecord(row rowScanner) (domain.EmailRecord, error) {
	var rec domain.EmailRecord
	var senderName sql.NullString
	var clsRaw []byte
	err := row.Scan(
		&rec.ID,
		&rec.MessageID,
		&rec.UserID,
		&rec.ApplicationID,
		&rec.Sender,
		&senderName,
		&rec.Subject,
		&rec.BodyPreview,
		&rec.ReceivedAt,
		&clsRaw,
		&rec.ManualOverride,
		&rec.CreatedAt,
	)
	if err != nil {
		return domain.EmailRecord{}, err
	}
	rec.SenderName = senderName.String
	if len(clsRaw) > 0 {
		var cls domain.Classification
		if err := json.Unmarshal(clsRaw, &cls); err != nil {
			return domain.EmailRecord{}, fmt.Errorf("unmarshal classification: %w", err)
		}
		rec.Classification = &cls
	}
	return rec, nil
}
