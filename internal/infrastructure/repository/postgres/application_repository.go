package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, user_id, job_title, company_name, status, job_type, location_type, location, created_at, updated_at`

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO applications (id, user_id, job_title, company_name, status, job_type, location_type, location, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		app.ID, app.UserID, app.JobTitle, app.CompanyName, string(app.Status),
		string(app.JobType), string(app.LocationType), app.Location, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+applicationColumns+`
FROM applications
WHERE id = $1
`, id)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", id, domain.ErrApplicationNotFound)
		}
		return nil, fmt.Errorf("get application by id: %w", err)
	}
	return &app, nil
}

func (r *ApplicationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+applicationColumns+`
FROM applications
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return collectApplications(rows)
}

func (r *ApplicationRepository) ListByCompanyName(ctx context.Context, userID, fragment string) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+applicationColumns+`
FROM applications
WHERE user_id = $1 AND company_name ILIKE '%' || $2 || '%'
ORDER BY created_at DESC
`, userID, escapeLike(fragment))
	if err != nil {
		return nil, fmt.Errorf("list applications by company: %w", err)
	}
	return collectApplications(rows)
}

func (r *ApplicationRepository) ListByStatuses(ctx context.Context, userID string, statuses []domain.ApplicationStatus) ([]domain.Application, error) {
	if len(statuses) == 0 {
		return []domain.Application{}, nil
	}

	placeholders := make([]string, 0, len(statuses))
	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, userID)
	for i, s := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, string(s))
	}

	query := `
SELECT ` + applicationColumns + `
FROM applications
WHERE user_id = $1 AND status IN (` + strings.Join(placeholders, ",") + `)
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications by status: %w", err)
	}
	return collectApplications(rows)
}

// UpdateStatusGuarded performs the optimistic status move and writes the
// history row in the same transaction. A false return means another writer
// changed the status first; nothing was committed.
func (r *ApplicationRepository) UpdateStatusGuarded(
	ctx context.Context,
	id string,
	expected, next domain.ApplicationStatus,
	entry *domain.StatusHistoryEntry,
) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin status tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE applications
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
`, id, string(expected), string(next), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("guarded status update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("guarded status rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	var fromStatus interface{}
	if entry.FromStatus != nil {
		fromStatus = string(*entry.FromStatus)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO status_history (id, application_id, from_status, to_status, trigger_type, email_record_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, entry.ID, entry.ApplicationID, fromStatus, string(entry.ToStatus), string(entry.Trigger), entry.EmailRecordID, entry.CreatedAt); err != nil {
		return false, fmt.Errorf("insert history row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit status tx: %w", err)
	}
	return true, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var app domain.Application
	var status, jobType, locationType sql.NullString
	err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.JobTitle,
		&app.CompanyName,
		&status,
		&jobType,
		&locationType,
		&app.Location,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return domain.Application{}, err
	}
	app.Status = domain.ApplicationStatus(status.String)
	app.JobType = domain.JobType(jobType.String)
	app.LocationType = domain.LocationType(locationType.String)
	return app, nil
}

func collectApplications(rows *sql.Rows) ([]domain.Application, error) {
	defer rows.Close()

	out := make([]domain.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}
