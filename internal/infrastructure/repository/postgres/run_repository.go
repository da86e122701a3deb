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

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `message_id, user_id, email, step, status, match_result, classification, email_record_id, attempts, last_error, created_at, updated_at`

func (r *RunRepository) CreateIfAbsent(ctx context.Context, run *domain.PipelineRun) (bool, error) {
	emailJSON, err := json.Marshal(run.Email)
	if err != nil {
		return false, fmt.Errorf("marshal run email: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
INSERT INTO pipeline_runs (message_id, user_id, email, step, status, attempts, last_error, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (message_id) DO NOTHING
`,
		run.MessageID, run.UserID, emailJSON, string(run.Step), string(run.Status),
		run.Attempts, run.LastError, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert pipeline run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert pipeline run rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *RunRepository) Get(ctx context.Context, messageID string) (*domain.PipelineRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+runColumns+`
FROM pipeline_runs
WHERE message_id = $1
`, messageID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pipeline run %s: %w", messageID, domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return &run, nil
}

// Checkpoint persists the step cursor and the step results accumulated on the
// run so far. Called after every completed step.
func (r *RunRepository) Checkpoint(ctx context.Context, run *domain.PipelineRun) error {
	matchJSON, err := marshalNullable(run.Match)
	if err != nil {
		return fmt.Errorf("marshal match result: %w", err)
	}
	clsJSON, err := marshalNullable(run.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE pipeline_runs
SET step = $2, match_result = $3, classification = $4, email_record_id = $5, updated_at = $6
WHERE message_id = $1
`, run.MessageID, string(run.Step), matchJSON, clsJSON, run.EmailRecordID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("checkpoint pipeline run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checkpoint rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pipeline run %s: %w", run.MessageID, domain.ErrRunNotFound)
	}
	return nil
}

func (r *RunRepository) MarkRunning(ctx context.Context, messageID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE pipeline_runs
SET status = $2, attempts = attempts + 1, updated_at = $3
WHERE message_id = $1
RETURNING attempts
`, messageID, string(domain.RunRunning), time.Now().UTC())

	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("pipeline run %s: %w", messageID, domain.ErrRunNotFound)
		}
		return 0, fmt.Errorf("mark run running: %w", err)
	}
	return attempts, nil
}

func (r *RunRepository) MarkDone(ctx context.Context, messageID string) error {
	return r.setStatus(ctx, messageID, domain.RunDone, "")
}

func (r *RunRepository) MarkFailed(ctx context.Context, messageID, lastError string) error {
	return r.setStatus(ctx, messageID, domain.RunFailed, lastError)
}

func (r *RunRepository) setStatus(ctx context.Context, messageID string, status domain.RunStatus, lastError string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE pipeline_runs
SET status = $2, last_error = $3, updated_at = $4
WHERE message_id = $1
`, messageID, string(status), lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set run status rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pipeline run %s: %w", messageID, domain.ErrRunNotFound)
	}
	return nil
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch value := v.(type) {
	case *domain.MatchResult:
		if value == nil {
			return nil, nil
		}
	case *domain.Classification:
		if value == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func scanRun(row rowScanner) (domain.PipelineRun, error) {
	var run domain.PipelineRun
	var emailRaw, matchRaw, clsRaw []byte
	var step, status string
	var lastError sql.NullString
	err := row.Scan(
		&run.MessageID,
		&run.UserID,
		&emailRaw,
		&step,
		&status,
		&matchRaw,
		&clsRaw,
		&run.EmailRecordID,
		&run.Attempts,
		&lastError,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return domain.PipelineRun{}, err
	}

	if err := json.Unmarshal(emailRaw, &run.Email); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("unmarshal run email: %w", err)
	}
	if len(matchRaw) > 0 {
		var match domain.MatchResult
		if err := json.Unmarshal(matchRaw, &match); err != nil {
			return domain.PipelineRun{}, fmt.Errorf("unmarshal match result: %w", err)
		}
		run.Match = &match
	}
	if len(clsRaw) > 0 {
		var cls domain.Classification
		if err := json.Unmarshal(clsRaw, &cls); err != nil {
			return domain.PipelineRun{}, fmt.Errorf("unmarshal classification: %w", err)
		}
		run.Classification = &cls
	}
	run.Step = domain.RunStep(step)
	run.Status = domain.RunStatus(status)
	run.LastError = lastError.String
	return run, nil
}
