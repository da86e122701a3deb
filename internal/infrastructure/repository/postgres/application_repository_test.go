package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

func applicationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "job_title", "company_name", "status",
		"job_type", "location_type", "location", "created_at", "updated_at",
	})
}

func TestApplicationRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery("FROM applications").
		WithArgs("missing").
		WillReturnRows(applicationRows())

	_, err = repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplicationRepositoryListByCompanyName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	rows := applicationRows().
		AddRow("app-1", "u-1", "Engineer", "Acme Corp", string(domain.StatusApplied), "", "", "", time.Now(), time.Now())

	mock.ExpectQuery("company_name ILIKE").
		WithArgs("u-1", "Acme").
		WillReturnRows(rows)

	apps, err := repo.ListByCompanyName(context.Background(), "u-1", "Acme")
	if err != nil {
		t.Fatalf("ListByCompanyName() error = %v", err)
	}
	if len(apps) != 1 || apps[0].CompanyName != "Acme Corp" {
		t.Fatalf("unexpected result: %+v", apps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplicationRepositoryListByStatusesExpandsPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	rows := applicationRows().
		AddRow("app-1", "u-1", "Engineer", "Acme Corp", string(domain.StatusApplied), "", "", "", time.Now(), time.Now()).
		AddRow("app-2", "u-1", "Analyst", "Initech", string(domain.StatusScreening), "", "", "", time.Now(), time.Now())

	mock.ExpectQuery(`status IN \(\$2,\$3\)`).
		WithArgs("u-1", string(domain.StatusApplied), string(domain.StatusScreening)).
		WillReturnRows(rows)

	apps, err := repo.ListByStatuses(context.Background(), "u-1",
		[]domain.ApplicationStatus{domain.StatusApplied, domain.StatusScreening})
	if err != nil {
		t.Fatalf("ListByStatuses() error = %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(apps))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplicationRepositoryListByStatusesEmptyInput(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	apps, err := repo.ListByStatuses(context.Background(), "u-1", nil)
	if err != nil {
		t.Fatalf("ListByStatuses() error = %v", err)
	}
	if len(apps) != 0 {
		t.Fatalf("expected empty result without a query, got %d", len(apps))
	}
}

func TestUpdateStatusGuardedCommitsUpdateAndHistoryTogether(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	from := domain.StatusApplied
	entry := &domain.StatusHistoryEntry{
		ID:            "hist-1",
		ApplicationID: "app-1",
		FromStatus:    &from,
		ToStatus:      domain.StatusInterviewing,
		Trigger:       domain.TriggerEmailAuto,
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", string(domain.StatusApplied), string(domain.StatusInterviewing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO status_history").
		WithArgs("hist-1", "app-1", string(domain.StatusApplied), string(domain.StatusInterviewing),
			string(domain.TriggerEmailAuto), nil, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := repo.UpdateStatusGuarded(context.Background(), "app-1",
		domain.StatusApplied, domain.StatusInterviewing, entry)
	if err != nil {
		t.Fatalf("UpdateStatusGuarded() error = %v", err)
	}
	if !applied {
		t.Fatalf("expected guard to pass")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusGuardedRollsBackOnGuardFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewApplicationRepository(db)
	from := domain.StatusApplied
	entry := &domain.StatusHistoryEntry{
		ID:            "hist-1",
		ApplicationID: "app-1",
		FromStatus:    &from,
		ToStatus:      domain.StatusInterviewing,
		Trigger:       domain.TriggerEmailAuto,
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", string(domain.StatusApplied), string(domain.StatusInterviewing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	applied, err := repo.UpdateStatusGuarded(context.Background(), "app-1",
		domain.StatusApplied, domain.StatusInterviewing, entry)
	if err != nil {
		t.Fatalf("UpdateStatusGuarded() error = %v", err)
	}
	if applied {
		t.Fatalf("expected guard to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
