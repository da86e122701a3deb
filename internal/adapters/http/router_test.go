package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
)

type intakeFake struct {
	run     *domain.PipelineRun
	created bool
	err     error
	events  []ports.InboundEmailEvent
}

func (f *intakeFake) Receive(_ context.Context, event ports.InboundEmailEvent) (*domain.PipelineRun, bool, error) {
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, false, f.err
	}
	return f.run, f.created, nil
}

type reviewFake struct {
	entries   []domain.UnmatchedEmail
	linked    *domain.UnmatchedEmail
	linkErr   error
	dismissed []string
}

func (f *reviewFake) ListPending(context.Context, string) ([]domain.UnmatchedEmail, error) {
	return f.entries, nil
}

func (f *reviewFake) Link(_ context.Context, entryID, applicationID string) (*domain.UnmatchedEmail, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	entry := f.linked
	entry.ID = entryID
	entry.LinkedApplicationID = &applicationID
	return entry, nil
}

func (f *reviewFake) Dismiss(_ context.Context, entryID string) error {
	f.dismissed = append(f.dismissed, entryID)
	return nil
}

type appServiceFake struct {
	apps      map[string]*domain.Application
	createErr error
	setErr    error
	report    *ports.ImportReport
}

func (f *appServiceFake) Create(_ context.Context, app *domain.Application) (*domain.Application, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	app.ID = "app-new"
	return app, nil
}

func (f *appServiceFake) Get(_ context.Context, userID, id string) (*domain.Application, error) {
	app, ok := f.apps[id]
	if !ok || app.UserID != userID {
		return nil, domain.WrapError(domain.ErrApplicationNotFound, "load application", errors.New("missing"))
	}
	return app, nil
}

func (f *appServiceFake) List(_ context.Context, userID string) ([]domain.Application, error) {
	var out []domain.Application
	for _, app := range f.apps {
		if app.UserID == userID {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *appServiceFake) History(context.Context, string, string) ([]domain.StatusHistoryEntry, error) {
	return []domain.StatusHistoryEntry{{Trigger: domain.TriggerManual}}, nil
}

func (f *appServiceFake) SetStatus(_ context.Context, userID, id string, next domain.ApplicationStatus) (*domain.Application, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	app, ok := f.apps[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrApplicationNotFound, "load application", errors.New("missing"))
	}
	app.Status = next
	return app, nil
}

func (f *appServiceFake) Import(context.Context, string, io.Reader) (*ports.ImportReport, error) {
	return f.report, nil
}

type emailRepoFake struct {
	records map[string]*domain.EmailRecord
}

func (f *emailRepoFake) CreateIfAbsent(_ context.Context, rec *domain.EmailRecord) (*domain.EmailRecord, error) {
	return rec, nil
}

func (f *emailRepoFake) GetByID(_ context.Context, id string) (*domain.EmailRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrEmailRecordNotFound, "load email record", errors.New("missing"))
	}
	return rec, nil
}

func (f *emailRepoFake) LinkApplication(context.Context, string, string) error {
	return nil
}

type routerFixture struct {
	intake  *intakeFake
	reviews *reviewFake
	apps    *appServiceFake
	emails  *emailRepoFake
}

func newTestRouter(t *testing.T, opts Options) (http.Handler, *routerFixture) {
	t.Helper()
	fx := &routerFixture{
		intake: &intakeFake{
			run: &domain.PipelineRun{
				MessageID: "msg-1",
				Status:    domain.RunPending,
				Step:      domain.StepReceived,
			},
			created: true,
		},
		reviews: &reviewFake{linked: &domain.UnmatchedEmail{Status: domain.ReviewLinked}},
		apps: &appServiceFake{
			apps: map[string]*domain.Application{
				"app-1": {ID: "app-1", UserID: "user-1", CompanyName: "Acme Corp", Status: domain.StatusApplied},
			},
			report: &ports.ImportReport{Imported: 2, Skipped: 1},
		},
		emails: &emailRepoFake{
			records: map[string]*domain.EmailRecord{
				"rec-1": {ID: "rec-1", UserID: "user-1", Subject: "Offer from Acme"},
			},
		},
	}
	rt := NewRouter(fx.intake, fx.reviews, fx.apps, fx.emails, opts)
	return rt.Handler(), fx
}

func doRequest(t *testing.T, handler http.Handler, method, target, user string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestRouter(t, Options{})
	res := doRequest(t, handler, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestReceiveEmailAccepted(t *testing.T) {
	handler, fx := newTestRouter(t, Options{})

	payload := `{"user_id":"user-1","message_id":"msg-1","email":{"from":"a@b.c","subject":"hi","body":"x"}}`
	res := doRequest(t, handler, http.MethodPost, "/v1/inbound-emails", "", strings.NewReader(payload))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message_id"] != "msg-1" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if len(fx.intake.events) != 1 || fx.intake.events[0].UserID != "user-1" {
		t.Fatalf("unexpected intake events: %+v", fx.intake.events)
	}
}

func TestReceiveEmailUserIDHeaderFallback(t *testing.T) {
	handler, fx := newTestRouter(t, Options{})

	payload := `{"email":{"from":"a@b.c","subject":"hi"}}`
	res := doRequest(t, handler, http.MethodPost, "/v1/inbound-emails", "user-2", strings.NewReader(payload))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if fx.intake.events[0].UserID != "user-2" {
		t.Fatalf("expected header user id, got %q", fx.intake.events[0].UserID)
	}
}

func TestReceiveEmailRejectsBadJSON(t *testing.T) {
	handler, _ := newTestRouter(t, Options{})
	res := doRequest(t, handler, http.MethodPost, "/v1/inbound-emails", "", strings.NewReader("{broken"))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetEmailEnforcesOwnership(t *testing.T) {
	handler, _ := newTestRouter(t, Options{})

	res := doRequest(t, handler, http.MethodGet, "/v1/emails/rec-1", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("owner read expected 200, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/emails/rec-1", "user-2", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("foreign read expected 404, got %d", res.Code)
	}
}

func TestReviewQueueLinkAndDismiss(t *testing.T) {
	handler, fx := newTestRouter(t, Options{})

	res := doRequest(t, handler, http.MethodPost, "/v1/review-queue/entry-1/link", "user-1",
		strings.NewReader(`{"application_id":"app-1"}`))
	if res.Code != http.StatusOK {
		t.Fatalf("link expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var entry domain.UnmatchedEmail
	if err := json.Unmarshal(res.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.LinkedApplicationID == nil || *entry.LinkedApplicationID != "app-1" {
		t.Fatalf("unexpected linked entry: %+v", entry)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/review-queue/entry-2/dismiss", "user-1", nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("dismiss expected 204, got %d", res.Code)
	}
	if len(fx.reviews.dismissed) != 1 || fx.reviews.dismissed[0] != "entry-2" {
		t.Fatalf("unexpected dismissals: %v", fx.reviews.dismissed)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/review-queue/entry-3/link", "user-1",
		strings.NewReader(`{}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("link without application_id expected 400, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/review-queue/entry-3/escalate", "user-1", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown action expected 404, got %d", res.Code)
	}
}

func TestReviewLinkConflict(t *testing.T) {
	handler, fx := newTestRouter(t, Options{})
	fx.reviews.linkErr = domain.WrapError(domain.ErrConflict, "resolve review entry", errors.New("already resolved"))

	res := doRequest(t, handler, http.MethodPost, "/v1/review-queue/entry-1/link", "user-1",
		strings.NewReader(`{"application_id":"app-1"}`))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestApplicationsCollection(t *testing.T) {
	handler, _ := newTestRouter(t, Options{})

	res := doRequest(t, handler, http.MethodGet, "/v1/applications", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/applications", "user-1",
		strings.NewReader(`{"company_name":"Globex","job_title":"SRE"}`))
	if res.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var app domain.Application
	if err := json.Unmarshal(res.Body.Bytes(), &app); err != nil {
		t.Fatalf("decode application: %v", err)
	}
	// The server owns identity; a user_id in the body must not stick.
	if app.UserID != "user-1" {
		t.Fatalf("expected stamped user id, got %q", app.UserID)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/applications", "", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("missing user header expected 400, got %d", res.Code)
	}
}

func TestApplicationStatusAndHistory(t *testing.T) {
	handler, fx := newTestRouter(t, Options{})

	res := doRequest(t, handler, http.MethodPost, "/v1/applications/app-1/status", "user-1",
		strings.NewReader(`{"status":"interviewing"}`))
	if res.Code != http.StatusOK {
		t.Fatalf("status change expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fx.apps.apps["app-1"].Status != domain.StatusInterviewing {
		t.Fatalf("status not applied: %+v", fx.apps.apps["app-1"])
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/applications/app-1/history", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("history expected 200, got %d", res.Code)
	}

	fx.apps.setErr = domain.WrapError(domain.ErrConflict, "set status", errors.New("lost race"))
	res = doRequest(t, handler, http.MethodPost, "/v1/applications/app-1/status", "user-1",
		strings.NewReader(`{"status":"offer"}`))
	if res.Code != http.StatusConflict {
		t.Fatalf("guarded failure expected 409, got %d", res.Code)
	}
}

func TestImportApplications(t *testing.T) {
	handler, _ := newTestRouter(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "board.xlsx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("placeholder")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/applications/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(userIDHeader, "user-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("import expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var report ports.ImportReport
	if err := json.Unmarshal(res.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Imported != 2 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestBearerAuth(t *testing.T) {
	handler, _ := newTestRouter(t, Options{APIToken: "secret"})

	res := doRequest(t, handler, http.MethodGet, "/v1/applications", "user-1", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/applications", nil)
	req.Header.Set(userIDHeader, "user-1")
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token expected 200, got %d", rec.Code)
	}

	res = doRequest(t, handler, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", res.Code)
	}
}
