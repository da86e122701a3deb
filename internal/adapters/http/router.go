package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
	"github.com/mvoronkov/jobtrail/internal/observability/metrics"
)

const userIDHeader = "X-User-Id"

// ApplicationService is the surface the application endpoints need.
type ApplicationService interface {
	Create(ctx context.Context, app *domain.Application) (*domain.Application, error)
	Get(ctx context.Context, userID, id string) (*domain.Application, error)
	List(ctx context.Context, userID string) ([]domain.Application, error)
	History(ctx context.Context, userID, id string) ([]domain.StatusHistoryEntry, error)
	SetStatus(ctx context.Context, userID, id string, next domain.ApplicationStatus) (*domain.Application, error)
	Import(ctx context.Context, userID string, sheet io.Reader) (*ports.ImportReport, error)
}

type Options struct {
	Service  string
	APIToken string

	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration

	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	intake  ports.EmailIntake
	reviews ports.ReviewQueue
	apps    ApplicationService
	emails  ports.EmailRecordRepository
	opts    Options
}

func NewRouter(
	intake ports.EmailIntake,
	reviews ports.ReviewQueue,
	apps ApplicationService,
	emails ports.EmailRecordRepository,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.QueueWait <= 0 {
		opts.QueueWait = 100 * time.Millisecond
	}
	return &Router{
		intake:  intake,
		reviews: reviews,
		apps:    apps,
		emails:  emails,
		opts:    opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/inbound-emails", rt.receiveEmail)
	mux.HandleFunc("/v1/emails/", rt.getEmailByID)
	mux.HandleFunc("/v1/review-queue", rt.listReviewQueue)
	mux.HandleFunc("/v1/review-queue/", rt.resolveReviewEntry)
	mux.HandleFunc("/v1/applications", rt.applicationsCollection)
	mux.HandleFunc("/v1/applications/import", rt.importApplications)
	mux.HandleFunc("/v1/applications/", rt.applicationByID)

	var handler http.Handler = mux
	handler = authMiddleware(handler, rt.opts.APIToken)
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.QueueWait)
	}
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) receiveEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event ports.InboundEmailEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if event.UserID == "" {
		event.UserID = strings.TrimSpace(r.Header.Get(userIDHeader))
	}

	run, created, err := rt.intake.Receive(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordIntake(rt.opts.Service, !created)
	}

	// Always 202: the gateway only needs to know delivery succeeded.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message_id": run.MessageID,
		"status":     run.Status,
		"step":       run.Step,
	})
}

func (rt *Router) getEmailByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/emails/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email record id is required"})
		return
	}

	rec, err := rt.emails.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": domain.ErrEmailRecordNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) listReviewQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	entries, err := rt.reviews.ListPending(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (rt *Router) resolveReviewEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/review-queue/")
	entryID, action, found := strings.Cut(rest, "/")
	if !found || entryID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch action {
	case "link":
		var req struct {
			ApplicationID string `json:"application_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ApplicationID) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "application_id is required"})
			return
		}
		entry, err := rt.reviews.Link(r.Context(), entryID, req.ApplicationID)
		if err != nil {
			writeError(w, err)
			return
		}
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordReviewResolution(rt.opts.Service, "linked")
		}
		writeJSON(w, http.StatusOK, entry)
	case "dismiss":
		if err := rt.reviews.Dismiss(r.Context(), entryID); err != nil {
			writeError(w, err)
			return
		}
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordReviewResolution(rt.opts.Service, "dismissed")
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) applicationsCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		apps, err := rt.apps.List(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
	case http.MethodPost:
		var app domain.Application
		if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		app.UserID = userID

		created, err := rt.apps.Create(r.Context(), &app)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) importApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	report, err := rt.apps.Import(r.Context(), userID, file)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordImportRows(rt.opts.Service, report.Imported, report.Skipped, len(report.Errors))
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) applicationByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/applications/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "application id is required"})
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		app, err := rt.apps.Get(r.Context(), userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	case sub == "history" && r.Method == http.MethodGet:
		entries, err := rt.apps.History(r.Context(), userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": entries})
	case sub == "status" && r.Method == http.MethodPost:
		var req struct {
			Status domain.ApplicationStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		app, err := rt.apps.SetStatus(r.Context(), userID, id, req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordStatusChange(rt.opts.Service, string(req.Status))
		}
		writeJSON(w, http.StatusOK, app)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-User-Id header is required"})
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
