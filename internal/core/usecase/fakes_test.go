package usecase

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
)

type runRepoFake struct {
	runs        map[string]*domain.PipelineRun
	checkpoints []domain.RunStep
	markedDone  bool
	failedWith  string
	createErr   error
	getErr      error
	chkErr      error
}

func newRunRepoFake() *runRepoFake {
	return &runRepoFake{runs: map[string]*domain.PipelineRun{}}
}

func (f *runRepoFake) CreateIfAbsent(_ context.Context, run *domain.PipelineRun) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	if _, ok := f.runs[run.MessageID]; ok {
		return false, nil
	}
	cp := *run
	f.runs[run.MessageID] = &cp
	return true, nil
}

func (f *runRepoFake) Get(_ context.Context, messageID string) (*domain.PipelineRun, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	run, ok := f.runs[messageID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (f *runRepoFake) Checkpoint(_ context.Context, run *domain.PipelineRun) error {
	if f.chkErr != nil {
		return f.chkErr
	}
	cp := *run
	f.runs[run.MessageID] = &cp
	f.checkpoints = append(f.checkpoints, run.Step)
	return nil
}

func (f *runRepoFake) MarkRunning(_ context.Context, messageID string) (int, error) {
	run := f.runs[messageID]
	run.Status = domain.RunRunning
	run.Attempts++
	return run.Attempts, nil
}

func (f *runRepoFake) MarkDone(_ context.Context, messageID string) error {
	f.runs[messageID].Status = domain.RunDone
	f.markedDone = true
	return nil
}

func (f *runRepoFake) MarkFailed(_ context.Context, messageID, lastError string) error {
	f.runs[messageID].Status = domain.RunFailed
	f.runs[messageID].LastError = lastError
	f.failedWith = lastError
	return nil
}

type appRepoFake struct {
	apps       map[string]*domain.Application
	created    []*domain.Application
	guardOK    bool
	guardErr   error
	guardCalls []domain.StatusHistoryEntry
	createErr  error
	listErr    error
}

func newAppRepoFake(apps ...*domain.Application) *appRepoFake {
	f := &appRepoFake{apps: map[string]*domain.Application{}, guardOK: true}
	for _, app := range apps {
		f.apps[app.ID] = app
	}
	return f
}

func (f *appRepoFake) Create(_ context.Context, app *domain.Application) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.apps[app.ID] = app
	f.created = append(f.created, app)
	return nil
}

func (f *appRepoFake) GetByID(_ context.Context, id string) (*domain.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	cp := *app
	return &cp, nil
}

func (f *appRepoFake) ListByUser(_ context.Context, userID string) ([]domain.Application, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Application, 0)
	for _, app := range f.apps {
		if app.UserID == userID {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *appRepoFake) ListByCompanyName(_ context.Context, userID, _ string) ([]domain.Application, error) {
	return f.ListByUser(context.Background(), userID)
}

func (f *appRepoFake) ListByStatuses(_ context.Context, userID string, statuses []domain.ApplicationStatus) ([]domain.Application, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Application, 0)
	for _, app := range f.apps {
		if app.UserID != userID {
			continue
		}
		for _, s := range statuses {
			if app.Status == s {
				out = append(out, *app)
				break
			}
		}
	}
	return out, nil
}

func (f *appRepoFake) UpdateStatusGuarded(_ context.Context, id string, expected, next domain.ApplicationStatus, entry *domain.StatusHistoryEntry) (bool, error) {
	if f.guardErr != nil {
		return false, f.guardErr
	}
	f.guardCalls = append(f.guardCalls, *entry)
	if !f.guardOK {
		return false, nil
	}
	app, ok := f.apps[id]
	if !ok || app.Status != expected {
		return false, nil
	}
	app.Status = next
	return true, nil
}

type emailRepoFake struct {
	byMessage map[string]*domain.EmailRecord
	byID      map[string]*domain.EmailRecord
	linked    map[string]string
	createErr error
}

func newEmailRepoFake() *emailRepoFake {
	return &emailRepoFake{
		byMessage: map[string]*domain.EmailRecord{},
		byID:      map[string]*domain.EmailRecord{},
		linked:    map[string]string{},
	}
}

func (f *emailRepoFake) CreateIfAbsent(_ context.Context, rec *domain.EmailRecord) (*domain.EmailRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if existing, ok := f.byMessage[rec.MessageID]; ok {
		return existing, nil
	}
	f.byMessage[rec.MessageID] = rec
	f.byID[rec.ID] = rec
	return rec, nil
}

func (f *emailRepoFake) GetByID(_ context.Context, id string) (*domain.EmailRecord, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrEmailRecordNotFound
	}
	return rec, nil
}

func (f *emailRepoFake) LinkApplication(_ context.Context, recordID, applicationID string) error {
	rec, ok := f.byID[recordID]
	if !ok {
		return domain.ErrEmailRecordNotFound
	}
	rec.ApplicationID = &applicationID
	rec.ManualOverride = true
	f.linked[recordID] = applicationID
	return nil
}

type reviewRepoFake struct {
	entries   map[string]*domain.UnmatchedEmail
	byRecord  map[string]*domain.UnmatchedEmail
	createErr error
}

func newReviewRepoFake() *reviewRepoFake {
	return &reviewRepoFake{
		entries:  map[string]*domain.UnmatchedEmail{},
		byRecord: map[string]*domain.UnmatchedEmail{},
	}
}

func (f *reviewRepoFake) CreateIfAbsent(_ context.Context, entry *domain.UnmatchedEmail) (*domain.UnmatchedEmail, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if existing, ok := f.byRecord[entry.EmailRecordID]; ok {
		return existing, nil
	}
	f.entries[entry.ID] = entry
	f.byRecord[entry.EmailRecordID] = entry
	return entry, nil
}

func (f *reviewRepoFake) GetByID(_ context.Context, id string) (*domain.UnmatchedEmail, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrReviewEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

func (f *reviewRepoFake) ListPending(_ context.Context, userID string) ([]domain.UnmatchedEmail, error) {
	out := make([]domain.UnmatchedEmail, 0)
	for _, entry := range f.entries {
		if entry.UserID == userID && entry.Status == domain.ReviewPending {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *reviewRepoFake) MarkLinked(_ context.Context, id, applicationID string) error {
	entry, ok := f.entries[id]
	if !ok {
		return domain.ErrReviewEntryNotFound
	}
	entry.Status = domain.ReviewLinked
	entry.LinkedApplicationID = &applicationID
	return nil
}

func (f *reviewRepoFake) MarkDismissed(_ context.Context, id string) error {
	entry, ok := f.entries[id]
	if !ok {
		return domain.ErrReviewEntryNotFound
	}
	entry.Status = domain.ReviewDismissed
	return nil
}

type historyRepoFake struct {
	entries   []domain.StatusHistoryEntry
	appendErr error
}

func (f *historyRepoFake) Append(_ context.Context, entry *domain.StatusHistoryEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *historyRepoFake) ListByApplication(_ context.Context, applicationID string) ([]domain.StatusHistoryEntry, error) {
	out := make([]domain.StatusHistoryEntry, 0)
	for _, e := range f.entries {
		if e.ApplicationID == applicationID {
			out = append(out, e)
		}
	}
	return out, nil
}

type queueFake struct {
	published  []string
	publishErr error
}

func (f *queueFake) PublishEmailReceived(_ context.Context, messageID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, messageID)
	return nil
}

func (f *queueFake) SubscribeEmailReceived(context.Context, func(context.Context, string) error) error {
	return nil
}

type archiveFake struct {
	saved   map[string][]byte
	saveErr error
}

func newArchiveFake() *archiveFake {
	return &archiveFake{saved: map[string][]byte{}}
}

func (f *archiveFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *archiveFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, domain.ErrInvalidInput
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type matcherFake struct {
	result domain.MatchResult
	err    error
	calls  int
}

func (f *matcherFake) Match(context.Context, string, domain.ParsedEmail) (domain.MatchResult, error) {
	f.calls++
	if f.err != nil {
		return domain.MatchResult{}, f.err
	}
	return f.result, nil
}

type verdictFake struct {
	cls   domain.Classification
	calls int
}

func (f *verdictFake) Classify(context.Context, domain.ParsedEmail) domain.Classification {
	f.calls++
	return f.cls
}

type providerFake struct {
	cls   domain.Classification
	err   error
	calls int
}

func (f *providerFake) Classify(context.Context, domain.ParsedEmail) (domain.Classification, error) {
	f.calls++
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

type cacheFake struct {
	store map[string]domain.Classification
	sets  int
	ttl   time.Duration
}

func newCacheFake() *cacheFake {
	return &cacheFake{store: map[string]domain.Classification{}}
}

func (f *cacheFake) Get(_ context.Context, key string) (domain.Classification, bool) {
	cls, ok := f.store[key]
	return cls, ok
}

func (f *cacheFake) Set(_ context.Context, key string, cls domain.Classification, ttl time.Duration) {
	f.store[key] = cls
	f.sets++
	f.ttl = ttl
}

type parserFake struct {
	rows []domain.Application
	err  error
}

func (f *parserFake) Parse(io.Reader) ([]domain.Application, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

var _ ports.RunRepository = (*runRepoFake)(nil)
var _ ports.ApplicationRepository = (*appRepoFake)(nil)
var _ ports.EmailRecordRepository = (*emailRepoFake)(nil)
var _ ports.ReviewRepository = (*reviewRepoFake)(nil)
var _ ports.HistoryRepository = (*historyRepoFake)(nil)
var _ ports.MessageQueue = (*queueFake)(nil)
var _ ports.PayloadArchive = (*archiveFake)(nil)
var _ ports.EmailClassifier = (*providerFake)(nil)
var _ ports.ClassificationCache = (*cacheFake)(nil)
var _ ports.SpreadsheetParser = (*parserFake)(nil)
