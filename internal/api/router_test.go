package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/internal/jobs"
	"scribe/internal/services"
)

type fakeService struct {
	jobs       map[string]*jobs.Job
	started    []string
	retried    []int
	lastFilter jobs.ListFilter
}

func newFakeService() *fakeService {
	transcript := "hello"
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &fakeService{jobs: map[string]*jobs.Job{
		"done": {
			ID: "done", SourceRef: "talk.mp4", Status: jobs.StatusDone, Run: 1,
			Transcript: &transcript, Summary: &transcript, Article: &transcript,
			Timestamps: []jobs.Timestamp{{OffsetSeconds: 1.5, Text: "hello"}},
			ChunkPlan:  nil,
			CreatedAt:  created, UpdatedAt: created,
		},
		"fresh": {ID: "fresh", SourceRef: "other.mp4", Status: jobs.StatusUploaded},
	}}
}

func (f *fakeService) Submit(_ context.Context, ref string) (*jobs.Job, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, services.Wrap(services.ErrInvalidMedia, "", "submit", "source reference is empty", nil)
	}
	return &jobs.Job{ID: "new", SourceRef: ref, Status: jobs.StatusUploaded}, nil
}

func (f *fakeService) Start(_ context.Context, ref string) (*jobs.Job, error) {
	f.started = append(f.started, ref)
	return &jobs.Job{ID: "started", SourceRef: ref, Status: jobs.StatusProcessing, Run: 1}, nil
}

func (f *fakeService) Retry(_ context.Context, id string, step int) (*jobs.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	if artifact, ok := jobs.Prerequisite(job, step); !ok {
		return nil, services.MissingPrerequisite(step, artifact)
	}
	f.retried = append(f.retried, step)
	out := job.Clone()
	out.Status = jobs.StatusProcessing
	return out, nil
}

func (f *fakeService) Resume(ctx context.Context, id string) (*jobs.Job, error) {
	return f.Retry(ctx, id, jobs.StepPrepare)
}

func (f *fakeService) Get(_ context.Context, id string) (*jobs.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return job, nil
}

func (f *fakeService) List(_ context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	f.lastFilter = filter
	return []*jobs.Job{f.jobs["done"], f.jobs["fresh"]}, nil
}

func (f *fakeService) Status(context.Context) DaemonStatus {
	return DaemonStatus{Running: true, PID: 42}
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartReturnsAccepted(t *testing.T) {
	svc := newFakeService()
	router := NewRouter(svc, "", nil)

	rec := do(t, router, http.MethodPost, "/api/jobs/start", `{"sourceRef":"talk.mp4"}`, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Job.Status != "processing" || resp.Job.SourceRef != "talk.mp4" {
		t.Fatalf("unexpected job %+v", resp.Job)
	}
	if len(svc.started) != 1 {
		t.Fatalf("expected one start, got %v", svc.started)
	}
}

func TestCreateJob(t *testing.T) {
	router := NewRouter(newFakeService(), "", nil)
	if rec := do(t, router, http.MethodPost, "/api/jobs", `{"sourceRef":"a.mp3"}`, ""); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	rec := do(t, router, http.MethodPost, "/api/jobs", `{"sourceRef":""}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty source status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/api/jobs", `{"source":"a.mp3"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
}

func TestRetryMissingPrerequisiteConflicts(t *testing.T) {
	svc := newFakeService()
	router := NewRouter(svc, "", nil)

	rec := do(t, router, http.MethodPost, "/api/jobs/fresh/retry", `{"step":3}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != "missing_prerequisite" {
		t.Fatalf("kind = %q", resp.Kind)
	}

	if rec := do(t, router, http.MethodPost, "/api/jobs/done/retry", `{"step":3}`, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("valid retry status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/api/jobs/nope/retry", `{"step":1}`, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", rec.Code)
	}
	if len(svc.retried) != 1 || svc.retried[0] != 3 {
		t.Fatalf("retried = %v", svc.retried)
	}
}

func TestGetJobTimestampsOptIn(t *testing.T) {
	router := NewRouter(newFakeService(), "", nil)

	var resp JobResponse
	rec := do(t, router, http.MethodGet, "/api/jobs/done", "", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Job.Timestamps) != 0 {
		t.Fatal("timestamps should be omitted by default")
	}
	if resp.Job.CreatedAt != "2026-01-02T03:04:05.000Z" {
		t.Fatalf("createdAt = %q", resp.Job.CreatedAt)
	}

	rec = do(t, router, http.MethodGet, "/api/jobs/done?timestamps=1", "", "")
	resp = JobResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Job.Timestamps) != 1 || resp.Job.Timestamps[0].OffsetSeconds != 1.5 {
		t.Fatalf("timestamps = %+v", resp.Job.Timestamps)
	}
	if resp.Job.NextStep != jobs.StepPrepare {
		t.Fatalf("nextStep = %d", resp.Job.NextStep)
	}
}

func TestListJobsParsesFilter(t *testing.T) {
	svc := newFakeService()
	router := NewRouter(svc, "", nil)

	rec := do(t, router, http.MethodGet, "/api/jobs?status=done,error&all=true&source=talk.mp4", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(svc.lastFilter.Statuses) != 2 || !svc.lastFilter.IncludeDeleted || svc.lastFilter.SourceRef != "talk.mp4" {
		t.Fatalf("filter = %+v", svc.lastFilter)
	}
	var resp JobListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Jobs) != 2 {
		t.Fatalf("jobs = %d", len(resp.Jobs))
	}

	if rec := do(t, router, http.MethodGet, "/api/jobs?status=bogus", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := NewRouter(newFakeService(), "secret", nil)

	if rec := do(t, router, http.MethodGet, "/api/status", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/api/status", "", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/api/status", "", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", rec.Code)
	}
	var status DaemonStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || status.PID != 42 {
		t.Fatalf("status = %+v", status)
	}
}

func TestCountByStatusIncludesZeroes(t *testing.T) {
	counts := CountByStatus([]*jobs.Job{{Status: jobs.StatusDone}, {Status: jobs.StatusDone}})
	if counts["done"] != 2 || counts["error"] != 0 || len(counts) != len(jobs.AllStatuses()) {
		t.Fatalf("counts = %v", counts)
	}
}
