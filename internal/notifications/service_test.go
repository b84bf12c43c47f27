package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	got := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newService(endpoint string, onSuccess bool) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	cfg.Notifications.NotifyOnSuccess = onSuccess
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.JobFailed(context.Background(), &jobs.Job{ID: "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestJobFailedPublishesStepAndMessage(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	svc := newService(srv.URL, false)

	job := &jobs.Job{
		ID:           "job-1",
		SourceRef:    "talks/keynote.mp4",
		Status:       jobs.StatusError,
		FailedStep:   jobs.StepSummarize,
		ErrorMessage: "summarization failed after 4 attempt(s)",
	}
	if err := svc.JobFailed(context.Background(), job); err != nil {
		t.Fatalf("JobFailed: %v", err)
	}
	msg := <-got
	if msg.title != "Scribe - Job Failed" {
		t.Fatalf("title = %q", msg.title)
	}
	if msg.priority != "high" {
		t.Fatalf("priority = %q", msg.priority)
	}
	if msg.tags != "scribe,error,summarize" {
		t.Fatalf("tags = %q", msg.tags)
	}
	if !strings.Contains(msg.body, "failed at step 3 (summarize): summarization failed") {
		t.Fatalf("body = %q", msg.body)
	}
}

func TestJobCompletedRespectsOptIn(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	job := &jobs.Job{
		ID:              "job-2",
		SourceRef:       "talks/keynote.mp4",
		DurationSeconds: 650,
		ChunkPlan:       []audio.Bounds{{Index: 0}, {Index: 1}, {Index: 2}},
	}

	if err := newService(srv.URL, false).JobCompleted(context.Background(), job, time.Minute); err != nil {
		t.Fatalf("JobCompleted: %v", err)
	}
	select {
	case msg := <-got:
		t.Fatalf("unexpected notification %+v", msg)
	default:
	}

	if err := newService(srv.URL, true).JobCompleted(context.Background(), job, time.Minute); err != nil {
		t.Fatalf("JobCompleted: %v", err)
	}
	msg := <-got
	if !strings.Contains(msg.body, "10m50s of audio in 3 chunks") {
		t.Fatalf("body = %q", msg.body)
	}
}

func TestSendReportsHTTPFailure(t *testing.T) {
	srv, _ := newServer(t, http.StatusForbidden)
	err := newService(srv.URL, false).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
