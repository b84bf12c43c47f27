package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/jobs"
)

const userAgent = "scribe/0.1"

// Service is the notification surface used by the pipeline.
type Service interface {
	JobCompleted(ctx context.Context, job *jobs.Job, elapsed time.Duration) error
	JobFailed(ctx context.Context, job *jobs.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed notifier, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.NotifyOnSuccess,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfyService) JobCompleted(ctx context.Context, job *jobs.Job, elapsed time.Duration) error {
	if !n.onSuccess || job == nil {
		return nil
	}
	message := fmt.Sprintf("Article ready: %s", job.SourceRef)
	if job.DurationSeconds > 0 {
		message += fmt.Sprintf("\n%s of audio in %d chunks, processed in %s",
			time.Duration(job.DurationSeconds*float64(time.Second)).Round(time.Second),
			len(job.ChunkPlan),
			elapsed.Round(time.Second))
	}
	return n.send(ctx, payload{
		title:   "Scribe - Job Complete",
		message: message + "\nJob: " + job.ID,
		tags:    []string{"scribe", "job", "completed"},
	})
}

func (n *ntfyService) JobFailed(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed at step %d (%s)", job.SourceRef, job.FailedStep, jobs.StepName(job.FailedStep))
	if msg := strings.TrimSpace(job.ErrorMessage); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	b.WriteString("\nJob: ")
	b.WriteString(job.ID)
	return n.send(ctx, payload{
		title:    "Scribe - Job Failed",
		message:  b.String(),
		tags:     []string{"scribe", "error", jobs.StepName(job.FailedStep)},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Scribe - Test",
		message:  "Notification system test",
		tags:     []string{"scribe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) JobCompleted(context.Context, *jobs.Job, time.Duration) error { return nil }
func (noopService) JobFailed(context.Context, *jobs.Job) error                   { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
