package pipeline_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/article"
	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/pipeline"
	"scribe/internal/services"
	"scribe/internal/storage"
	"scribe/internal/summary"
	"scribe/internal/testsupport"
	"scribe/internal/transcription"
)

const testRate = 10

// secondsProvider transcribes a chunk as the source second its first sample
// was taken from.
type secondsProvider struct {
	mu     sync.Mutex
	starts []int
}

func (p *secondsProvider) TranscribeChunk(ctx context.Context, wav []byte, _ int) (transcription.ChunkResult, error) {
	if len(wav) < 46 {
		return transcription.ChunkResult{}, errors.New("chunk without samples")
	}
	start := int(binary.LittleEndian.Uint16(wav[44:46]))
	p.mu.Lock()
	p.starts = append(p.starts, start)
	p.mu.Unlock()
	return transcription.ChunkResult{
		Text:     fmt.Sprintf("from %d", start),
		Segments: []transcription.Segment{{StartSeconds: 0, Text: fmt.Sprintf("from %d", start)}, {StartSeconds: 12, Text: "later"}},
	}, nil
}

func (p *secondsProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.starts)
}

type harness struct {
	cfg       *config.Config
	store     *jobs.SQLiteStore
	media     *testsupport.FakeMedia
	speech    *secondsProvider
	generator *testsupport.FakeGenerator
	orch      *pipeline.Orchestrator
}

func newHarness(t *testing.T, generate func(call int, system, prompt string) (string, error)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSampleRate(testRate), testsupport.WithChunkSeconds(300))
	testsupport.WriteSource(t, cfg, "talk.mp4", 512)
	h := &harness{
		cfg:       cfg,
		store:     testsupport.MustOpenStore(t, cfg),
		media:     &testsupport.FakeMedia{DurationSeconds: 650, SampleRate: testRate},
		speech:    &secondsProvider{},
		generator: &testsupport.FakeGenerator{Fn: generate},
	}
	h.orch = h.build(cfg)
	return h
}

func (h *harness) build(cfg *config.Config) *pipeline.Orchestrator {
	return pipeline.New(h.store, pipeline.StageSet{
		Preparer:    audio.NewPreparer(cfg, storage.Local{Root: cfg.Storage.LocalRoot}, h.media, nil),
		Transcriber: transcription.NewStage(h.speech, cfg, nil),
		Summarizer:  summary.NewStage(h.generator, cfg, nil),
		Articles:    article.NewStage(h.generator, cfg, nil),
	}, nil)
}

func byStage(summaryText, articleText string, summaryErr error) func(int, string, string) (string, error) {
	return func(_ int, system, _ string) (string, error) {
		if system == summary.SystemPrompt {
			if summaryErr != nil {
				return "", summaryErr
			}
			return summaryText, nil
		}
		return articleText, nil
	}
}

func assertStatusInvariant(t *testing.T, job *jobs.Job) {
	t.Helper()
	if (job.Status == jobs.StatusError) != (job.ErrorMessage != "") {
		t.Fatalf("status %s with error message %q", job.Status, job.ErrorMessage)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("job invariant: %v", err)
	}
}

func TestStartRunsEveryStage(t *testing.T) {
	h := newHarness(t, byStage("the summary", "the article", nil))

	job, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	assertStatusInvariant(t, job)
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s), want done", job.Status, job.ErrorMessage)
	}
	wantPlan := []audio.Bounds{
		{Index: 0, StartSeconds: 0, EndSeconds: 300},
		{Index: 1, StartSeconds: 300, EndSeconds: 600},
		{Index: 2, StartSeconds: 600, EndSeconds: 650},
	}
	if len(job.ChunkPlan) != len(wantPlan) {
		t.Fatalf("chunk plan = %+v", job.ChunkPlan)
	}
	for i, b := range wantPlan {
		if job.ChunkPlan[i] != b {
			t.Fatalf("chunk %d = %+v, want %+v", i, job.ChunkPlan[i], b)
		}
	}
	if job.DurationSeconds != 650 {
		t.Fatalf("duration = %v", job.DurationSeconds)
	}
	if job.Transcript == nil || *job.Transcript != "from 0 from 300 from 600" {
		t.Fatalf("transcript = %v", job.Transcript)
	}
	wantOffsets := []float64{0, 12, 300, 312, 600, 612}
	if len(job.Timestamps) != len(wantOffsets) {
		t.Fatalf("timestamps = %+v", job.Timestamps)
	}
	for i, off := range wantOffsets {
		if job.Timestamps[i].OffsetSeconds != off {
			t.Fatalf("timestamp %d offset = %v, want %v", i, job.Timestamps[i].OffsetSeconds, off)
		}
	}
	if job.Summary == nil || summary.Body(*job.Summary) != "the summary" {
		t.Fatalf("summary = %v", job.Summary)
	}
	if job.Article == nil || *job.Article != "the article" {
		t.Fatalf("article = %v", job.Article)
	}

	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != jobs.StatusDone || stored.Article == nil {
		t.Fatalf("stored job not done: %+v", stored)
	}
	if h.speech.Calls() != 3 {
		t.Fatalf("expected 3 transcription calls, got %d", h.speech.Calls())
	}
}

func TestSummarizationFailureKeepsTranscript(t *testing.T) {
	h := newHarness(t, byStage("", "", errors.New("upstream unavailable")))

	job, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start returned stage error: %v", err)
	}
	assertStatusInvariant(t, job)
	if job.Status != jobs.StatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
	if job.FailedStep != jobs.StepSummarize {
		t.Fatalf("failed step = %d", job.FailedStep)
	}
	if !strings.Contains(job.ErrorMessage, "summarization failed") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	if job.Transcript == nil || len(job.Timestamps) == 0 {
		t.Fatal("transcript and timestamps should be retained")
	}
	if job.Summary != nil || job.Article != nil {
		t.Fatal("summary and article should be absent")
	}
	if h.generator.Calls() != h.cfg.Generation.MaxAttempts {
		t.Fatalf("expected %d generation attempts, got %d", h.cfg.Generation.MaxAttempts, h.generator.Calls())
	}
}

type recordingNotifier struct {
	completed []string
	failed    []int
}

func (r *recordingNotifier) JobCompleted(_ context.Context, job *jobs.Job, _ time.Duration) error {
	r.completed = append(r.completed, job.ID)
	return nil
}

func (r *recordingNotifier) JobFailed(_ context.Context, job *jobs.Job) error {
	r.failed = append(r.failed, job.FailedStep)
	return errors.New("ntfy unreachable")
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func TestNotifierSeesOutcomes(t *testing.T) {
	h := newHarness(t, byStage("", "", errors.New("upstream unavailable")))
	notifier := &recordingNotifier{}
	h.orch.SetNotifier(notifier)

	job, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("a failing notifier must not fail the run: %v", err)
	}
	if len(notifier.failed) != 1 || notifier.failed[0] != jobs.StepSummarize {
		t.Fatalf("failed notifications = %v", notifier.failed)
	}

	h.generator.Fn = byStage("Summary.", "Article.", nil)
	job, err = h.orch.RetryFromStep(context.Background(), job.ID, jobs.StepSummarize)
	if err != nil {
		t.Fatalf("RetryFromStep: %v", err)
	}
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s", job.Status)
	}
	if len(notifier.completed) != 1 || notifier.completed[0] != job.ID {
		t.Fatalf("completed notifications = %v", notifier.completed)
	}
}

func TestRetryFromStepRequiresPrerequisite(t *testing.T) {
	h := newHarness(t, nil)
	job := testsupport.NewJob(t, h.store, "talk.mp4")

	_, err := h.orch.RetryFromStep(context.Background(), job.ID, jobs.StepSummarize)
	if !errors.Is(err, services.ErrMissingPrerequisite) {
		t.Fatalf("expected missing prerequisite, got %v", err)
	}
	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != jobs.StatusUploaded || stored.Run != job.Run || stored.ErrorMessage != "" {
		t.Fatalf("job changed by rejected retry: %+v", stored)
	}

	for _, step := range []int{0, 5} {
		if _, err := h.orch.RetryFromStep(context.Background(), job.ID, step); !errors.Is(err, services.ErrMissingPrerequisite) {
			t.Fatalf("step %d: expected missing prerequisite, got %v", step, err)
		}
	}
	if _, err := h.orch.RetryFromStep(context.Background(), "missing", jobs.StepPrepare); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRetryFromSummarizeAfterFailure(t *testing.T) {
	fail := true
	h := newHarness(t, func(_ int, system, _ string) (string, error) {
		if system == summary.SystemPrompt && fail {
			return "", errors.New("upstream unavailable")
		}
		return "text", nil
	})
	job, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != jobs.StatusError {
		t.Fatalf("status = %s", job.Status)
	}
	transcript := *job.Transcript

	fail = false
	retried, err := h.orch.RetryFromStep(context.Background(), job.ID, jobs.StepSummarize)
	if err != nil {
		t.Fatalf("RetryFromStep: %v", err)
	}
	assertStatusInvariant(t, retried)
	if retried.Status != jobs.StatusDone || retried.FailedStep != 0 {
		t.Fatalf("retry did not finish: %+v", retried)
	}
	if *retried.Transcript != transcript {
		t.Fatal("transcript rewritten by summary retry")
	}
	if h.speech.Calls() != 3 {
		t.Fatalf("transcription rerun on summary retry: %d calls", h.speech.Calls())
	}
	if retried.Run != job.Run+1 {
		t.Fatalf("run = %d, want %d", retried.Run, job.Run+1)
	}
}

func TestRetryFromTranscribeReusesChunkPlan(t *testing.T) {
	h := newHarness(t, nil)
	job, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	plan := append([]audio.Bounds(nil), job.ChunkPlan...)

	// A different chunk length must not change the persisted plan.
	h.cfg.Audio.ChunkSeconds = 100
	orch := h.build(h.cfg)
	retried, err := orch.RetryFromStep(context.Background(), job.ID, jobs.StepTranscribe)
	if err != nil {
		t.Fatalf("RetryFromStep: %v", err)
	}
	if retried.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", retried.Status, retried.ErrorMessage)
	}
	if h.speech.Calls() != 6 {
		t.Fatalf("expected 3 more transcription calls, got %d total", h.speech.Calls())
	}
	if len(retried.ChunkPlan) != len(plan) {
		t.Fatalf("chunk plan changed: %+v", retried.ChunkPlan)
	}
	for i := range plan {
		if retried.ChunkPlan[i] != plan[i] {
			t.Fatalf("chunk %d changed: %+v", i, retried.ChunkPlan[i])
		}
	}
	if *retried.Transcript != "from 0 from 300 from 600" {
		t.Fatalf("transcript = %q", *retried.Transcript)
	}
}

func TestStartSupersedesProcessingJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	stale, err := h.orch.BeginStart(ctx, "talk.mp4")
	if err != nil {
		t.Fatalf("BeginStart: %v", err)
	}
	if stale.Status != jobs.StatusProcessing {
		t.Fatalf("status = %s", stale.Status)
	}

	fresh, err := h.orch.Start(ctx, "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if fresh.ID == stale.ID {
		t.Fatal("processing job should not be reused")
	}
	if fresh.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", fresh.Status, fresh.ErrorMessage)
	}

	old, err := h.store.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	assertStatusInvariant(t, old)
	if old.Live() || old.Status != jobs.StatusError || old.ErrorMessage != jobs.SupersededReason {
		t.Fatalf("stale job not superseded: %+v", old)
	}

	// The superseded run finishing late must not write anything.
	discarded, err := h.orch.Execute(ctx, stale, jobs.StepPrepare)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if discarded.ChunkPlan != nil || discarded.Status != jobs.StatusError {
		t.Fatalf("superseded run wrote artifacts: %+v", discarded)
	}
	if _, err := h.orch.RetryFromStep(ctx, stale.ID, jobs.StepPrepare); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected superseded job to be unavailable, got %v", err)
	}
}

func TestStartReusesFinishedJob(t *testing.T) {
	h := newHarness(t, nil)
	first, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected job %s reused, got %s", first.ID, second.ID)
	}
	if second.Run != first.Run+1 {
		t.Fatalf("run = %d", second.Run)
	}
}

func TestInvalidMediaFailsPrepare(t *testing.T) {
	h := newHarness(t, nil)
	job, err := h.orch.Start(context.Background(), "missing.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	assertStatusInvariant(t, job)
	if job.Status != jobs.StatusError || job.FailedStep != jobs.StepPrepare {
		t.Fatalf("expected prepare failure, got %+v", job)
	}
	if !strings.Contains(job.ErrorMessage, "invalid media") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	if job.ChunkPlan != nil || job.Transcript != nil {
		t.Fatal("no artifacts expected")
	}
}

func TestResume(t *testing.T) {
	fail := true
	h := newHarness(t, func(_ int, system, _ string) (string, error) {
		if system != summary.SystemPrompt && fail {
			return "", errors.New("upstream unavailable")
		}
		return "text", nil
	})
	job, err := h.orch.Start(context.Background(), "talk.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.FailedStep != jobs.StepArticle {
		t.Fatalf("failed step = %d (%s)", job.FailedStep, job.ErrorMessage)
	}

	fail = false
	calls := h.generator.Calls()
	resumed, err := h.orch.Resume(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != jobs.StatusDone {
		t.Fatalf("status = %s", resumed.Status)
	}
	if h.generator.Calls() != calls+1 {
		t.Fatalf("resume should only rerun the article stage")
	}

	again, err := h.orch.Resume(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Resume complete job: %v", err)
	}
	if again.Run != resumed.Run {
		t.Fatal("complete job should not be claimed again")
	}
}

func TestSubmitCreatesUploadedJob(t *testing.T) {
	h := newHarness(t, nil)
	job, err := h.orch.Submit(context.Background(), " talk.mp4 ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != jobs.StatusUploaded || job.SourceRef != "talk.mp4" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if _, err := h.orch.Submit(context.Background(), "  "); err == nil {
		t.Fatal("expected empty source to be rejected")
	}
}
