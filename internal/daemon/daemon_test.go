package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"scribe/internal/api"
	"scribe/internal/article"
	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/jobs"
	"scribe/internal/pipeline"
	"scribe/internal/storage"
	"scribe/internal/summary"
	"scribe/internal/testsupport"
	"scribe/internal/transcription"
)

type echoProvider struct{}

func (echoProvider) TranscribeChunk(context.Context, []byte, int) (transcription.ChunkResult, error) {
	return transcription.ChunkResult{Text: "words", Segments: []transcription.Segment{{Text: "words"}}}, nil
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *jobs.SQLiteStore) {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	media := &testsupport.FakeMedia{DurationSeconds: 30, SampleRate: cfg.Audio.SampleRate}
	generator := &testsupport.FakeGenerator{}
	orch := pipeline.New(store, pipeline.StageSet{
		Preparer:    audio.NewPreparer(cfg, storage.Local{Root: cfg.Storage.LocalRoot}, media, nil),
		Transcriber: transcription.NewStage(echoProvider{}, cfg, nil),
		Summarizer:  summary.NewStage(generator, cfg, nil),
		Articles:    article.NewStage(generator, cfg, nil),
	}, nil)
	d, err := daemon.New(cfg, store, orch, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, store
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSampleRate(10), testsupport.WithChunkSeconds(20))
	testsupport.WriteSource(t, cfg, "talk.mp4", 256)
	return cfg
}

func TestDaemonStartStop(t *testing.T) {
	cfg := newConfig(t)
	d, _ := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := d.StartJob(ctx, "talk.mp4"); err == nil {
		t.Fatal("expected triggers to be rejected after stop")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := newConfig(t)
	first, _ := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	other := *cfg
	other.API.Bind = ""
	second, _ := newDaemon(t, &other)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestStartFailsInterruptedJobs(t *testing.T) {
	cfg := newConfig(t)
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	claimed, err := store.Claim(ctx, jobs.ClaimRequest{SourceRef: "talk.mp4"})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job, err := store.Get(ctx, claimed.Job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobs.StatusError || job.ErrorMessage != jobs.InterruptedReason || !job.Live() {
		t.Fatalf("interrupted job not recovered: %+v", job)
	}
}

func TestStartLeavesRunsOfOtherProcessesAlone(t *testing.T) {
	cfg := newConfig(t)
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	release, err := pipeline.NewRunLock(cfg.RunLockPath()).Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()
	claimed, err := store.Claim(ctx, jobs.ClaimRequest{SourceRef: "talk.mp4"})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job, err := store.Get(ctx, claimed.Job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobs.StatusProcessing || job.ErrorMessage != "" {
		t.Fatalf("active run was failed: %+v", job)
	}
}

func TestHTTPStartRunsInBackground(t *testing.T) {
	cfg := newConfig(t)
	cfg.API.Token = "secret"
	d, store := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	body, _ := json.Marshal(api.SourceRequest{SourceRef: "talk.mp4"})
	req, err := http.NewRequest(http.MethodPost, "http://"+d.Addr()+"/api/jobs/start", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	d.Wait()
	job, err := store.Get(ctx, out.Job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	if len(job.ChunkPlan) != 2 || job.Article == nil {
		t.Fatalf("unexpected artifacts: %+v", job)
	}

	status := d.Status(ctx)
	if status.JobCounts["done"] != 1 || status.ActiveRuns != 0 {
		t.Fatalf("status = %+v", status)
	}
}
