package fsstore

import (
	"testing"
	"time"

	"scribe/internal/audio"
	"scribe/internal/jobs"
)

func TestRecordRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(time.Minute)
	job := &jobs.Job{
		ID:              "j1",
		SourceRef:       "gs://bucket/talk.mp4",
		Status:          jobs.StatusError,
		Transcript:      jobs.StringPtr("hello"),
		Timestamps:      []jobs.Timestamp{{OffsetSeconds: 1.5, Text: "hello"}},
		ErrorMessage:    jobs.SupersededReason,
		FailedStep:      jobs.StepSummarize,
		DurationSeconds: 650,
		ChunkPlan:       []audio.Bounds{{Index: 0, StartSeconds: 0, EndSeconds: 300}},
		Run:             2,
		CreatedAt:       now,
		UpdatedAt:       now,
		DeletedAt:       &deleted,
	}

	rec := toRecord(job)
	if rec.Live {
		t.Fatal("deleted job must be stored as not live")
	}
	got := fromRecord(rec)
	if got.ID != job.ID || got.Status != job.Status || got.FailedStep != job.FailedStep || got.Run != 2 {
		t.Fatalf("unexpected job %+v", got)
	}
	if got.Transcript == nil || *got.Transcript != "hello" || got.Summary != nil {
		t.Fatalf("unexpected artifacts %+v", got)
	}
	if len(got.ChunkPlan) != 1 || got.ChunkPlan[0].EndSeconds != 300 {
		t.Fatalf("unexpected plan %+v", got.ChunkPlan)
	}
	if got.DeletedAt == nil || !got.DeletedAt.Equal(deleted) {
		t.Fatalf("unexpected deletedAt %v", got.DeletedAt)
	}
}
