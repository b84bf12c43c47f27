package fsstore

import (
	"time"

	"scribe/internal/audio"
	"scribe/internal/jobs"
)

type chunkRecord struct {
	Index        int     `firestore:"index"`
	StartSeconds float64 `firestore:"start"`
	EndSeconds   float64 `firestore:"end"`
}

// record is the Firestore document shape for a job. Live mirrors
// DeletedAt == nil so queries can filter on it.
type record struct {
	ID              string           `firestore:"id"`
	SourceRef       string           `firestore:"sourceRef"`
	Status          string           `firestore:"status"`
	Transcript      *string          `firestore:"transcript"`
	Timestamps      []jobs.Timestamp `firestore:"timestamps,omitempty"`
	Summary         *string          `firestore:"summary"`
	Article         *string          `firestore:"article"`
	ErrorMessage    string           `firestore:"errorMessage,omitempty"`
	FailedStep      int              `firestore:"failedStep"`
	DurationSeconds float64          `firestore:"durationSeconds"`
	ChunkPlan       []chunkRecord    `firestore:"chunkPlan,omitempty"`
	Run             int64            `firestore:"run"`
	Live            bool             `firestore:"live"`
	CreatedAt       time.Time        `firestore:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt"`
	DeletedAt       *time.Time       `firestore:"deletedAt"`
}

func toRecord(job *jobs.Job) record {
	rec := record{
		ID:              job.ID,
		SourceRef:       job.SourceRef,
		Status:          string(job.Status),
		Transcript:      job.Transcript,
		Timestamps:      job.Timestamps,
		Summary:         job.Summary,
		Article:         job.Article,
		ErrorMessage:    job.ErrorMessage,
		FailedStep:      job.FailedStep,
		DurationSeconds: job.DurationSeconds,
		Run:             job.Run,
		Live:            job.Live(),
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		DeletedAt:       job.DeletedAt,
	}
	for _, b := range job.ChunkPlan {
		rec.ChunkPlan = append(rec.ChunkPlan, chunkRecord{Index: b.Index, StartSeconds: b.StartSeconds, EndSeconds: b.EndSeconds})
	}
	return rec
}

func fromRecord(rec record) *jobs.Job {
	job := &jobs.Job{
		ID:              rec.ID,
		SourceRef:       rec.SourceRef,
		Status:          jobs.Status(rec.Status),
		Transcript:      rec.Transcript,
		Timestamps:      rec.Timestamps,
		Summary:         rec.Summary,
		Article:         rec.Article,
		ErrorMessage:    rec.ErrorMessage,
		FailedStep:      rec.FailedStep,
		DurationSeconds: rec.DurationSeconds,
		Run:             rec.Run,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
	if rec.DeletedAt != nil {
		deleted := rec.DeletedAt.UTC()
		job.DeletedAt = &deleted
	}
	for _, c := range rec.ChunkPlan {
		job.ChunkPlan = append(job.ChunkPlan, audio.Bounds{Index: c.Index, StartSeconds: c.StartSeconds, EndSeconds: c.EndSeconds})
	}
	return job
}
