package jobs_test

import (
	"errors"
	"testing"
	"time"

	"scribe/internal/audio"
	"scribe/internal/jobs"
)

func TestValidateEnforcesInvariants(t *testing.T) {
	text := "hello"
	cases := []struct {
		name string
		job  jobs.Job
		ok   bool
	}{
		{"uploaded", jobs.Job{Status: jobs.StatusUploaded}, true},
		{"error with message", jobs.Job{Status: jobs.StatusError, ErrorMessage: "boom"}, true},
		{"error without message", jobs.Job{Status: jobs.StatusError}, false},
		{"message without error", jobs.Job{Status: jobs.StatusDone, ErrorMessage: "boom"}, false},
		{"timestamps without transcript", jobs.Job{Status: jobs.StatusDone, Timestamps: []jobs.Timestamp{{Text: "a"}}}, false},
		{"summary without transcript", jobs.Job{Status: jobs.StatusDone, Summary: &text}, false},
		{"article without summary", jobs.Job{Status: jobs.StatusDone, Transcript: &text, Article: &text}, false},
		{"decreasing timestamps", jobs.Job{
			Status:     jobs.StatusDone,
			Transcript: &text,
			Timestamps: []jobs.Timestamp{{OffsetSeconds: 5}, {OffsetSeconds: 4}},
		}, false},
		{"unknown status", jobs.Job{Status: "paused"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.job.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, jobs.ErrInvariant) {
				t.Fatalf("expected ErrInvariant, got %v", err)
			}
		})
	}
}

func TestUpdateApplyInvalidatesDownstreamArtifacts(t *testing.T) {
	now := time.Now().UTC()
	job := &jobs.Job{
		Status:     jobs.StatusProcessing,
		Transcript: jobs.StringPtr("old"),
		Summary:    jobs.StringPtr("old summary"),
		Article:    jobs.StringPtr("old article"),
	}

	jobs.Update{Summary: jobs.StringPtr("new summary")}.Apply(job, now)
	if job.Article != nil {
		t.Fatal("expected article cleared by new summary")
	}
	if *job.Summary != "new summary" {
		t.Fatalf("unexpected summary %q", *job.Summary)
	}

	jobs.Update{Transcript: jobs.StringPtr("new"), Timestamps: []jobs.Timestamp{{OffsetSeconds: 1, Text: "new"}}}.Apply(job, now)
	if job.Summary != nil || job.Article != nil {
		t.Fatal("expected summary and article cleared by new transcript")
	}
	if len(job.Timestamps) != 1 {
		t.Fatalf("expected timestamps replaced, got %v", job.Timestamps)
	}
}

func TestUpdateApplyStatusClearsError(t *testing.T) {
	job := &jobs.Job{Status: jobs.StatusProcessing}
	jobs.Failed(jobs.StepSummarize, "provider down").Apply(job, time.Now())
	if job.Status != jobs.StatusError || job.ErrorMessage != "provider down" || job.FailedStep != jobs.StepSummarize {
		t.Fatalf("unexpected failed job: %+v", job)
	}
	jobs.Update{Status: jobs.StatusProcessing}.Apply(job, time.Now())
	if job.ErrorMessage != "" || job.FailedStep != 0 {
		t.Fatalf("expected error cleared, got %+v", job)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("job invalid after transition: %v", err)
	}
}

func TestNextStepAndPrerequisites(t *testing.T) {
	job := &jobs.Job{Status: jobs.StatusError, ErrorMessage: "x"}
	if got := jobs.NextStep(job); got != jobs.StepPrepare {
		t.Fatalf("NextStep = %d, want 1", got)
	}
	if _, ok := jobs.Prerequisite(job, jobs.StepTranscribe); ok {
		t.Fatal("step 2 should require a chunk plan")
	}

	job.ChunkPlan = []audio.Bounds{{Index: 0, StartSeconds: 0, EndSeconds: 10}}
	if got := jobs.NextStep(job); got != jobs.StepTranscribe {
		t.Fatalf("NextStep = %d, want 2", got)
	}
	if name, ok := jobs.Prerequisite(job, jobs.StepSummarize); ok || name != "transcript" {
		t.Fatalf("step 3 prerequisite = %q, %v", name, ok)
	}

	job.Transcript = jobs.StringPtr("t")
	job.Summary = jobs.StringPtr("s")
	if got := jobs.NextStep(job); got != jobs.StepArticle {
		t.Fatalf("NextStep = %d, want 4", got)
	}
	job.Article = jobs.StringPtr("a")
	if got := jobs.NextStep(job); got != 0 {
		t.Fatalf("NextStep = %d, want 0", got)
	}
	if _, ok := jobs.Prerequisite(job, 7); ok {
		t.Fatal("out of range step must not pass")
	}
}

func TestPlanClaimSupersedesOtherProcessingJobs(t *testing.T) {
	live := []*jobs.Job{
		{ID: "a", Status: jobs.StatusDone},
		{ID: "b", Status: jobs.StatusProcessing},
		{ID: "c", Status: jobs.StatusError, ErrorMessage: "x"},
	}

	target, supersede, err := jobs.PlanClaim(live, jobs.ClaimRequest{SourceRef: "s"})
	if err != nil {
		t.Fatalf("PlanClaim: %v", err)
	}
	if target == nil || target.ID != "c" {
		t.Fatalf("expected newest non-processing job reused, got %+v", target)
	}
	if len(supersede) != 1 || supersede[0].ID != "b" {
		t.Fatalf("expected b superseded, got %+v", supersede)
	}

	target, supersede, err = jobs.PlanClaim(live, jobs.ClaimRequest{JobID: "b"})
	if err != nil {
		t.Fatalf("PlanClaim by id: %v", err)
	}
	if target.ID != "b" || len(supersede) != 0 {
		t.Fatalf("claiming b must not supersede itself: %+v %+v", target, supersede)
	}

	if _, _, err := jobs.PlanClaim(live, jobs.ClaimRequest{JobID: "missing"}); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	target, _, _ = jobs.PlanClaim(live[1:2], jobs.ClaimRequest{SourceRef: "s"})
	if target != nil {
		t.Fatal("expected a new job when only a processing job is live")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := jobs.ParseStatus(" Done "); !ok || status != jobs.StatusDone {
		t.Fatalf("ParseStatus = %q %v", status, ok)
	}
	if _, ok := jobs.ParseStatus("pending"); ok {
		t.Fatal("pending is not a job status")
	}
}
