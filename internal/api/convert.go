package api

import (
	"scribe/internal/deps"
	"scribe/internal/jobs"
	"scribe/internal/preflight"
)

// FromJob converts a job record to its API representation. Timestamps are
// only included when requested since they can be large.
func FromJob(job *jobs.Job, withTimestamps bool) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:              job.ID,
		SourceRef:       job.SourceRef,
		Status:          string(job.Status),
		ErrorMessage:    job.ErrorMessage,
		FailedStep:      job.FailedStep,
		NextStep:        jobs.NextStep(job),
		DurationSeconds: job.DurationSeconds,
		Chunks:          len(job.ChunkPlan),
		Transcript:      job.Transcript,
		Summary:         job.Summary,
		Article:         job.Article,
		Run:             job.Run,
		Deleted:         !job.Live(),
	}
	if withTimestamps && len(job.Timestamps) > 0 {
		dto.Timestamps = make([]Timestamp, len(job.Timestamps))
		for i, ts := range job.Timestamps {
			dto.Timestamps[i] = Timestamp{OffsetSeconds: ts.OffsetSeconds, Text: ts.Text}
		}
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of jobs without timestamps.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job, false))
	}
	return out
}

// CountByStatus tallies jobs per status, including zero counts.
func CountByStatus(list []*jobs.Job) map[string]int {
	counts := make(map[string]int, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		counts[string(status)] = 0
	}
	for _, job := range list {
		counts[string(job.Status)]++
	}
	return counts
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}
