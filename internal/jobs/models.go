package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"scribe/internal/audio"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

var allStatuses = []Status{StatusUploaded, StatusProcessing, StatusDone, StatusError}

// AllStatuses returns every job status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user supplied string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Pipeline steps, 1-based.
const (
	StepPrepare    = 1
	StepTranscribe = 2
	StepSummarize  = 3
	StepArticle    = 4
)

// StepName returns the short stage name for a step.
func StepName(step int) string {
	switch step {
	case StepPrepare:
		return "prepare"
	case StepTranscribe:
		return "transcribe"
	case StepSummarize:
		return "summarize"
	case StepArticle:
		return "article"
	default:
		return fmt.Sprintf("step-%d", step)
	}
}

// SupersededReason is the error recorded on jobs replaced by a newer request.
const SupersededReason = "superseded by a newer request"

// InterruptedReason is the error recorded on jobs left processing by a stopped process.
const InterruptedReason = "interrupted before completion"

var (
	// ErrNotFound indicates the job does not exist or is no longer live.
	ErrNotFound = errors.New("job not found")
	// ErrInvariant indicates an update would leave the job in an inconsistent state.
	ErrInvariant = errors.New("job invariant violated")
)

// Timestamp ties a transcript segment to its offset on the source timeline.
type Timestamp struct {
	OffsetSeconds float64 `json:"offsetSeconds" firestore:"offsetSeconds"`
	Text          string  `json:"text" firestore:"text"`
}

// Job is the persisted record of one source's trip through the pipeline.
type Job struct {
	ID              string         `json:"id"`
	SourceRef       string         `json:"sourceRef"`
	Status          Status         `json:"status"`
	Transcript      *string        `json:"transcript,omitempty"`
	Timestamps      []Timestamp    `json:"timestamps,omitempty"`
	Summary         *string        `json:"summary,omitempty"`
	Article         *string        `json:"article,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	FailedStep      int            `json:"failedStep,omitempty"`
	DurationSeconds float64        `json:"durationSeconds,omitempty"`
	ChunkPlan       []audio.Bounds `json:"chunkPlan,omitempty"`
	Run             int64          `json:"run"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       *time.Time     `json:"deletedAt,omitempty"`
}

// Live reports whether the job has not been soft-deleted.
func (j *Job) Live() bool {
	return j != nil && j.DeletedAt == nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Transcript = cloneString(j.Transcript)
	out.Summary = cloneString(j.Summary)
	out.Article = cloneString(j.Article)
	if j.Timestamps != nil {
		out.Timestamps = append([]Timestamp(nil), j.Timestamps...)
	}
	if j.ChunkPlan != nil {
		out.ChunkPlan = append([]audio.Bounds(nil), j.ChunkPlan...)
	}
	if j.DeletedAt != nil {
		deleted := *j.DeletedAt
		out.DeletedAt = &deleted
	}
	return &out
}

// Validate checks the record invariants every persisted job must satisfy.
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("%w: nil job", ErrInvariant)
	}
	if _, ok := ParseStatus(string(j.Status)); !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvariant, j.Status)
	}
	if (j.Status == StatusError) != (strings.TrimSpace(j.ErrorMessage) != "") {
		return fmt.Errorf("%w: status %s with error message %q", ErrInvariant, j.Status, j.ErrorMessage)
	}
	if len(j.Timestamps) > 0 && j.Transcript == nil {
		return fmt.Errorf("%w: timestamps without transcript", ErrInvariant)
	}
	for i := 1; i < len(j.Timestamps); i++ {
		if j.Timestamps[i].OffsetSeconds < j.Timestamps[i-1].OffsetSeconds {
			return fmt.Errorf("%w: timestamps decrease at %d", ErrInvariant, i)
		}
	}
	if j.Summary != nil && j.Transcript == nil {
		return fmt.Errorf("%w: summary without transcript", ErrInvariant)
	}
	if j.Article != nil && j.Summary == nil {
		return fmt.Errorf("%w: article without summary", ErrInvariant)
	}
	return nil
}

// NextStep returns the first step whose output is missing, or 0 when every
// artifact is present.
func NextStep(j *Job) int {
	switch {
	case j == nil || len(j.ChunkPlan) == 0:
		return StepPrepare
	case j.Transcript == nil:
		return StepTranscribe
	case j.Summary == nil:
		return StepSummarize
	case j.Article == nil:
		return StepArticle
	default:
		return 0
	}
}

// Prerequisite reports the artifact a retry from step needs and whether the job has it.
func Prerequisite(j *Job, step int) (string, bool) {
	switch step {
	case StepPrepare:
		return "", true
	case StepTranscribe:
		return "chunk plan", j != nil && len(j.ChunkPlan) > 0
	case StepSummarize:
		return "transcript", j != nil && j.Transcript != nil
	case StepArticle:
		return "summary", j != nil && j.Summary != nil
	default:
		return fmt.Sprintf("a step between %d and %d", StepPrepare, StepArticle), false
	}
}

// Update describes a partial change to a job. Zero-valued fields are left untouched.
//
// Writing a transcript clears the summary and article unless the same update
// sets them; writing a summary clears the article. Setting a non-error status
// clears ErrorMessage and FailedStep.
type Update struct {
	// ExpectStatus, when set, fails the update with a concurrency conflict if
	// the stored status differs.
	ExpectStatus Status
	// ExpectRun, when positive, fails the update if the job has been claimed again.
	ExpectRun int64

	Status       Status
	ErrorMessage string
	FailedStep   int

	DurationSeconds float64
	ChunkPlan       []audio.Bounds

	Transcript *string
	Timestamps []Timestamp
	Summary    *string
	Article    *string
}

// Apply mutates job in place according to the update.
func (u Update) Apply(job *Job, now time.Time) {
	if u.ChunkPlan != nil {
		job.ChunkPlan = append([]audio.Bounds(nil), u.ChunkPlan...)
		job.DurationSeconds = u.DurationSeconds
	}
	if u.Transcript != nil {
		job.Transcript = cloneString(u.Transcript)
		job.Timestamps = append([]Timestamp(nil), u.Timestamps...)
		job.Summary = nil
		job.Article = nil
	}
	if u.Summary != nil {
		job.Summary = cloneString(u.Summary)
		job.Article = nil
	}
	if u.Article != nil {
		job.Article = cloneString(u.Article)
	}
	if u.Status != "" {
		job.Status = u.Status
		if u.Status == StatusError {
			job.ErrorMessage = strings.TrimSpace(u.ErrorMessage)
			job.FailedStep = u.FailedStep
		} else {
			job.ErrorMessage = ""
			job.FailedStep = 0
		}
	}
	job.UpdatedAt = now
}

// Guard reports whether the stored job satisfies the update's preconditions.
func (u Update) Guard(job *Job) error {
	if !job.Live() {
		return fmt.Errorf("job %s was superseded", job.ID)
	}
	if u.ExpectStatus != "" && job.Status != u.ExpectStatus {
		return fmt.Errorf("job %s is %s, expected %s", job.ID, job.Status, u.ExpectStatus)
	}
	if u.ExpectRun > 0 && job.Run != u.ExpectRun {
		return fmt.Errorf("job %s was claimed again (run %d, expected %d)", job.ID, job.Run, u.ExpectRun)
	}
	return nil
}

// Failed returns an update that moves a job to error for the given step.
func Failed(step int, message string) Update {
	if strings.TrimSpace(message) == "" {
		message = "unknown failure"
	}
	return Update{Status: StatusError, ErrorMessage: message, FailedStep: step}
}

// ListFilter narrows List results.
type ListFilter struct {
	Statuses       []Status
	SourceRef      string
	IncludeDeleted bool
	Limit          int
}

// ClaimRequest asks the store to move a job into processing.
//
// With JobID empty the store reuses the newest live non-processing job for
// SourceRef or creates one. With JobID set that job is claimed. Either way
// every other live processing job for the same source is soft-deleted and
// failed with Reason.
type ClaimRequest struct {
	SourceRef string
	JobID     string
	Reason    string
}

// Claimed is the outcome of a successful claim.
type Claimed struct {
	Job        *Job
	Created    bool
	Superseded []string
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// StringPtr returns a pointer to value.
func StringPtr(value string) *string {
	return &value
}
