package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists jobs. Implementations must make Claim atomic with respect
// to other Claim and Update calls for the same source.
type Store interface {
	Create(ctx context.Context, sourceRef string) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	FindLiveBySource(ctx context.Context, sourceRef string) (*Job, error)
	Update(ctx context.Context, id string, upd Update) (*Job, error)
	SoftDelete(ctx context.Context, id, reason string) (*Job, error)
	Claim(ctx context.Context, req ClaimRequest) (*Claimed, error)
	List(ctx context.Context, filter ListFilter) ([]*Job, error)
	FailInterrupted(ctx context.Context, reason string) (int, error)
	Close() error
}

// NewJob returns an uploaded job with a fresh identifier.
func NewJob(sourceRef string, now time.Time) *Job {
	now = now.UTC()
	return &Job{
		ID:        uuid.NewString(),
		SourceRef: strings.TrimSpace(sourceRef),
		Status:    StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PlanClaim applies the dedup rule to the live jobs of one source, ordered
// oldest first. It returns the job to claim (nil means create one) and the
// processing jobs that must be superseded.
func PlanClaim(live []*Job, req ClaimRequest) (*Job, []*Job, error) {
	var target *Job
	if id := strings.TrimSpace(req.JobID); id != "" {
		for _, job := range live {
			if job.ID == id {
				target = job
				break
			}
		}
		if target == nil {
			return nil, nil, ErrNotFound
		}
	} else {
		for i := len(live) - 1; i >= 0; i-- {
			if live[i].Status != StatusProcessing {
				target = live[i]
				break
			}
		}
	}

	var supersede []*Job
	for _, job := range live {
		if job.Status != StatusProcessing {
			continue
		}
		if target != nil && job.ID == target.ID {
			continue
		}
		supersede = append(supersede, job)
	}
	return target, supersede, nil
}

// Supersede marks job as replaced: soft-deleted and failed with reason.
func Supersede(job *Job, reason string, now time.Time) {
	if strings.TrimSpace(reason) == "" {
		reason = SupersededReason
	}
	Failed(NextStep(job), reason).Apply(job, now)
	deleted := now
	job.DeletedAt = &deleted
}

// Begin moves the claimed job into processing for a new run.
func Begin(job *Job, now time.Time) {
	Update{Status: StatusProcessing}.Apply(job, now)
	job.Run++
}
