package fsstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"scribe/internal/jobs"
	"scribe/internal/services"
)

// Store persists jobs in a Firestore collection.
type Store struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ jobs.Store = (*Store)(nil)

// Open connects to Firestore for projectID.
func Open(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("firestore store: project id required")
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return New(client, collection), nil
}

// New wraps an existing client.
func New(client *firestore.Client, collection string) *Store {
	if strings.TrimSpace(collection) == "" {
		collection = "jobs"
	}
	return &Store{client: client, collection: collection, now: func() time.Time { return time.Now().UTC() }}
}

// Close releases the Firestore client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) jobs() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Create inserts a new uploaded job.
func (s *Store) Create(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	if strings.TrimSpace(sourceRef) == "" {
		return nil, errors.New("create job: source reference required")
	}
	job := jobs.NewJob(sourceRef, s.now())
	if _, err := s.jobs().Doc(job.ID).Create(ctx, toRecord(job)); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Get fetches a job by identifier, including soft-deleted jobs.
func (s *Store) Get(ctx context.Context, id string) (*jobs.Job, error) {
	snap, err := s.jobs().Doc(strings.TrimSpace(id)).Get(ctx)
	return decodeSnapshot(snap, err)
}

// FindLiveBySource returns the live job for sourceRef, preferring a processing one.
func (s *Store) FindLiveBySource(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	live, err := collect(s.liveQuery(sourceRef).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("find live job: %w", err)
	}
	if len(live) == 0 {
		return nil, jobs.ErrNotFound
	}
	for i := len(live) - 1; i >= 0; i-- {
		if live[i].Status == jobs.StatusProcessing {
			return live[i], nil
		}
	}
	return live[len(live)-1], nil
}

// Update applies upd inside a transaction.
func (s *Store) Update(ctx context.Context, id string, upd jobs.Update) (*jobs.Job, error) {
	ref := s.jobs().Doc(strings.TrimSpace(id))
	var updated *jobs.Job
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		job, err := decodeSnapshot(tx.Get(ref))
		if err != nil {
			return err
		}
		if err := upd.Guard(job); err != nil {
			return services.ConcurrencyConflict("update job", err.Error())
		}
		upd.Apply(job, s.now())
		if err := job.Validate(); err != nil {
			return err
		}
		updated = job
		return tx.Set(ref, toRecord(job))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete hides a job from active queries. A processing job is failed with reason.
func (s *Store) SoftDelete(ctx context.Context, id, reason string) (*jobs.Job, error) {
	ref := s.jobs().Doc(strings.TrimSpace(id))
	var deleted *jobs.Job
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		job, err := decodeSnapshot(tx.Get(ref))
		if err != nil {
			return err
		}
		deleted = job
		if !job.Live() {
			return nil
		}
		now := s.now()
		if job.Status == jobs.StatusProcessing {
			jobs.Supersede(job, reason, now)
		} else {
			job.UpdatedAt = now
			job.DeletedAt = &now
		}
		return tx.Set(ref, toRecord(job))
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Claim supersedes, selects, and moves a job into processing in one transaction.
func (s *Store) Claim(ctx context.Context, req jobs.ClaimRequest) (*jobs.Claimed, error) {
	var claimed *jobs.Claimed
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = nil
		sourceRef := strings.TrimSpace(req.SourceRef)
		if req.JobID != "" {
			job, err := decodeSnapshot(tx.Get(s.jobs().Doc(req.JobID)))
			if err != nil {
				return err
			}
			if !job.Live() {
				return jobs.ErrNotFound
			}
			sourceRef = job.SourceRef
		}
		if sourceRef == "" {
			return errors.New("claim job: source reference required")
		}

		live, err := collect(tx.Documents(s.liveQuery(sourceRef)))
		if err != nil {
			return err
		}
		target, supersede, err := jobs.PlanClaim(live, req)
		if err != nil {
			return err
		}

		now := s.now()
		result := &jobs.Claimed{}
		for _, job := range supersede {
			jobs.Supersede(job, req.Reason, now)
			if err := tx.Set(s.jobs().Doc(job.ID), toRecord(job)); err != nil {
				return err
			}
			result.Superseded = append(result.Superseded, job.ID)
		}
		if target == nil {
			target = jobs.NewJob(sourceRef, now)
			result.Created = true
		}
		jobs.Begin(target, now)
		if err := tx.Set(s.jobs().Doc(target.ID), toRecord(target)); err != nil {
			return err
		}
		result.Job = target
		claimed = result
		return nil
	})
	if status.Code(err) == codes.Aborted {
		return nil, fmt.Errorf("%w: %v", services.ConcurrencyConflict("claim job", "transaction aborted"), err)
	}
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// List returns jobs ordered by creation time.
func (s *Store) List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	query := s.jobs().Query
	if !filter.IncludeDeleted {
		query = query.Where("live", "==", true)
	}
	if ref := strings.TrimSpace(filter.SourceRef); ref != "" {
		query = query.Where("sourceRef", "==", ref)
	}
	if len(filter.Statuses) > 0 {
		values := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			values = append(values, string(st))
		}
		query = query.Where("status", "in", values)
	}
	out, err := collect(query.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FailInterrupted moves every live processing job to error.
func (s *Store) FailInterrupted(ctx context.Context, reason string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		reason = jobs.InterruptedReason
	}
	var count int
	query := s.jobs().Where("live", "==", true).Where("status", "==", string(jobs.StatusProcessing))
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		count = 0
		stuck, err := collect(tx.Documents(query))
		if err != nil {
			return err
		}
		now := s.now()
		for _, job := range stuck {
			jobs.Failed(jobs.NextStep(job), reason).Apply(job, now)
			if err := tx.Set(s.jobs().Doc(job.ID), toRecord(job)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return count, nil
}

func (s *Store) liveQuery(sourceRef string) firestore.Query {
	return s.jobs().Where("sourceRef", "==", strings.TrimSpace(sourceRef)).Where("live", "==", true)
}

func decodeSnapshot(snap *firestore.DocumentSnapshot, err error) (*jobs.Job, error) {
	if status.Code(err) == codes.NotFound {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var rec record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", snap.Ref.ID, err)
	}
	return fromRecord(rec), nil
}

// collect drains a document iterator into jobs ordered oldest first.
func collect(iter *firestore.DocumentIterator) ([]*jobs.Job, error) {
	defer iter.Stop()
	var out []*jobs.Job
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		job, err := decodeSnapshot(snap, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	slices.SortStableFunc(out, func(a, b *jobs.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}
