package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"scribe/internal/services"
)

// Create inserts a new uploaded job for sourceRef.
func (s *SQLiteStore) Create(ctx context.Context, sourceRef string) (*Job, error) {
	if strings.TrimSpace(sourceRef) == "" {
		return nil, errors.New("create job: source reference required")
	}
	job := NewJob(sourceRef, s.now())
	if err := s.withTx(ctx, func(tx txExecutor) error {
		return insertJob(ctx, tx, job)
	}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Get fetches a job by identifier, including soft-deleted jobs.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	job, err := selectJob(ensureContext(ctx), s.db, id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindLiveBySource returns the live job for sourceRef, preferring a processing one.
func (s *SQLiteStore) FindLiveBySource(ctx context.Context, sourceRef string) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs
         WHERE source_ref = ? AND deleted_at IS NULL
         ORDER BY (status = 'processing') DESC, created_at DESC, rowid DESC
         LIMIT 1`,
		strings.TrimSpace(sourceRef),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find live job: %w", err)
	}
	return job, nil
}

// Update applies upd to the job atomically. A failed guard returns a
// concurrency conflict and leaves the job untouched.
func (s *SQLiteStore) Update(ctx context.Context, id string, upd Update) (*Job, error) {
	var updated *Job
	err := s.withTx(ctx, func(tx txExecutor) error {
		job, err := selectJob(ctx, tx, id)
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
		if err := writeJob(ctx, tx, job); err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete hides a job from active queries. A processing job is failed with reason.
func (s *SQLiteStore) SoftDelete(ctx context.Context, id, reason string) (*Job, error) {
	var deleted *Job
	err := s.withTx(ctx, func(tx txExecutor) error {
		job, err := selectJob(ctx, tx, id)
		if err != nil {
			return err
		}
		if !job.Live() {
			deleted = job
			return nil
		}
		now := s.now()
		if job.Status == StatusProcessing {
			Supersede(job, reason, now)
		} else {
			job.UpdatedAt = now
			job.DeletedAt = &now
		}
		if err := writeJob(ctx, tx, job); err != nil {
			return err
		}
		deleted = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Claim supersedes, selects, and moves a job into processing in one transaction.
func (s *SQLiteStore) Claim(ctx context.Context, req ClaimRequest) (*Claimed, error) {
	var claimed *Claimed
	err := s.withTx(ctx, func(tx txExecutor) error {
		claimed = nil
		sourceRef := strings.TrimSpace(req.SourceRef)
		if req.JobID != "" {
			job, err := selectJob(ctx, tx, req.JobID)
			if err != nil {
				return err
			}
			if !job.Live() {
				return ErrNotFound
			}
			sourceRef = job.SourceRef
		}
		if sourceRef == "" {
			return errors.New("claim job: source reference required")
		}

		live, err := selectLive(ctx, tx, sourceRef)
		if err != nil {
			return err
		}
		target, supersede, err := PlanClaim(live, req)
		if err != nil {
			return err
		}

		now := s.now()
		result := &Claimed{}
		for _, job := range supersede {
			Supersede(job, req.Reason, now)
			if err := writeJob(ctx, tx, job); err != nil {
				return err
			}
			result.Superseded = append(result.Superseded, job.ID)
		}
		if target == nil {
			target = NewJob(sourceRef, now)
			if err := insertJob(ctx, tx, target); err != nil {
				return err
			}
			result.Created = true
		}
		Begin(target, now)
		if err := writeJob(ctx, tx, target); err != nil {
			return err
		}
		result.Job = target
		claimed = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// List returns jobs ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if ref := strings.TrimSpace(filter.SourceRef); ref != "" {
		clauses = append(clauses, "source_ref = ?")
		args = append(args, ref)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, rowid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return scanJobs(rows)
}

// FailInterrupted moves every live processing job to error. It is called at
// daemon start, before any new run is claimed.
func (s *SQLiteStore) FailInterrupted(ctx context.Context, reason string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		reason = InterruptedReason
	}
	var count int
	err := s.withTx(ctx, func(tx txExecutor) error {
		count = 0
		rows, err := tx.QueryContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE status = ? AND deleted_at IS NULL ORDER BY created_at`,
			string(StatusProcessing),
		)
		if err != nil {
			return err
		}
		stuck, err := scanJobs(rows)
		if err != nil {
			return err
		}
		now := s.now()
		for _, job := range stuck {
			Failed(NextStep(job), reason).Apply(job, now)
			if err := writeJob(ctx, tx, job); err != nil {
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

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func selectJob(ctx context.Context, q rowQuerier, id string) (*Job, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, strings.TrimSpace(id))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func selectLive(ctx context.Context, tx txExecutor, sourceRef string) ([]*Job, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_ref = ? AND deleted_at IS NULL ORDER BY created_at, rowid`,
		sourceRef,
	)
	if err != nil {
		return nil, fmt.Errorf("select live jobs: %w", err)
	}
	return scanJobs(rows)
}

func insertJob(ctx context.Context, tx txExecutor, job *Job) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (id, source_ref, status, failed_step, duration_seconds, run, created_at, updated_at)
         VALUES (?, ?, ?, 0, 0, 0, ?, ?)`,
		job.ID,
		job.SourceRef,
		string(job.Status),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func writeJob(ctx context.Context, tx txExecutor, job *Job) error {
	timestamps, err := nullableJSON(job.Timestamps)
	if err != nil {
		return fmt.Errorf("encode timestamps: %w", err)
	}
	plan, err := nullableJSON(job.ChunkPlan)
	if err != nil {
		return fmt.Errorf("encode chunk plan: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs
         SET status = ?, transcript = ?, timestamps_json = ?, summary = ?, article = ?,
             error_message = ?, failed_step = ?, duration_seconds = ?, chunk_plan_json = ?,
             run = ?, updated_at = ?, deleted_at = ?
         WHERE id = ?`,
		string(job.Status),
		nullableText(job.Transcript),
		timestamps,
		nullableText(job.Summary),
		nullableText(job.Article),
		nullableString(job.ErrorMessage),
		job.FailedStep,
		job.DurationSeconds,
		plan,
		job.Run,
		formatTime(job.UpdatedAt),
		nullableTime(job.DeletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}
