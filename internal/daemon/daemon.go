package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/preflight"
	"scribe/internal/services"
)

var errNotRunning = errors.New("daemon is not running")

// Daemon owns the lock, the API server, and background pipeline runs.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  jobs.Store
	orch   *pipeline.Orchestrator
	api    *apiServer

	lockPath string
	lock     *flock.Flock
	runLock  *pipeline.RunLock

	mu      sync.Mutex
	running atomic.Bool
	active  atomic.Int64
	runs    sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store jobs.Store, orch *pipeline.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		orch:     orch,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		runLock:  pipeline.NewRunLock(cfg.RunLockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	recovered, checked, err := d.runLock.Recover(ctx, d.store)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if !checked {
		d.logger.Warn("skipped interrupted-job recovery",
			logging.String(logging.FieldEventType, "recovery_skipped"),
			logging.String("reason", "pipeline runs active in another process"),
			logging.String(logging.FieldErrorHint, "resume stuck jobs with scribe resume <id>"),
		)
	}
	if recovered > 0 {
		d.logger.Warn("failed jobs interrupted by a previous process",
			logging.Int("count", recovered),
			logging.String(logging.FieldEventType, "jobs_interrupted"),
			logging.String(logging.FieldErrorHint, "resume them with scribe resume <id>"),
		)
	}

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.running.Store(true)
	d.mu.Unlock()

	if err := d.api.start(d.ctx); err != nil {
		d.mu.Lock()
		d.running.Store(false)
		d.cancel()
		d.ctx, d.cancel = nil, nil
		d.mu.Unlock()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.logger.Info("scribe daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels background runs, waits for them to record their state, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Swap(false) {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	d.api.stop()
	if cancel != nil {
		cancel()
	}
	d.runs.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("scribe daemon stopped")
}

// Close stops the daemon and releases the orchestrator and store.
func (d *Daemon) Close() error {
	d.Stop()
	return errors.Join(d.orch.Close(), d.store.Close())
}

// Addr reports the API listen address, or "" when not serving.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Submit records an uploaded job.
func (d *Daemon) Submit(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	return d.orch.Submit(ctx, sourceRef)
}

// StartJob claims the job for sourceRef and runs it in the background.
func (d *Daemon) StartJob(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	if !d.running.Load() {
		return nil, errNotRunning
	}
	job, err := d.orch.BeginStart(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	d.dispatch(job, jobs.StepPrepare)
	return job, nil
}

// Retry claims jobID and reruns from step in the background.
func (d *Daemon) Retry(ctx context.Context, jobID string, step int) (*jobs.Job, error) {
	if !d.running.Load() {
		return nil, errNotRunning
	}
	job, err := d.orch.BeginRetry(ctx, jobID, step)
	if err != nil {
		return nil, err
	}
	d.dispatch(job, step)
	return job, nil
}

// Resume claims jobID and reruns from its first missing artifact.
func (d *Daemon) Resume(ctx context.Context, jobID string) (*jobs.Job, error) {
	if !d.running.Load() {
		return nil, errNotRunning
	}
	job, step, err := d.orch.BeginResume(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if step > 0 {
		d.dispatch(job, step)
	}
	return job, nil
}

// Get returns a job by ID.
func (d *Daemon) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	return d.orch.Get(ctx, jobID)
}

// List returns jobs matching filter.
func (d *Daemon) List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	return d.orch.List(ctx, filter)
}

// Wait blocks until every background run has finished.
func (d *Daemon) Wait() {
	d.runs.Wait()
}

// dispatch runs the claimed job in the background. A job claimed while the
// daemon is stopping is failed as interrupted so it can be resumed later.
func (d *Daemon) dispatch(job *jobs.Job, step int) {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		upd := jobs.Failed(step, jobs.InterruptedReason)
		upd.ExpectRun = job.Run
		if _, err := d.store.Update(context.Background(), job.ID, upd); err != nil {
			d.logger.Warn("failed to release claimed job", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
		return
	}
	d.runs.Add(1)
	d.active.Add(1)
	ctx := d.ctx
	d.mu.Unlock()

	go func() {
		defer d.runs.Done()
		defer d.active.Add(-1)
		ctx = services.WithJobID(ctx, job.ID)
		final, err := d.orch.Execute(ctx, job, step)
		if err != nil {
			logging.WithContext(ctx, d.logger).Error("background run failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "run_failed"),
				logging.String(logging.FieldErrorHint, "check job store access"),
			)
			return
		}
		logging.WithContext(ctx, d.logger).Info("background run finished",
			logging.String("status", string(final.Status)),
		)
	}()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		ActiveRuns:   int(d.active.Load()),
		Dependencies: api.FromDependencies(deps.Check(d.cfg)),
		Checks:       api.FromChecks(preflight.RunAll(ctx, d.cfg)),
	}
	if list, err := d.store.List(ctx, jobs.ListFilter{}); err == nil {
		status.JobCounts = api.CountByStatus(list)
	} else {
		d.logger.Warn("job count unavailable", logging.Error(err))
	}
	return status
}
