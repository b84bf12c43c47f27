package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"scribe/internal/article"
	"scribe/internal/audio"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/services"
	"scribe/internal/summary"
	"scribe/internal/transcription"
)

// claimAttempts bounds how often a claim is retried after losing a race
// with another writer for the same source.
const claimAttempts = 3

// StageSet bundles the stage implementations the orchestrator drives.
type StageSet struct {
	Preparer    *audio.Preparer
	Transcriber *transcription.Stage
	Summarizer  *summary.Stage
	Articles    *article.Stage
}

// Orchestrator owns the job state machine.
type Orchestrator struct {
	store    jobs.Store
	set      StageSet
	stages   []stage
	logger   *slog.Logger
	notifier notifications.Service
	closers  []io.Closer
}

// New builds an orchestrator over store.
func New(store jobs.Store, set StageSet, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		set:    set,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	o.stages = o.buildStages()
	return o
}

// SetNotifier installs the service told about finished and failed runs.
func (o *Orchestrator) SetNotifier(n notifications.Service) {
	o.notifier = n
}

// Submit records a new uploaded job without running it.
func (o *Orchestrator) Submit(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return nil, services.Wrap(services.ErrInvalidMedia, "", "submit", "source reference is empty", nil)
	}
	job, err := o.store.Create(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), o.logger).Info("job submitted",
		logging.String(logging.FieldSourceRef, job.SourceRef),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return job, nil
}

// Start claims the job for sourceRef and runs every stage.
func (o *Orchestrator) Start(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	job, err := o.BeginStart(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, job, jobs.StepPrepare)
}

// RetryFromStep reruns step and everything after it from persisted artifacts.
func (o *Orchestrator) RetryFromStep(ctx context.Context, jobID string, step int) (*jobs.Job, error) {
	job, err := o.BeginRetry(ctx, jobID, step)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, job, step)
}

// Resume retries from the first stage whose output is missing. A job with
// every artifact is returned unchanged.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, step, err := o.BeginResume(ctx, jobID)
	if err != nil || step == 0 {
		return job, err
	}
	return o.Execute(ctx, job, step)
}

// BeginStart performs the claim half of Start. The returned job is processing.
func (o *Orchestrator) BeginStart(ctx context.Context, sourceRef string) (*jobs.Job, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return nil, services.Wrap(services.ErrInvalidMedia, "", "start", "source reference is empty", nil)
	}
	return o.claim(ctx, jobs.ClaimRequest{SourceRef: sourceRef, Reason: jobs.SupersededReason})
}

// BeginRetry validates the retry request and claims the job. A missing
// prerequisite leaves the job untouched.
func (o *Orchestrator) BeginRetry(ctx context.Context, jobID string, step int) (*jobs.Job, error) {
	job, err := o.liveJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if artifact, ok := jobs.Prerequisite(job, step); !ok {
		return nil, services.MissingPrerequisite(step, artifact)
	}
	return o.claim(ctx, jobs.ClaimRequest{SourceRef: job.SourceRef, JobID: job.ID, Reason: jobs.SupersededReason})
}

// BeginResume claims the job when it has work left and reports the step to
// run from. Step 0 means the job is complete and was not claimed.
func (o *Orchestrator) BeginResume(ctx context.Context, jobID string) (*jobs.Job, int, error) {
	job, err := o.liveJob(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}
	step := jobs.NextStep(job)
	if step == 0 {
		return job, 0, nil
	}
	claimed, err := o.claim(ctx, jobs.ClaimRequest{SourceRef: job.SourceRef, JobID: job.ID, Reason: jobs.SupersededReason})
	if err != nil {
		return nil, 0, err
	}
	return claimed, step, nil
}

// Get returns a job by ID, including soft-deleted jobs.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	return o.store.Get(ctx, jobID)
}

// List proxies to the store.
func (o *Orchestrator) List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	return o.store.List(ctx, filter)
}

func (o *Orchestrator) liveJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, err := o.store.Get(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, err
	}
	if !job.Live() {
		return nil, jobs.ErrNotFound
	}
	return job, nil
}

func (o *Orchestrator) claim(ctx context.Context, req jobs.ClaimRequest) (*jobs.Job, error) {
	var lastErr error
	for attempt := 1; attempt <= claimAttempts; attempt++ {
		claimed, err := o.store.Claim(ctx, req)
		if err == nil {
			o.logClaim(ctx, claimed)
			return claimed.Job, nil
		}
		if !errors.Is(err, services.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
		o.logger.Debug("claim lost a race; retrying",
			logging.String(logging.FieldSourceRef, req.SourceRef),
			logging.Int(logging.FieldAttempt, attempt),
		)
	}
	return nil, lastErr
}

func (o *Orchestrator) logClaim(ctx context.Context, claimed *jobs.Claimed) {
	logger := logging.WithContext(services.WithJobID(ctx, claimed.Job.ID), o.logger)
	for _, id := range claimed.Superseded {
		logger.Info("superseded live job",
			logging.String("superseded_job_id", id),
			logging.String(logging.FieldEventType, "job_superseded"),
		)
	}
	logger.Info("job claimed",
		logging.String(logging.FieldSourceRef, claimed.Job.SourceRef),
		logging.Bool("created", claimed.Created),
		logging.Int64("run", claimed.Job.Run),
		logging.String(logging.FieldEventType, "job_claimed"),
	)
}

// Execute runs stages step..4 for a job returned by one of the Begin calls.
// Stage failures are recorded on the job, not returned; the error result is
// reserved for store failures.
func (o *Orchestrator) Execute(ctx context.Context, job *jobs.Job, step int) (*jobs.Job, error) {
	if step < jobs.StepPrepare || step > len(o.stages) {
		return nil, services.MissingPrerequisite(step, "a valid step")
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)
	started := time.Now()

	state := &runState{}
	defer state.Close()

	current := job
	for _, stg := range o.stages[step-1:] {
		stageCtx := services.WithStage(ctx, stg.name)
		stageLogger := logging.WithContext(stageCtx, o.logger)
		stageStarted := time.Now()
		stageLogger.Info("stage started", logging.Step(stg.step))

		upd, err := stg.run(stageCtx, state, current)
		if err != nil {
			return o.fail(ctx, current, stg, err)
		}
		upd.ExpectStatus = jobs.StatusProcessing
		upd.ExpectRun = current.Run
		if stg.step == len(o.stages) {
			upd.Status = jobs.StatusDone
		}
		next, err := o.store.Update(ctx, current.ID, upd)
		if err != nil {
			return o.storeFailure(ctx, current, err)
		}
		current = next
		stageLogger.Info("stage completed",
			logging.Step(stg.step),
			logging.Elapsed(time.Since(stageStarted)),
			logging.String(logging.FieldEventType, "stage_complete"),
		)
	}

	elapsed := time.Since(started)
	logger.Info("job completed",
		logging.Elapsed(elapsed),
		logging.String(logging.FieldEventType, "job_complete"),
	)
	if o.notifier != nil {
		o.notified(ctx, o.notifier.JobCompleted(ctx, current, elapsed))
	}
	return current, nil
}

// fail records a stage error on the job. The write outlives cancellation so
// an interrupted run still leaves a resumable error state.
func (o *Orchestrator) fail(ctx context.Context, job *jobs.Job, stg stage, cause error) (*jobs.Job, error) {
	logger := logging.WithContext(services.WithStage(ctx, stg.name), o.logger)
	attrs := append([]logging.Attr{
		logging.Step(stg.step),
		logging.String(logging.FieldEventType, "stage_failed"),
	}, logging.FailureAttrs(cause)...)
	logger.Error("stage failed", logging.Args(attrs...)...)

	upd := jobs.Failed(stg.step, cause.Error())
	upd.ExpectStatus = jobs.StatusProcessing
	upd.ExpectRun = job.Run
	failed, err := o.store.Update(context.WithoutCancel(ctx), job.ID, upd)
	if err != nil {
		return o.storeFailure(ctx, job, err)
	}
	if o.notifier != nil {
		o.notified(ctx, o.notifier.JobFailed(context.WithoutCancel(ctx), failed))
	}
	return failed, nil
}

func (o *Orchestrator) notified(ctx context.Context, err error) {
	if err != nil {
		logging.WithContext(ctx, o.logger).Warn("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.Error(err),
		)
	}
}

// storeFailure handles a rejected write. A lost guard means the run was
// superseded, so its result is dropped and the stored state returned.
func (o *Orchestrator) storeFailure(ctx context.Context, job *jobs.Job, err error) (*jobs.Job, error) {
	if !errors.Is(err, services.ErrConcurrencyConflict) {
		return nil, err
	}
	logging.WithContext(ctx, o.logger).Warn("run superseded; discarding result",
		logging.Int64("run", job.Run),
		logging.String(logging.FieldEventType, "run_superseded"),
		logging.Error(err),
	)
	current, getErr := o.store.Get(context.WithoutCancel(ctx), job.ID)
	if getErr != nil {
		return nil, getErr
	}
	return current, nil
}
