package pipeline

import (
	"context"
	"errors"

	"scribe/internal/audio"
	"scribe/internal/jobs"
	"scribe/internal/services"
)

type stage struct {
	step int
	name string
	run  func(ctx context.Context, state *runState, job *jobs.Job) (jobs.Update, error)
}

// runState carries in-memory artifacts between stages of one run.
type runState struct {
	prepared *audio.Prepared
}

func (s *runState) Close() {
	if s.prepared != nil {
		_ = s.prepared.Close()
		s.prepared = nil
	}
}

func (o *Orchestrator) buildStages() []stage {
	return []stage{
		{step: jobs.StepPrepare, name: jobs.StepName(jobs.StepPrepare), run: o.runPrepare},
		{step: jobs.StepTranscribe, name: jobs.StepName(jobs.StepTranscribe), run: o.runTranscribe},
		{step: jobs.StepSummarize, name: jobs.StepName(jobs.StepSummarize), run: o.runSummarize},
		{step: jobs.StepArticle, name: jobs.StepName(jobs.StepArticle), run: o.runArticle},
	}
}

func (o *Orchestrator) runPrepare(ctx context.Context, state *runState, job *jobs.Job) (jobs.Update, error) {
	if o.set.Preparer == nil {
		return jobs.Update{}, errors.New("audio preparer not configured")
	}
	state.Close()
	prepared, err := o.set.Preparer.Prepare(ctx, job.SourceRef)
	if err != nil {
		return jobs.Update{}, err
	}
	state.prepared = prepared
	return jobs.Update{
		ChunkPlan:       prepared.Plan(),
		DurationSeconds: prepared.DurationSeconds(),
	}, nil
}

func (o *Orchestrator) runTranscribe(ctx context.Context, state *runState, job *jobs.Job) (jobs.Update, error) {
	if o.set.Transcriber == nil {
		return jobs.Update{}, errors.New("transcription stage not configured")
	}
	if state.prepared == nil {
		if len(job.ChunkPlan) == 0 {
			return jobs.Update{}, services.MissingPrerequisite(jobs.StepTranscribe, "chunk plan")
		}
		if o.set.Preparer == nil {
			return jobs.Update{}, errors.New("audio preparer not configured")
		}
		prepared, err := o.set.Preparer.PrepareWithPlan(ctx, job.SourceRef, job.ChunkPlan)
		if err != nil {
			return jobs.Update{}, err
		}
		state.prepared = prepared
	}
	result, err := o.set.Transcriber.Transcribe(ctx, state.prepared)
	// Chunks are not needed past this point.
	state.Close()
	if err != nil {
		return jobs.Update{}, err
	}
	return jobs.Update{
		Transcript: jobs.StringPtr(result.Transcript),
		Timestamps: result.Timestamps,
	}, nil
}

func (o *Orchestrator) runSummarize(ctx context.Context, _ *runState, job *jobs.Job) (jobs.Update, error) {
	if o.set.Summarizer == nil {
		return jobs.Update{}, errors.New("summarization stage not configured")
	}
	if job.Transcript == nil {
		return jobs.Update{}, services.MissingPrerequisite(jobs.StepSummarize, "transcript")
	}
	text, err := o.set.Summarizer.Summarize(ctx, *job.Transcript, job.Timestamps)
	if err != nil {
		return jobs.Update{}, err
	}
	return jobs.Update{Summary: jobs.StringPtr(text)}, nil
}

func (o *Orchestrator) runArticle(ctx context.Context, _ *runState, job *jobs.Job) (jobs.Update, error) {
	if o.set.Articles == nil {
		return jobs.Update{}, errors.New("article stage not configured")
	}
	if job.Summary == nil {
		return jobs.Update{}, services.MissingPrerequisite(jobs.StepArticle, "summary")
	}
	text, err := o.set.Articles.Generate(ctx, *job.Summary, job.Transcript)
	if err != nil {
		return jobs.Update{}, err
	}
	return jobs.Update{Article: jobs.StringPtr(text)}, nil
}
