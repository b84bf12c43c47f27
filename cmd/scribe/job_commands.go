package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scribe/internal/jobs"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "add <source-ref>",
		Short: "Record an uploaded job without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.jobsOnly(cmd.Context())
			if err != nil {
				return err
			}
			job, err := orch.Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, jobView(job, false))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added job %s for %s\n", job.ID, job.SourceRef)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "start <source-ref>",
		Short: "Run the full pipeline for a source, superseding any run in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			job, err := orch.Start(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return reportRun(cmd, job, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var step int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Rerun a job from a step using its persisted artifacts",
		Long: "Rerun a job from --step (1 prepare, 2 transcribe, 3 summarize, 4 article).\n" +
			"The step's input artifact must already exist on the job.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("step") {
				return fmt.Errorf("--step is required")
			}
			orch, err := ctx.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			job, err := orch.RetryFromStep(cmd.Context(), args[0], step)
			if err != nil {
				return err
			}
			return reportRun(cmd, job, asJSON)
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "Step to rerun from (1-4)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Rerun a job from its first missing artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			job, err := orch.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return reportRun(cmd, job, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// reportRun prints the outcome of a run and turns a failed job into a
// non-zero exit.
func reportRun(cmd *cobra.Command, job *jobs.Job, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd, jobView(job, false)); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderJob(job))
	}
	switch {
	case !job.Live():
		return fmt.Errorf("job %s was superseded by a newer request", job.ID)
	case job.Status == jobs.StatusError:
		return fmt.Errorf("job %s failed at step %s (%s): %s", job.ID, strconv.Itoa(job.FailedStep), jobs.StepName(job.FailedStep), job.ErrorMessage)
	default:
		return nil
	}
}
