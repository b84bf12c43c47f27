package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/jobs"
	"scribe/internal/summary"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withTimestamps bool
	var asJSON bool
	var field string

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Display a job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := ctx.jobsOnly(cmd.Context())
			if err != nil {
				return err
			}
			job, err := orch.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("show %s: %w", args[0], err)
			}
			if asJSON {
				return writeJSON(cmd, jobView(job, withTimestamps))
			}
			out := cmd.OutOrStdout()
			switch strings.ToLower(strings.TrimSpace(field)) {
			case "":
			case "transcript":
				fmt.Fprintln(out, valueOrEmpty(job.Transcript))
				return nil
			case "summary":
				if job.Summary != nil {
					fmt.Fprintln(out, summary.Body(*job.Summary))
				}
				return nil
			case "article":
				fmt.Fprintln(out, valueOrEmpty(job.Article))
				return nil
			default:
				return fmt.Errorf("unknown field %q (want transcript, summary, or article)", field)
			}

			fmt.Fprint(out, renderJob(job))
			if withTimestamps && len(job.Timestamps) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTimestamps(job.Timestamps))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withTimestamps, "timestamps", false, "Include transcript timestamps")
	cmd.Flags().StringVar(&field, "field", "", "Print only one artifact: transcript, summary, or article")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func jobView(job *jobs.Job, withTimestamps bool) api.Job {
	return api.FromJob(job, withTimestamps)
}

func renderJob(job *jobs.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:        %s\n", job.ID)
	fmt.Fprintf(&b, "Source:     %s\n", job.SourceRef)
	fmt.Fprintf(&b, "Status:     %s\n", job.Status)
	if !job.Live() {
		fmt.Fprintf(&b, "Deleted:    %s\n", job.DeletedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if job.Status == jobs.StatusError {
		fmt.Fprintf(&b, "Failed at:  step %d (%s)\n", job.FailedStep, jobs.StepName(job.FailedStep))
		fmt.Fprintf(&b, "Error:      %s\n", job.ErrorMessage)
	}
	if job.DurationSeconds > 0 {
		fmt.Fprintf(&b, "Duration:   %s (%d chunks)\n", formatSeconds(job.DurationSeconds), len(job.ChunkPlan))
	}
	fmt.Fprintf(&b, "Artifacts:  transcript=%s summary=%s article=%s\n",
		yesNo(job.Transcript != nil), yesNo(job.Summary != nil), yesNo(job.Article != nil))
	if next := jobs.NextStep(job); next > 0 && job.Status != jobs.StatusProcessing {
		fmt.Fprintf(&b, "Next step:  %d (%s)\n", next, jobs.StepName(next))
	}
	fmt.Fprintf(&b, "Updated:    %s\n", job.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	if job.Summary != nil {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", indent(summary.Body(*job.Summary)))
	}
	return b.String()
}

func renderTimestamps(ts []jobs.Timestamp) string {
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, []string{formatSeconds(t.OffsetSeconds), t.Text})
	}
	return renderTable([]column{
		{header: "Offset", align: alignRight},
		{header: "Text", maxWidth: 80},
	}, rows)
}

func formatSeconds(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func indent(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
