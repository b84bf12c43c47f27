package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/jobs"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var includeDeleted bool
	var source string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := jobs.ListFilter{
				SourceRef:      strings.TrimSpace(source),
				IncludeDeleted: includeDeleted,
				Limit:          limit,
			}
			for _, value := range statuses {
				status, ok := jobs.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			orch, err := ctx.jobsOnly(cmd.Context())
			if err != nil {
				return err
			}
			list, err := orch.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				views := make([]any, 0, len(list))
				for _, job := range list {
					views = append(views, jobView(job, false))
				}
				return writeJSON(cmd, views)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(list))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (uploaded, processing, done, error)")
	cmd.Flags().BoolVar(&includeDeleted, "all", false, "Include superseded jobs")
	cmd.Flags().StringVar(&source, "source", "", "Filter by source reference")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderJobTable(list []*jobs.Job) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		status := string(job.Status)
		if !job.Live() {
			status += " (superseded)"
		}
		step := ""
		if job.Status == jobs.StatusError {
			step = jobs.StepName(job.FailedStep)
		}
		rows = append(rows, []string{
			job.ID,
			job.SourceRef,
			status,
			step,
			formatSeconds(job.DurationSeconds),
			job.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return renderTable([]column{
		{header: "ID"},
		{header: "Source", maxWidth: 48},
		{header: "Status"},
		{header: "Failed"},
		{header: "Duration", align: alignRight},
		{header: "Updated"},
	}, rows)
}
