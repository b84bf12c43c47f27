package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/deps"
	"scribe/internal/jobs"
	"scribe/internal/preflight"
)

type statusReport struct {
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Checks       []api.CheckResult      `json:"checks"`
	JobCounts    map[string]int         `json:"jobCounts"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkProviders bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show dependency, directory, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if checkProviders {
				results = append(results, preflight.CheckProviders(cmd.Context(), cfg)...)
			}

			orch, err := ctx.jobsOnly(cmd.Context())
			if err != nil {
				return err
			}
			list, err := orch.List(cmd.Context(), jobs.ListFilter{})
			if err != nil {
				return err
			}

			statuses := deps.Check(cfg)
			report := statusReport{
				Dependencies: api.FromDependencies(statuses),
				Checks:       api.FromChecks(results),
				JobCounts:    api.CountByStatus(list),
			}
			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderStatus(cmd, report)
			}

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			if preflight.Failed(results) {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkProviders, "check-providers", false, "Probe the configured transcription and generation providers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()

	rows := make([][]string, 0, len(report.Dependencies)+len(report.Checks))
	for _, dep := range report.Dependencies {
		state := "ok"
		if !dep.Available {
			state = "missing"
		}
		rows = append(rows, []string{dep.Name, state, dep.Detail})
	}
	for _, check := range report.Checks {
		state := "ok"
		if !check.Passed {
			state = "failed"
		}
		rows = append(rows, []string{check.Name, state, check.Detail})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "Check"},
		{header: "State"},
		{header: "Detail", maxWidth: 64},
	}, rows))

	counts := make([][]string, 0, len(report.JobCounts))
	for _, status := range jobs.AllStatuses() {
		counts = append(counts, []string{string(status), fmt.Sprint(report.JobCounts[string(status)])})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "Status"},
		{header: "Jobs", align: alignRight},
	}, counts))
}
