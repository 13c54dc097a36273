package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/db"
	"github.com/spf13/cobra"
)

type reportOptions struct {
	samples bool
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report <database> [run-id]",
		Short: "Show runs recorded by poll --record",
		Long: `List the runs recorded in a database, or summarize one run.

Examples:
  hitreq report polls.db
  hitreq report polls.db 5f0c6f3e-0c1e-4a8e-9c43-8d1c0f3b6a51 --samples`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := db.Open(args[0])
			if err != nil {
				return withExitCode(ExitConfigError, err)
			}
			defer rec.Close()

			if len(args) == 1 {
				return listRuns(cmd, rec)
			}
			return reportRun(cmd, rec, args[1], opts.samples)
		},
	}
	cmd.Flags().BoolVar(&opts.samples, "samples", false, "List every sample of the run")
	return cmd
}

func listRuns(cmd *cobra.Command, rec *db.Recorder) error {
	result, err := rec.Query(`
		SELECT run_id, COUNT(*) AS n, MIN(started_at) AS started
		FROM samples GROUP BY run_id ORDER BY started`)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(result.Rows) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, row := range result.Rows {
		started, _ := row["started"].(int64)
		n, _ := row["n"].(int64)
		fmt.Fprintf(out, "%s  %s  %d samples\n", row["run_id"],
			time.UnixMicro(started).Format(time.RFC3339), n)
	}
	return nil
}

func reportRun(cmd *cobra.Command, rec *db.Recorder, runID string, listSamples bool) error {
	summary, err := rec.Summarize(runID)
	if err != nil {
		return err
	}
	if summary.Count == 0 {
		return withExitCode(ExitFailure, fmt.Errorf("no samples recorded for run %s", runID))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", runID)
	fmt.Fprintf(out, "Samples:  %d\n", summary.Count)
	fmt.Fprintf(out, "Failures: %d\n", summary.Failures)

	statuses := make([]int, 0, len(summary.Statuses))
	for status := range summary.Statuses {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		label := fmt.Sprint(status)
		if status == 0 {
			label = "error"
		}
		fmt.Fprintf(out, "  %s: %d\n", label, summary.Statuses[status])
	}

	if !listSamples {
		return nil
	}
	samples, err := rec.Samples(cmd.Context(), runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, s := range samples {
		if s.Failed() {
			fmt.Fprintf(out, "#%-5d ERR  %-8s %s\n", s.Seq, s.Latency.Round(time.Microsecond), s.Error)
			continue
		}
		fmt.Fprintf(out, "#%-5d %d  %-8s %dB\n", s.Seq, s.Status, s.Latency.Round(time.Microsecond), s.Bytes)
	}
	return nil
}
