package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/monitoring"
	"github.com/sells-group/watchlog/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.") //nolint:errcheck
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its stage results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run and stage health over a lookback window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st).Collect(ctx, since)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		formatSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

// formatSnapshot writes run totals followed by a per-stage table.
func formatSnapshot(w io.Writer, snap *monitoring.Snapshot) {
	fmt.Fprintf(w, "Runs: %d  complete: %d  failed: %d  running: %d  fail rate: %.1f%%\n", //nolint:errcheck
		snap.Total, snap.Complete, snap.Failed, snap.Running, snap.FailRate*100)
	if snap.LastFailure != "" {
		fmt.Fprintf(w, "Last failure: %s\n", snap.LastFailure) //nolint:errcheck
	}
	if len(snap.Stages) == 0 {
		return
	}

	fmt.Fprintln(w) //nolint:errcheck
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tRUNS\tFAILED\tAVG ROWS\tSKIPPED\tAVG DURATION") //nolint:errcheck
	for _, s := range snap.Stages {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\t%d\t%dms\n", s.Stage, s.Runs, s.Failed, s.AvgRows, s.Skipped, s.AvgDurationMs) //nolint:errcheck
	}
	tw.Flush() //nolint:errcheck
}

// formatRunsList writes a tabular summary of runs.
func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTAGES\tWINDOW\tCREATED\tERROR") //nolint:errcheck
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
			id,
			r.Status,
			strings.Join(r.Stages, ","),
			r.Window,
			r.CreatedAt.Format("2006-01-02 15:04"),
			truncate(r.Error, 60),
		)
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 20, "maximum runs to show")
	runsListCmd.Flags().Int("offset", 0, "runs to skip")

	runsStatsCmd.Flags().Duration("since", 0, "only runs created within this duration (e.g. 168h); 0 for all")
	runsStatsCmd.Flags().Bool("json", false, "print the snapshot as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}
