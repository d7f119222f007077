package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/artifact"
	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/pipeline"
	"github.com/sells-group/watchlog/internal/report"
)

var (
	reportTop      int
	reportJSON     bool
	reportWorkbook string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the categorized history by category, channel, and language",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		records, err := loadCategorized()
		if err != nil {
			return err
		}

		top := reportTop
		if top <= 0 {
			top = cfg.Report.TopN
		}
		s := report.Summarize(records)

		workbook := reportWorkbook
		if workbook == "" {
			workbook = cfg.Report.Workbook
		}
		if workbook != "" {
			if err := report.WriteWorkbook(workbook, s, top); err != nil {
				return err
			}
			zap.L().Info("report: workbook written", zap.String("path", workbook))
		}

		out := cmd.OutOrStdout()
		if reportJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		formatSummary(out, s, top)
		return nil
	},
}

// loadCategorized reads the classify stage's artifact.
func loadCategorized() ([]model.CategorizedRecord, error) {
	path := filepath.Join(cfg.Data.Dir, pipeline.Output(pipeline.StageClassify))
	rows, err := artifact.Read[artifact.CategorizedRow](path)
	if err != nil {
		if artifact.IsMissing(err) {
			return nil, &pipeline.MissingArtifactError{Stage: "report", Path: path, Upstream: pipeline.StageClassify}
		}
		return nil, err
	}
	records, err := artifact.ToCategorized(rows)
	if err != nil {
		return nil, eris.Wrap(err, "report: decode categorized history")
	}
	return records, nil
}

func formatSummary(w io.Writer, s report.Summary, top int) {
	fmt.Fprintf(w, "Videos: %d  Watch time: %s\n\n", s.Total, report.FormatDuration(s.TotalSeconds)) //nolint:errcheck

	formatBuckets(w, "CATEGORY", s.ByCategory)
	fmt.Fprintln(w) //nolint:errcheck
	formatBuckets(w, "CHANNEL", report.TopByCount(s.ByChannel, top))
	fmt.Fprintln(w) //nolint:errcheck
	formatBuckets(w, "CHANNEL (BY TIME)", report.TopByTime(s.ByChannel, top))
	fmt.Fprintln(w) //nolint:errcheck
	formatBuckets(w, "LANGUAGE", s.ByLanguage)
}

func formatBuckets(w io.Writer, title string, buckets []report.Bucket) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tVIDEOS\tWATCH TIME\n", title) //nolint:errcheck
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Name, b.Count, report.FormatDuration(b.Seconds)) //nolint:errcheck
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "channels to list (default: report.top_n)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the summary as JSON")
	reportCmd.Flags().StringVar(&reportWorkbook, "workbook", "", "also write an xlsx workbook to this path")
	rootCmd.AddCommand(reportCmd)
}
