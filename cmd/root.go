package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/config"
	"github.com/sells-group/watchlog/internal/metrics"
)

var (
	cfg *config.Config
	rec *metrics.Recorder

	windowStart string
	windowEnd   string

	// now is the reference time for relative section labels and the default
	// window.
	now = time.Now
)

var rootCmd = &cobra.Command{
	Use:   "watchlog",
	Short: "Watch history analytics pipeline",
	Long:  "Scrapes a signed-in watch history page, then extracts, deduplicates, enriches, and categorizes the videos watched in a date window.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		rec = metrics.New()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushMetrics()
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&windowStart, "start", "", "window start date YYYY-MM-DD (default: first day of last month)")
	rootCmd.PersistentFlags().StringVar(&windowEnd, "end", "", "window end date YYYY-MM-DD (default: today when --start is set, else last day of last month)")
}

// flushMetrics writes the textfile when one is configured. PersistentPostRun
// is skipped when RunE fails, so main calls this on the error path too.
func flushMetrics() {
	if cfg == nil {
		return
	}
	if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		zap.L().Warn("metrics textfile not written", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		flushMetrics()
		_ = zap.L().Sync()
		os.Exit(1)
	}
}
