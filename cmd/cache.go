package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/classify"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or correct the channel category cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cached channel categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := classify.LoadStore(cachePath())
		if err != nil {
			return err
		}
		label, _ := cmd.Flags().GetString("label")
		formatCache(cmd.OutOrStdout(), st, label)
		return nil
	},
}

var cacheSetCmd = &cobra.Command{
	Use:   "set <channel> <label>",
	Short: "Override the category of one channel",
	Long:  "Records label for channel in the cache file, so later classify runs use it without asking the model. The label must be one of classify.labels.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		labels, err := classify.NewLabelSet(cfg.Classify.Labels, cfg.Classify.FallbackLabel)
		if err != nil {
			return err
		}
		label, ok := labels.Canonical(args[1])
		if !ok {
			return eris.Errorf("cache set: %q is not one of %v", args[1], labels.Labels())
		}

		st, err := classify.LoadStore(cachePath())
		if err != nil {
			return err
		}
		prev, had := st.Get(args[0])
		st.Put(args[0], label)
		if _, err := st.Flush(); err != nil {
			return err
		}

		if had && prev != label {
			zap.L().Info("cache: channel relabeled",
				zap.String("channel", args[0]),
				zap.String("from", prev),
				zap.String("to", label),
			)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], label) //nolint:errcheck
		return nil
	},
}

// formatCache lists channel labels, optionally only those with label.
func formatCache(w io.Writer, st *classify.Store, label string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tCATEGORY") //nolint:errcheck
	for _, ch := range st.Channels() {
		l, _ := st.Get(ch)
		if label != "" && l != label {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", ch, l) //nolint:errcheck
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	cacheShowCmd.Flags().String("label", "", "only list channels with this category")

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheSetCmd)
	rootCmd.AddCommand(cacheCmd)
}
