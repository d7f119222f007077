package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/watchlog/internal/export"
	"github.com/sells-group/watchlog/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upsert the categorized history into Postgres",
	Long:  "Copies the classify stage's artifact into the watch_history table of the Postgres database in store.database_url, keyed by video id.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		records, err := loadCategorized()
		if err != nil {
			return err
		}

		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		n, err := export.Postgres(ctx, pg.Pool(), records)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d records (%d rows affected) to %s\n", len(records), n, export.Table) //nolint:errcheck
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
