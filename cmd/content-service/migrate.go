// cmd/content-service/migrate.go
package main

import (
	"fmt"

	"content-workers/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.zapLog.Sync()

		ctx := cmd.Context()
		pg, err := rt.connectPostgres(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		if migrateStatusOnly {
			current, err := store.CurrentVersion(ctx, pg.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d\n", current, store.LatestVersion())
			return nil
		}

		applied, err := store.Migrate(ctx, pg.DB, rt.log)
		if err != nil {
			return err
		}
		rt.zapLog.Info("migrations complete", zap.Int("applied", applied), zap.Int("version", store.LatestVersion()))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "print the current schema version and exit")
}
