package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkoziy/acat/internal/database"
	"github.com/mkoziy/acat/internal/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	var rollback, status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := database.Open(a.cfg.Driver(), a.cfg.Database.DSN, a.cfg.Database.Debug)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			switch {
			case status:
				applied, pending, err := migrations.Status(ctx, db)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, name := range applied {
					fmt.Fprintf(out, "applied  %s\n", name)
				}
				for _, name := range pending {
					fmt.Fprintf(out, "pending  %s\n", name)
				}
				return nil
			case rollback:
				return migrations.Rollback(ctx, db)
			default:
				return migrations.RunMigrations(ctx, db)
			}
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")
	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	cmd.MarkFlagsMutuallyExclusive("rollback", "status")
	return cmd
}
