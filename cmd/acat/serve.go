package main

import (
	"github.com/spf13/cobra"

	"github.com/mkoziy/acat/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only biodiversity API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			srv, err := api.NewServer(db, a.cfg.Server, nil)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	bindFlags(a.v, cmd.Flags(), map[string]string{"server.addr": "addr"})
	return cmd
}
