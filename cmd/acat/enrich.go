package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mkoziy/acat/internal/ratelimit"
	"github.com/mkoziy/acat/internal/sources/gbif"
)

func newEnrichNamesCmd(a *app) *cobra.Command {
	var opts gbif.EnrichOptions

	cmd := &cobra.Command{
		Use:   "enrich-names",
		Short: "Fill missing species common names from GBIF",
		Long: `Look up GBIF vernacular names for every species without a common name and
store the first match in the configured language order. Only common_name is
updated; the taxonomy stays as imported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			rl := a.cfg.GBIF.RateLimit
			timeout := a.cfg.GBIF.Timeout
			if timeout <= 0 {
				timeout = gbif.DefaultTimeout
			}
			client := gbif.NewClient(ratelimit.NewLimiter(rl),
				gbif.WithHTTPClient(&http.Client{Timeout: timeout}),
				gbif.WithBaseURL(a.cfg.GBIF.BaseURL),
				gbif.WithMaxRetries(ratelimit.ApplyDefaults(rl).MaxRetries),
			)
			opts.Languages = a.cfg.GBIF.Languages

			stats, err := gbif.NewEnricher(db, client).Run(ctx, opts)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %d species: %d named, %d without match, %d lookup errors\n",
					stats.Checked, stats.Updated, stats.NotFound, stats.Errors)
				if opts.DryRun {
					fmt.Fprintln(cmd.OutOrStdout(), "DRY RUN: no common names were written")
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "look up names without writing them")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of species to look up (0 = all)")
	return cmd
}
