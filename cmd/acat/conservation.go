package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
)

func newConservationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conservation",
		Short: "Show or set the conservation listings of a species",
	}
	cmd.AddCommand(newConservationSetCmd(a), newConservationShowCmd(a))
	return cmd
}

func newConservationSetCmd(a *app) *cobra.Command {
	var (
		rlcvs, cites, iucn, notes string
		endemic                   bool
	)

	cmd := &cobra.Command{
		Use:   "set TAXON_KEY",
		Short: "Replace the conservation listings of a species",
		Long: `Store the RLCVS, CITES and IUCN listings of the species with TAXON_KEY.
Listings are kept apart from the taxonomy, so later imports leave them as set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			taxonKey, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid taxon key %q", args[0])
			}

			status := &models.ConservationStatus{
				RLCVSStatus:   models.RLCVSStatus(rlcvs),
				CITESStatus:   models.CITESStatus(cites),
				IUCNStatus:    models.IUCNStatus(iucn),
				EndemicToACAT: endemic,
				Notes:         notes,
			}
			if err := status.Validate(); err != nil {
				return err
			}

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			sp, err := lookupSpecies(cmd, db, taxonKey)
			if err != nil {
				return err
			}
			status.SpeciesID = sp.ID
			if err := repositories.UpsertConservationStatus(ctx, db, status); err != nil {
				return fmt.Errorf("store conservation status: %w", err)
			}

			printConservation(cmd, sp, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&rlcvs, "rlcvs", string(models.RLCVSNotListed), "RLCVS listing: PE, PRA or NR")
	cmd.Flags().StringVar(&cites, "cites", string(models.CITESNotListed), "CITES appendix: AI, AII, AIII or NONE")
	cmd.Flags().StringVar(&iucn, "iucn", string(models.IUCNNotEvaluated), "IUCN category: CR, EN, VU, NT, LC, DD or NE")
	cmd.Flags().BoolVar(&endemic, "endemic", false, "species is endemic to the conservation area")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	return cmd
}

func newConservationShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show TAXON_KEY",
		Short: "Print the conservation listings of a species",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			taxonKey, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid taxon key %q", args[0])
			}

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			sp, err := lookupSpecies(cmd, db, taxonKey)
			if err != nil {
				return err
			}
			status, err := repositories.GetConservationStatus(ctx, db, sp.ID)
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no conservation status recorded\n", sp.DisplayName())
				return nil
			}
			if err != nil {
				return fmt.Errorf("load conservation status: %w", err)
			}

			printConservation(cmd, sp, status)
			return nil
		},
	}
}

func lookupSpecies(cmd *cobra.Command, db bun.IDB, taxonKey int64) (*models.Species, error) {
	sp, err := repositories.GetSpeciesByTaxonKey(cmd.Context(), db, taxonKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("species with taxon key %d not found", taxonKey)
	}
	if err != nil {
		return nil, fmt.Errorf("find species %d: %w", taxonKey, err)
	}
	return sp, nil
}

func printConservation(cmd *cobra.Command, sp *models.Species, cs *models.ConservationStatus) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: RLCVS=%s CITES=%s IUCN=%s endemic=%t threatened=%t\n",
		sp.DisplayName(), cs.RLCVSStatus, cs.CITESStatus, cs.IUCNStatus, cs.EndemicToACAT, cs.IsThreatened())
}
