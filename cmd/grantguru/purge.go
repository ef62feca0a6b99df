package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colby-usm/GrantGuru/internal/maintenance"
)

var purgeRetentionDays int

func purgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete grants whose archive date is past the retention threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("retention-days") {
				cfg.PurgeRetentionDays = purgeRetentionDays
			}

			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			removed, err := maintenance.NewPurger(st, cfg.PurgeRetentionDays).Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d archived grants\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&purgeRetentionDays, "retention-days", 0, "keep grants this many days past their archive date")
	return cmd
}
