package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/colby-usm/GrantGuru/internal/maintenance"
)

var backupOut string

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import the grants table as JSON",
	}
	cmd.AddCommand(backupExportCmd())
	cmd.AddCommand(backupImportCmd())
	return cmd
}

func backupExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored grant to a JSON backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			w := cmd.OutOrStdout()
			if backupOut != "" && backupOut != "-" {
				f, err := os.Create(backupOut)
				if err != nil {
					return fmt.Errorf("create %s: %w", backupOut, err)
				}
				defer f.Close()
				w = f
			}

			n, err := maintenance.NewBackup(st).Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d grants\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&backupOut, "out", "o", "", "output file (default stdout)")
	return cmd
}

func backupImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Restore grants from a JSON backup; \"-\" reads stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := maintenance.NewBackup(st).Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d grants (%d new, %d updated)\n", res.Applied(), res.Inserted, res.Updated)
			return nil
		},
	}
}
