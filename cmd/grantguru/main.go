// grantguru: grant opportunity ingestion service.
//
// Discovers open federal grant opportunities, fetches their details, cleans
// them into a canonical shape, and reconciles them into the grants table.
//
//   - serve:  scheduled ingestion, daily archive purge, gRPC trigger API,
//     /health and /metrics
//   - ingest: one ingestion run from the command line
//   - purge:  delete grants archived past the retention threshold
//   - backup: export or import the grants table as JSON
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "grantguru",
		Short:         "GrantGuru - grant opportunity ingestion",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(backupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
