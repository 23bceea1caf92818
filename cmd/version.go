package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tern-data/sqlport/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqlport %s (commit %s, built %s)\n",
			version.AppVersion, version.GitCommit, version.BuildTime)
	},
}
