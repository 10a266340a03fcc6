package main

import (
	"fmt"

	"github.com/holysaw/holysaw/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of holysaw",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "holysaw version %s (%s)\n", version.String(), version.GoVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
