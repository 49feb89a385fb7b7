package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/rux"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of rux",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rux version %s\n", strings.TrimSpace(rux.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
