package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// populated at build time via -ldflags
var (
	version = "0.0.0"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "show version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("version: %s\n", version)
		fmt.Printf(" commit: %s\n", commit)
		fmt.Printf("   date: %s\n", date)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
