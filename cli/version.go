package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version metadata, overridden at build time via -ldflags.
var (
	Version = "0.1.0"
	Commit  = "dev"
	Date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the concierge version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "concierge %s\n", Version)
		fmt.Fprintf(out, "  commit: %s\n", Commit)
		fmt.Fprintf(out, "  built:  %s\n", Date)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
