package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "payledger %s (%s %s/%s)\n",
			appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
