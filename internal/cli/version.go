package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/dbhelper/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display dbhelper version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.FullInfo())
	},
}
