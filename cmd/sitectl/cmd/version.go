package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/sitecraft/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build time of sitectl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput() {
			return printJSON(os.Stdout, config.GetBuildInfo("sitectl"))
		}
		fmt.Println(config.GetBuildInfo("sitectl"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
