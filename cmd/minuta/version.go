package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Minuta %s\n", common.LoadVersionFromFile())
		fmt.Printf("  build:  %s\n", common.GetBuild())
		fmt.Printf("  commit: %s\n", common.GetGitCommit())
	},
}
