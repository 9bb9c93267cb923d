package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rprtr258/block-cpu/internal/core"
)

var _cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "print " + core.AppName + " version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), core.Version)
		return nil
	},
}
