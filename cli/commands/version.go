package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carton-db/carton/cli/internal/ui"
	"github.com/carton-db/carton/cli/internal/update"
	"github.com/carton-db/carton/cli/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE:  instrumented("version", runVersion),
}

var (
	versionFull  bool
	versionCheck bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "print build details")
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	if versionFull {
		ui.PrintBox("carton", info.FullString())
	} else {
		fmt.Println(info.String())
	}

	if versionCheck {
		return update.CheckForUpdates(info.Version)
	}
	return nil
}
