package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/opensourcecitizen/oscnode/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "oscnode %s\n", buildinfo.Version)
		fmt.Fprintf(out, "  Commit   %s\n", buildinfo.CommitHash)
		fmt.Fprintf(out, "  Built    %s\n", buildinfo.BuildDate)
		fmt.Fprintf(out, "  OS/Arch  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "  Go       %s\n", runtime.Version())
	},
}
