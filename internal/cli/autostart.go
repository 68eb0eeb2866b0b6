package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensourcecitizen/oscnode/internal/autostart"
)

// Replaced in tests.
var (
	newAutostart = autostart.New
	execPath     = autostart.ExecPath
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting the agent at login",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start the agent at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := execPath()
		if err != nil {
			return err
		}
		mgr := newAutostart()
		if err := mgr.Install(p); err != nil {
			return fmt.Errorf("failed to enable autostart: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart enabled (%s).\n", mgr.ServiceName())
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Do not start the agent at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newAutostart()
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to disable autostart: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled.")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the agent starts at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		installed, err := newAutostart().IsInstalled()
		if err != nil {
			return err
		}
		if installed {
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart: enabled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart: disabled")
		}
		return nil
	},
}

func init() {
	autostartCmd.AddCommand(autostartDisableCmd)
	autostartCmd.AddCommand(autostartEnableCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
}
