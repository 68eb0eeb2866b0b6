package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensourcecitizen/oscnode/internal/app"
	"github.com/opensourcecitizen/oscnode/internal/config"
	"github.com/opensourcecitizen/oscnode/internal/lifecycle"
	"github.com/opensourcecitizen/oscnode/internal/store"
)

// Replaced in tests.
var (
	settingsPath = config.SettingsPath
	lockPath     = config.LockPath
	now          = time.Now
)

var pauseFor time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the agent is contributing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		pid, running := app.Running(cmd.Context(), lockPath())
		printStatus(cmd.OutOrStdout(), lifecycle.LoadState(st), pid, running, now())
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause contributing",
	Long: `Pause contributing until resumed, or for a fixed time with --for.

A running agent stops its task immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pauseFor < 0 {
			return fmt.Errorf("--for must not be negative (got: %s)", pauseFor)
		}
		return updateState(cmd.Context(), cmd.OutOrStdout(), func(s lifecycle.State) lifecycle.State {
			s.Paused = true
			s.ResumeAt = nil
			if pauseFor > 0 {
				at := now().Add(pauseFor).Truncate(time.Second)
				s.ResumeAt = &at
			}
			return s
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume contributing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateState(cmd.Context(), cmd.OutOrStdout(), func(s lifecycle.State) lifecycle.State {
			s.Paused = false
			s.ResumeAt = nil
			return s
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Disconnect the citizen identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateState(cmd.Context(), cmd.OutOrStdout(), func(s lifecycle.State) lifecycle.State {
			s.Recognized = false
			s.Identity = ""
			return s
		})
	},
}

func init() {
	pauseCmd.Flags().DurationVar(&pauseFor, "for", 0, "Pause length, e.g. 1h, 3h, 24h (default: until resumed)")
}

func openStore() (*store.Store, error) {
	st, err := store.Open(settingsPath(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	return st, nil
}

// updateState applies edit to the stored state and prints the result.
func updateState(ctx context.Context, w io.Writer, edit func(lifecycle.State) lifecycle.State) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	next := edit(lifecycle.LoadState(st))
	if err := lifecycle.SaveState(st, next); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	pid, running := app.Running(ctx, lockPath())
	printStatus(w, lifecycle.LoadState(st), pid, running, now())
	return nil
}

func printStatus(w io.Writer, s lifecycle.State, pid int, running bool, at time.Time) {
	switch {
	case !s.Paused:
		fmt.Fprintln(w, "Status:   contributing")
	case s.ResumeAt != nil:
		fmt.Fprintf(w, "Status:   paused until %s (%s left)\n",
			s.ResumeAt.Local().Format(time.Kitchen),
			s.ResumeAt.Sub(at).Round(time.Minute))
	default:
		fmt.Fprintln(w, "Status:   paused")
	}

	if s.Recognized {
		fmt.Fprintf(w, "Citizen:  %s\n", s.Identity)
	} else {
		fmt.Fprintln(w, "Citizen:  not connected")
	}

	if running {
		fmt.Fprintf(w, "Agent:    running (pid %d)\n", pid)
	} else {
		fmt.Fprintln(w, "Agent:    not running")
	}
}
