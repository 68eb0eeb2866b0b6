// Package cli implements the oscnode commands. The root command runs the
// tray agent; the others edit the settings a running agent watches.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensourcecitizen/oscnode/internal/config"
)

var (
	configPath string
	logLevel   string
	taskURL    string

	// embeddedConfig is set by Execute from the binary's embedded YAML.
	embeddedConfig []byte
)

var rootCmd = &cobra.Command{
	Use:   "oscnode",
	Short: "Open Source Citizen tray agent",
	Long: `oscnode contributes idle compute to open source from the system tray.

Run without a subcommand to start the agent. The pause, resume and logout
commands change the settings of a running agent, which picks them up
immediately.`,
	SilenceUsage: true,
	RunE:         runAgent,
}

// Execute runs the CLI with embedded as the built-in configuration layer.
func Execute(embedded []byte) error {
	embeddedConfig = embedded
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: auto-discover)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&taskURL, "task-url", "", "Override the URL the background task loads")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies the layered configuration and validates it.
func loadConfig() (*config.Config, error) {
	cli := config.CLIOverrides{LogLevel: logLevel, TaskURL: taskURL}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
