// Package cmd implements fitlogctl, the operator command line for fitlog.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/logging"
)

// app carries state shared by the subcommands once the root command has run.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
	log        zerolog.Logger
}

// NewRootCommand builds the fitlogctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fitlogctl",
		Short: "Operate a fitlog deployment",
		Long: `fitlogctl applies schema migrations, issues bearer tokens for local use and
removes users together with their activities.

Configuration is read from --config (or FITLOG_CONFIG) and the same environment
variables the fitlog binaries use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if a.logLevel != "" {
				level = a.logLevel
			}
			a.cfg = cfg
			a.log = logging.New(cmd.ErrOrStderr(), level, cfg.Log.Format)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("FITLOG_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCommand(a),
		newTokenCommand(a),
		newDeleteUserCommand(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
