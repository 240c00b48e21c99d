// Package cmd holds the proctree command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/proctree/internal/config"
	"github.com/Iron-Ham/proctree/internal/logging"
	"github.com/Iron-Ham/proctree/internal/process"
)

var rootCmd = &cobra.Command{
	Use:   "proctree",
	Short: "Live process tree monitor",
	Long: `proctree samples the process table in the background and keeps a
hierarchical view of it up to date, applying only the rows that changed
since the previous sample.`,
	SilenceUsage: true,
}

// appFs is the filesystem used for files proctree writes itself.
var appFs = afero.NewOsFs()

// newEnumerator creates the process table source. Tests replace it.
var newEnumerator = func(cfg *config.Config) process.Enumerator {
	return process.NewSystemEnumerator(cfg.Sampler.Workers)
}

// SetVersionInfo sets the string printed by --version.
func SetVersionInfo(version, commit, date string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/proctree/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if err := config.Setup(viper.GetString("config")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read config: %v\n", err)
	}
}

// loadConfig returns the validated configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// checkInvariants reports whether the monitor should verify the live tree
// after every refresh. It follows debug logging so that a violation is
// logged with the passes leading up to it.
func checkInvariants(cfg *config.Config) bool {
	return cfg.Logging.Level == "debug"
}

// newLogger opens the configured log, or a discarding logger when logging
// is disabled.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(cfg.Logging.ResolveDir(), cfg.Logging.Level, cfg.Logging.Rotation())
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}
