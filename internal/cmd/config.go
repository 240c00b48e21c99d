package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/proctree/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify proctree configuration",
	Long: `View or modify proctree configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  proctree config set sampler.interval_ms 500
  proctree config set tui.theme nord

Valid keys:
  sampler.interval_ms     - Pause between samples in milliseconds
  sampler.idle_timeout_s  - Longest idle wait in seconds
  sampler.workers         - Goroutines reading process details
  sampler.start_active    - Start sampling immediately (true/false)
  tui.theme               - Options: default, monokai, dracula, nord
  tui.show_command        - Show command lines (true/false)
  tui.expand_depth        - Levels expanded by default
  tui.refresh_on_ready    - Apply snapshots as soon as they are ready (true/false)
  logging.enabled         - Write a log file (true/false)
  logging.level           - Options: debug, info, warn, error
  logging.dir             - Log directory`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/proctree/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# config file: (none - using defaults)")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// settableKeys maps each key accepted by 'config set' to its value kind.
var settableKeys = map[string]string{
	"sampler.interval_ms":    "int",
	"sampler.idle_timeout_s": "int",
	"sampler.workers":        "int",
	"sampler.start_active":   "bool",
	"tui.theme":              "string",
	"tui.show_command":       "bool",
	"tui.expand_depth":       "int",
	"tui.refresh_on_ready":   "bool",
	"logging.enabled":        "bool",
	"logging.level":          "string",
	"logging.dir":            "string",
}

// parseSetting converts value to the kind registered for key.
func parseSetting(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'proctree config set --help' to see valid keys", key)
	}

	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	}

	switch key {
	case "tui.theme":
		if !config.IsValidTheme(value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidThemes(), ", "))
		}
	case "logging.level":
		if !config.IsValidLogLevel(value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	value, err := parseSetting(key, raw)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, value)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := appFs.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, value)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// configTemplate is written by 'config init'. Its values match Default.
const configTemplate = `# proctree configuration

# Background sampling
sampler:
  # Pause between samples in milliseconds
  interval_ms: 1000
  # Longest single idle wait in seconds while paused
  idle_timeout_s: 10000
  # Goroutines reading per-process details
  workers: 8
  # Start sampling as soon as the monitor opens
  start_active: true

# Terminal UI
tui:
  # Options: default, monokai, dracula, nord
  theme: default
  # Show the command line next to the process name
  show_command: true
  # Levels expanded when a process first appears
  expand_depth: 2
  # Apply snapshots as soon as they are ready instead of on the next tick
  refresh_on_ready: true

# Debug logging
logging:
  enabled: false
  # Options: debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/proctree
  dir: ""
  # Rotate after this many megabytes
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	exists, err := afero.Exists(appFs, configFile)
	if err != nil {
		return fmt.Errorf("failed to check config file: %w", err)
	}
	if exists && !configInitForce {
		return fmt.Errorf("config file already exists at %s\nUse --force to overwrite or 'proctree config set' to modify values", configFile)
	}

	if err := appFs.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(appFs, configFile, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize proctree's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_SAMPLER_INTERVAL_MS)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
