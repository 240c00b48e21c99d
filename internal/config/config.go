package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/proctree/internal/logging"
)

// EnvPrefix is the prefix of environment variables that override config
// keys, e.g. PROCTREE_SAMPLER_INTERVAL_MS for sampler.interval_ms.
const EnvPrefix = "PROCTREE"

// Config represents the complete proctree configuration
type Config struct {
	Sampler SamplerConfig `mapstructure:"sampler" yaml:"sampler"`
	TUI     TUIConfig     `mapstructure:"tui" yaml:"tui"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SamplerConfig controls the background sampling loop
type SamplerConfig struct {
	// IntervalMs is the pause between sampling passes in milliseconds (default: 1000)
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`
	// IdleTimeoutS bounds one idle wait in seconds (default: 10000)
	IdleTimeoutS int `mapstructure:"idle_timeout_s" yaml:"idle_timeout_s"`
	// Workers is the number of goroutines reading per-process details (default: 8)
	Workers int `mapstructure:"workers" yaml:"workers"`
	// StartActive starts sampling as soon as the monitor is created (default: true)
	StartActive bool `mapstructure:"start_active" yaml:"start_active"`
}

// Interval returns the sampling interval as a time.Duration
func (c *SamplerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// IdleTimeout returns the idle wait bound as a time.Duration
func (c *SamplerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutS) * time.Second
}

// TUIConfig controls the terminal UI behavior
type TUIConfig struct {
	// Theme is the color theme (default: "default")
	// Options: "default", "monokai", "dracula", "nord"
	Theme string `mapstructure:"theme" yaml:"theme"`
	// ShowCommand shows the full command line next to each process name
	ShowCommand bool `mapstructure:"show_command" yaml:"show_command"`
	// ExpandDepth is how many levels are expanded when a process first appears
	ExpandDepth int `mapstructure:"expand_depth" yaml:"expand_depth"`
	// RefreshOnReady applies snapshots as soon as the sampler announces them
	// instead of on the next UI tick
	RefreshOnReady bool `mapstructure:"refresh_on_ready" yaml:"refresh_on_ready"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logs are written (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory. Empty means $XDG_STATE_HOME/proctree.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// ResolveDir returns the directory logs are written to.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(xdg.StateHome, "proctree")
}

// Rotation returns the rotation settings for the log writer.
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			IntervalMs:   1000,
			IdleTimeoutS: 10000,
			Workers:      8,
			StartActive:  true,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowCommand:    true,
			ExpandDepth:    2,
			RefreshOnReady: true,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("sampler.interval_ms", defaults.Sampler.IntervalMs)
	viper.SetDefault("sampler.idle_timeout_s", defaults.Sampler.IdleTimeoutS)
	viper.SetDefault("sampler.workers", defaults.Sampler.Workers)
	viper.SetDefault("sampler.start_active", defaults.Sampler.StartActive)

	viper.SetDefault("tui.theme", defaults.TUI.Theme)
	viper.SetDefault("tui.show_command", defaults.TUI.ShowCommand)
	viper.SetDefault("tui.expand_depth", defaults.TUI.ExpandDepth)
	viper.SetDefault("tui.refresh_on_ready", defaults.TUI.RefreshOnReady)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Setup registers defaults, points viper at cfgFile (or the standard
// search path when empty), binds PROCTREE_* environment variables and
// reads the file. A missing file is not an error.
func Setup(cfgFile string) error {
	SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "proctree")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
