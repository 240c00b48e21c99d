package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Change describes one re-read of the config file.
type Change struct {
	Path   string
	Config *Config
	// Err is set when the new file does not load or validate; Config is
	// nil in that case and the previous configuration should stay in force.
	Err error
}

// Watch re-reads the config file whenever it is written and passes the
// result to fn. fn runs on viper's watcher goroutine. It reports false,
// and watches nothing, when no config file was read.
func Watch(fn func(Change)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		handleChange(e, fn)
	})
	viper.WatchConfig()
	return true
}

func handleChange(e fsnotify.Event, fn func(Change)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	cfg, err := Load()
	fn(Change{Path: e.Name, Config: cfg, Err: err})
}
