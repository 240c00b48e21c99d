package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/proctree/internal/config"
	"github.com/Iron-Ham/proctree/internal/event"
	"github.com/Iron-Ham/proctree/internal/monitor"
	"github.com/Iron-Ham/proctree/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the live process tree",
	Long: `Show the live process tree full screen.

Keys:
  ↑/↓  move      →/←  expand/collapse
  p    pause     /    filter by name (glob)
  ?    help      q    quit

Theme changes in the config file are applied while running.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("watch needs an interactive terminal; use 'proctree stream' or 'proctree snapshot' instead")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	bus := event.NewBus(logger)
	mon, err := monitor.New(monitor.Options{
		Enumerator:      newEnumerator(cfg),
		Bus:             bus,
		Logger:          logger,
		Interval:        cfg.Sampler.Interval(),
		IdleTimeout:     cfg.Sampler.IdleTimeout(),
		CheckInvariants: checkInvariants(cfg),
		Active:          cfg.Sampler.StartActive,
	})
	if err != nil {
		return err
	}
	defer func() { _ = mon.Close() }()

	watching := config.Watch(func(c config.Change) {
		if c.Err != nil {
			logger.Warn("ignoring invalid config change", "path", c.Path, "error", c.Err)
			return
		}
		bus.Publish(event.NewConfigChangedEvent(c.Path, c.Config.TUI.Theme))
	})
	logger.Debug("starting watch", "config_reload", watching)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := tui.New(mon, tui.Options{
		Theme:          cfg.TUI.Theme,
		ShowCommand:    cfg.TUI.ShowCommand,
		ExpandDepth:    cfg.TUI.ExpandDepth,
		RefreshOnReady: cfg.TUI.RefreshOnReady,
		Logger:          logger,
	})
	return tui.Run(ctx, model, bus, mon.Done())
}
