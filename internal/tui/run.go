package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/event"
)

// Run shows m full screen until the user quits, ctx is done or the sampler
// exits (done is closed). Snapshot announcements and config reloads
// published on bus are forwarded to the program. It returns the model's
// final error, if any. Cancelling ctx is a normal exit.
func Run(ctx context.Context, m Model, bus *event.Bus, done <-chan struct{}) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if bus != nil {
		readyID := bus.Subscribe(event.TypeSnapshotReady, func(event.Event) {
			p.Send(SnapshotReadyMsg{})
		})
		defer bus.Unsubscribe(readyID)

		configID := bus.Subscribe(event.TypeConfigChanged, func(e event.Event) {
			if ce, ok := e.(event.ConfigChangedEvent); ok {
				p.Send(ThemeChangedMsg{Theme: ce.Theme})
			}
		})
		defer bus.Unsubscribe(configID)
	}

	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-done:
			p.Send(SamplerStoppedMsg{})
		case <-exited:
		}
	}()

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
