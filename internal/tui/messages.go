package tui

import "time"

type tickMsg time.Time

// SnapshotReadyMsg tells the model that the sampler published a snapshot.
type SnapshotReadyMsg struct{}

// ThemeChangedMsg switches the color theme.
type ThemeChangedMsg struct {
	Theme string
}

// SamplerStoppedMsg reports that the sampler exited underneath the UI.
type SamplerStoppedMsg struct{}
