// Package styles holds the lipgloss palettes and styles of the process
// tree UI.
package styles

import "github.com/charmbracelet/lipgloss"

// CPU percentage thresholds for the load bands.
const (
	cpuMidThreshold  = 25
	cpuHighThreshold = 75
)

// Styles is the set of lipgloss styles derived from one palette.
type Styles struct {
	Palette *ColorPalette

	Title    lipgloss.Style
	Header   lipgloss.Style
	Row      lipgloss.Style
	Selected lipgloss.Style
	Guide    lipgloss.Style
	PID      lipgloss.Style
	Command  lipgloss.Style
	Match    lipgloss.Style
	Footer   lipgloss.Style
	Active   lipgloss.Style
	Paused   lipgloss.Style
	Error    lipgloss.Style

	cpuLow  lipgloss.Style
	cpuMid  lipgloss.Style
	cpuHigh lipgloss.Style
}

// New builds the styles for palette p.
func New(p *ColorPalette) *Styles {
	s := &Styles{Palette: p}

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary)

	s.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Muted).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(p.Border)

	s.Row = lipgloss.NewStyle().Foreground(p.Text)

	s.Selected = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary).
		Background(p.Surface)

	s.Guide = lipgloss.NewStyle().Foreground(p.Border)
	s.PID = lipgloss.NewStyle().Foreground(p.Muted)
	s.Command = lipgloss.NewStyle().Foreground(p.Muted).Italic(true)

	s.Match = lipgloss.NewStyle().
		Foreground(p.MatchFg).
		Background(p.MatchBg)

	s.Footer = lipgloss.NewStyle().Foreground(p.Muted)

	s.Active = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Surface).
		Background(p.Secondary).
		Padding(0, 1)

	s.Paused = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Surface).
		Background(p.Warning).
		Padding(0, 1)

	s.Error = lipgloss.NewStyle().Foreground(p.Error)

	s.cpuLow = lipgloss.NewStyle().Foreground(p.CPULow)
	s.cpuMid = lipgloss.NewStyle().Foreground(p.CPUMid)
	s.cpuHigh = lipgloss.NewStyle().Foreground(p.CPUHigh)

	return s
}

// ForTheme builds the styles for a named theme, falling back to the
// default palette for unknown names.
func ForTheme(name string) *Styles {
	return New(GetPalette(ThemeName(name)))
}

// CPUColor returns the load band color for a percentage of total cpu.
func (s *Styles) CPUColor(pct uint8) lipgloss.Color {
	switch {
	case pct >= cpuHighThreshold:
		return s.Palette.CPUHigh
	case pct >= cpuMidThreshold:
		return s.Palette.CPUMid
	default:
		return s.Palette.CPULow
	}
}

// CPU returns the style for a percentage of total cpu.
func (s *Styles) CPU(pct uint8) lipgloss.Style {
	switch {
	case pct >= cpuHighThreshold:
		return s.cpuHigh
	case pct >= cpuMidThreshold:
		return s.cpuMid
	default:
		return s.cpuLow
	}
}
