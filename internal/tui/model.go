package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/logging"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/sampler"
	"github.com/Iron-Ham/proctree/internal/tree"
	"github.com/Iron-Ham/proctree/internal/tui/styles"
)

// DefaultTickInterval is how often the model polls for a waiting snapshot
// and redraws the footer.
const DefaultTickInterval = 250 * time.Millisecond

// Lines taken by everything except the tree body: title, column header
// with its rule, status line and help line.
const chromeLines = 5

// Source is the monitor surface the model drives. *monitor.Monitor
// implements it.
type Source interface {
	Tree() *tree.Tree
	Active() bool
	SetActive(active bool) error
	CanRefresh() bool
	ApplyPendingRefresh() error
	Stats() sampler.Stats
}

// Options configures the model.
type Options struct {
	Theme       string
	ShowCommand bool
	// ExpandDepth is how many levels are open before the user touches them.
	ExpandDepth int
	// RefreshOnReady applies a snapshot as soon as SnapshotReadyMsg arrives
	// instead of waiting for the next tick.
	RefreshOnReady bool
	TickInterval   time.Duration
	Logger         *logging.Logger
}

// row is one visible line of the tree.
type row struct {
	tree.Item
	Expanded bool
}

// Model is the bubbletea model of the process tree view.
type Model struct {
	source  Source
	tree    *tree.Tree
	tracker *rowTracker
	opts    Options
	styles  *styles.Styles
	logger  *logging.Logger

	help        help.Model
	filterInput textinput.Model

	rows     []row
	expanded map[process.PID]bool // explicit expand/collapse choices
	selected process.PID
	cursor   int
	offset   int

	filter     glob.Glob
	filterText string
	filtering  bool
	matches    int

	width     int
	height    int
	refreshes uint64
	err       error
	fatal     error
	quitting  bool
}

// New creates the model and installs it as the view of the source's tree.
func New(src Source, opts Options) Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ExpandDepth < 0 {
		opts.ExpandDepth = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "name glob"
	ti.CharLimit = 128

	t := src.Tree()
	tracker := newRowTracker(t)
	t.SetView(tracker)

	m := Model{
		source:      src,
		tree:        t,
		tracker:     tracker,
		opts:        opts,
		styles:      styles.ForTheme(opts.Theme),
		logger:      logger.WithComponent("tui"),
		help:        help.New(),
		filterInput: ti,
		expanded:    make(map[process.PID]bool),
		selected:    process.NoParent,
	}
	m.rebuild()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ensureVisible()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case SnapshotReadyMsg:
		if m.opts.RefreshOnReady {
			m.refresh()
		}
		return m, nil

	case ThemeChangedMsg:
		m.styles = styles.ForTheme(msg.Theme)
		m.logger.Info("theme changed", "theme", msg.Theme)
		return m, nil

	case SamplerStoppedMsg:
		m.err = errors.NewSamplerError("sampler exited", errors.ErrSamplerStopped)
		m.fatal = m.err
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.fatal
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		m.moveTo(m.cursor - 1)
	case key.Matches(msg, keys.Down):
		m.moveTo(m.cursor + 1)
	case key.Matches(msg, keys.Top):
		m.moveTo(0)
	case key.Matches(msg, keys.Bottom):
		m.moveTo(len(m.rows) - 1)
	case key.Matches(msg, keys.Expand):
		m.expand()
	case key.Matches(msg, keys.Collapse):
		m.collapse()
	case key.Matches(msg, keys.Pause):
		if err := m.source.SetActive(!m.source.Active()); err != nil {
			m.err = err
			m.fatal = err
			m.quitting = true
			return m, tea.Quit
		}
	case key.Matches(msg, keys.Filter):
		m.filtering = true
		m.filterInput.SetValue(m.filterText)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()
	case key.Matches(msg, keys.NextMatch):
		m.nextMatch()
	case key.Matches(msg, keys.ClearFilter):
		m.setFilter("")
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filterInput.Blur()
		if m.setFilter(m.filterInput.Value()) {
			m.nextMatch()
		}
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// refresh applies the waiting snapshot, if any.
func (m *Model) refresh() {
	if !m.source.CanRefresh() {
		return
	}
	m.tracker.begin()
	if err := m.source.ApplyPendingRefresh(); err != nil {
		m.logger.Warn("refresh failed", "error", err)
		m.err = err
	} else {
		m.err = nil
	}
	m.refreshes++
	for pid := range m.expanded {
		if !m.tree.Has(pid) {
			delete(m.expanded, pid)
		}
	}
	m.rebuild()
}

func (m *Model) isExpanded(pid process.PID, depth int) bool {
	if open, ok := m.expanded[pid]; ok {
		return open
	}
	return depth < m.opts.ExpandDepth
}

// rebuild recomputes the visible rows and keeps the selection on the same
// pid, or on the same line when that pid is gone.
func (m *Model) rebuild() {
	rows := make([]row, 0, len(m.rows))
	m.matches = 0
	m.tree.Walk(func(it tree.Item) bool {
		if m.filter != nil && m.filter.Match(it.Name) {
			m.matches++
		}
		return true
	})
	m.tree.Walk(func(it tree.Item) bool {
		open := m.isExpanded(it.PID, it.Depth)
		rows = append(rows, row{Item: it, Expanded: open && it.Children > 0})
		return open
	})
	m.rows = rows

	if len(m.rows) == 0 {
		m.cursor, m.offset = 0, 0
		m.selected = process.NoParent
		return
	}
	for i, r := range m.rows {
		if r.PID == m.selected {
			m.cursor = i
			m.ensureVisible()
			return
		}
	}
	m.moveTo(m.cursor)
}

func (m *Model) moveTo(i int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = max(0, min(i, len(m.rows)-1))
	m.selected = m.rows[m.cursor].PID
	m.ensureVisible()
}

func (m *Model) selectPID(pid process.PID) {
	for i, r := range m.rows {
		if r.PID == pid {
			m.moveTo(i)
			return
		}
	}
}

func (m *Model) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

// expand opens the selected row, or steps into it when already open.
func (m *Model) expand() {
	r, ok := m.current()
	if !ok || r.Children == 0 {
		return
	}
	if r.Expanded {
		m.moveTo(m.cursor + 1)
		return
	}
	m.expanded[r.PID] = true
	m.rebuild()
}

// collapse closes the selected row, or steps out to its parent when it is
// already closed.
func (m *Model) collapse() {
	r, ok := m.current()
	if !ok {
		return
	}
	if r.Expanded {
		m.expanded[r.PID] = false
		m.rebuild()
		return
	}
	if r.Parent != process.NoParent {
		m.selectPID(r.Parent)
	}
}

// setFilter compiles text as a glob over process names. Text without glob
// syntax matches as a substring. It reports whether a filter is active.
func (m *Model) setFilter(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		m.filter, m.filterText = nil, ""
		m.rebuild()
		return false
	}
	pattern := text
	if !strings.ContainsAny(text, "*?[{") {
		pattern = "*" + text + "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		m.err = errors.NewValidationError("invalid filter").WithField("filter").WithValue(text).WithCause(err)
		return false
	}
	m.filter, m.filterText = g, text
	m.err = nil
	m.rebuild()
	return true
}

// nextMatch selects the next process after the selection whose name
// matches the filter, opening its ancestors.
func (m *Model) nextMatch() {
	if m.filter == nil {
		return
	}
	var order []process.PID
	start := -1
	m.tree.Walk(func(it tree.Item) bool {
		if it.PID == m.selected {
			start = len(order)
		}
		order = append(order, it.PID)
		return true
	})
	for i := 1; i <= len(order); i++ {
		pid := order[(start+i+len(order))%len(order)]
		if !m.filter.Match(m.tree.Name(pid)) {
			continue
		}
		for p := m.tree.ParentOf(pid); p != process.NoParent; p = m.tree.ParentOf(p) {
			m.expanded[p] = true
		}
		m.selected = pid
		m.rebuild()
		return
	}
}

func (m *Model) bodyHeight() int {
	if m.height <= 0 {
		return len(m.rows)
	}
	h := m.height - chromeLines
	if m.filtering {
		h--
	}
	return max(1, h)
}

func (m *Model) ensureVisible() {
	h := m.bodyHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if h > 0 && m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(0, m.offset)
}
