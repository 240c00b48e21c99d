package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/util"
)

const (
	expandedMarker  = "▾ "
	collapsedMarker = "▸ "
	leafMarker      = "  "
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.fit(m.renderTitle()))
	b.WriteByte('\n')
	b.WriteString(m.styles.Header.Render(m.fit(m.columns())))
	b.WriteByte('\n')

	end := min(len(m.rows), m.offset+m.bodyHeight())
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor))
		b.WriteByte('\n')
	}
	if len(m.rows) == 0 {
		b.WriteString(m.styles.Footer.Render("waiting for the first sample…"))
		b.WriteByte('\n')
	}

	if m.filtering {
		b.WriteString(m.filterInput.View())
		b.WriteByte('\n')
	}
	b.WriteString(m.fit(m.renderStatus()))
	b.WriteByte('\n')
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) fit(s string) string {
	if m.width <= 0 {
		return s
	}
	return util.TruncateANSI(s, m.width)
}

func (m Model) renderTitle() string {
	badge := m.styles.Active.Render("ACTIVE")
	if !m.source.Active() {
		badge = m.styles.Paused.Render("PAUSED")
	}
	summary := fmt.Sprintf("%d processes · cpu %.1f", m.tree.Len(), m.tree.TotalCPU())
	return m.styles.Title.Render("proctree") + " " + badge + " " + m.styles.Footer.Render(summary)
}

func (m Model) columns() string {
	return fmt.Sprintf("%7s %5s %7s  %s", "PID", "CPU", "MEM", "NAME")
}

func (m Model) renderRow(r row, selected bool) string {
	pct := m.tree.CPUPercentage(r.PID)
	marker := leafMarker
	if r.Children > 0 {
		marker = collapsedMarker
		if r.Expanded {
			marker = expandedMarker
		}
	}

	pidCol := fmt.Sprintf("%7d", r.PID)
	cpuCol := fmt.Sprintf("%4d%%", pct)
	memCol := fmt.Sprintf("%7s", util.FormatBytes(r.Memory))
	guide := util.Indent(r.Depth) + marker

	var extra []string
	if r.Children > 0 && !r.Expanded {
		extra = append(extra, fmt.Sprintf("Σ%d%%", aggregatePercent(r.Aggregate, m.tree.TotalCPU())))
	}
	if m.opts.ShowCommand {
		if cmd := r.CommandLine(); cmd != "" && cmd != r.Name {
			extra = append(extra, cmd)
		}
	}
	tail := strings.Join(extra, " ")

	if selected {
		line := fmt.Sprintf("%s %s %s  %s%s", pidCol, cpuCol, memCol, guide, r.Name)
		if tail != "" {
			line += " " + tail
		}
		if m.width > 0 {
			line = util.PadRight(util.TruncateANSI(line, m.width), m.width)
		}
		return m.styles.Selected.Render(line)
	}

	nameStyle := m.styles.Row
	switch {
	case m.filter != nil && m.filter.Match(r.Name):
		nameStyle = m.styles.Match
	case m.tracker.fresh[r.PID]:
		nameStyle = m.styles.Row.Foreground(m.styles.Palette.Secondary)
	}

	line := m.styles.PID.Render(pidCol) + " " +
		m.styles.CPU(pct).Render(cpuCol) + " " +
		memCol + "  " +
		m.styles.Guide.Render(guide) +
		nameStyle.Render(r.Name)
	if tail != "" {
		line += " " + m.styles.Command.Render(tail)
	}
	return m.fit(line)
}

func (m Model) renderStatus() string {
	stats := m.source.Stats()
	last := m.tree.LastSync()

	parts := []string{fmt.Sprintf("refresh #%d", m.refreshes)}
	if last.Reset {
		parts = append(parts, "reset")
	} else {
		parts = append(parts, fmt.Sprintf("+%d -%d ~%d", last.Inserted, last.Removed, last.Changed))
	}
	parts = append(parts,
		fmt.Sprintf("passes %d", stats.Passes),
		fmt.Sprintf("dropped %d", stats.Dropped),
		fmt.Sprintf("failures %d", stats.Failures),
	)
	if m.filter != nil {
		parts = append(parts, fmt.Sprintf("filter %q: %d", m.filterText, m.matches))
	}
	status := m.styles.Footer.Render(strings.Join(parts, " · "))
	if m.err != nil {
		status += " " + m.styles.Error.Render(statusError(m.err))
	}
	return status
}

// statusError is the footer text for err. Internal failures are only named
// there; their details go to the log.
func statusError(err error) string {
	if errors.IsUserFacing(err) {
		return err.Error()
	}
	return "refresh failed, see log"
}

// aggregatePercent is the whole-percent share of a subtree, saturating
// like the per-row percentage.
func aggregatePercent(aggregate, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Min(100*aggregate/total, math.MaxUint8))
}
