package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/snapshot"
	"github.com/Iron-Ham/proctree/internal/util"
)

// Output formats of the snapshot command.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormats() []string {
	return []string{formatText, formatJSON, formatYAML}
}

// processRecord is the serialized form of one process and its subtree.
type processRecord struct {
	PID        process.PID     `json:"pid" yaml:"pid"`
	Name       string          `json:"name" yaml:"name"`
	Exe        string          `json:"exe,omitempty" yaml:"exe,omitempty"`
	Command    string          `json:"command,omitempty" yaml:"command,omitempty"`
	UID        uint32          `json:"uid" yaml:"uid"`
	Memory     uint64          `json:"memory" yaml:"memory"`
	CPU        float64         `json:"cpu" yaml:"cpu"`
	SubtreeCPU float64         `json:"subtree_cpu" yaml:"subtree_cpu"`
	Children   []processRecord `json:"children,omitempty" yaml:"children,omitempty"`
}

// snapshotReport is the serialized form of a whole snapshot.
type snapshotReport struct {
	Processes int             `json:"processes" yaml:"processes"`
	TotalCPU  float64         `json:"total_cpu" yaml:"total_cpu"`
	Tree      []processRecord `json:"tree" yaml:"tree"`
}

// reportRoots returns the sibling sequence a report starts from: the top
// level for process.NoParent, otherwise the single process root.
func reportRoots(s *snapshot.Snapshot, root process.PID) ([]process.PID, error) {
	if root == process.NoParent {
		return s.Top, nil
	}
	if _, ok := s.Nodes[root]; !ok {
		return nil, errors.NewNotFoundError("process", fmt.Sprint(root))
	}
	return []process.PID{root}, nil
}

// buildReport converts the subtrees under top into records. With a match
// pattern only matching processes and their ancestors are kept.
func buildReport(s *snapshot.Snapshot, top []process.PID, match glob.Glob) snapshotReport {
	keep := matchedWithAncestors(s, match)
	report := snapshotReport{TotalCPU: s.TotalCPU}

	var convert func(list []process.PID) []processRecord
	convert = func(list []process.PID) []processRecord {
		var out []processRecord
		for _, pid := range list {
			if keep != nil && !keep[pid] {
				continue
			}
			n := s.Nodes[pid]
			report.Processes++
			out = append(out, processRecord{
				PID:        pid,
				Name:       n.Sample.Name,
				Exe:        n.Sample.Exe,
				Command:    n.Sample.CommandLine(),
				UID:        n.Sample.UID,
				Memory:     n.Sample.Memory,
				CPU:        n.Sample.CPU,
				SubtreeCPU: n.Aggregate,
				Children:   convert(n.Children),
			})
		}
		return out
	}
	report.Tree = convert(top)
	return report
}

// matchedWithAncestors returns the pids whose name matches, plus every
// ancestor of those, or nil when match is nil.
func matchedWithAncestors(s *snapshot.Snapshot, match glob.Glob) map[process.PID]bool {
	if match == nil {
		return nil
	}
	keep := make(map[process.PID]bool)
	s.Walk(func(n *snapshot.Node, _ int) bool {
		if !match.Match(n.Sample.Name) {
			return true
		}
		for pid := n.Sample.PID; pid != process.NoParent && !keep[pid]; {
			keep[pid] = true
			parent, ok := s.Nodes[pid]
			if !ok {
				break
			}
			pid = parent.Sample.Parent
		}
		return true
	})
	return keep
}

// writeReport renders report in format. width limits text lines when
// positive.
func writeReport(w io.Writer, report snapshotReport, format string, width int) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, report, width)
	}
}

func writeText(w io.Writer, report snapshotReport, width int) error {
	line := func(s string) error {
		if width > 0 {
			s = util.TruncateANSI(s, width)
		}
		_, err := fmt.Fprintln(w, s)
		return err
	}

	if err := line(fmt.Sprintf("%7s %6s %7s  %s", "PID", "CPU%", "MEM", "NAME")); err != nil {
		return err
	}

	var walk func(list []processRecord, depth int) error
	walk = func(list []processRecord, depth int) error {
		for _, r := range list {
			pct := 0.0
			if report.TotalCPU > 0 {
				pct = 100 * r.CPU / report.TotalCPU
			}
			text := fmt.Sprintf("%7d %5.1f%% %7s  %s%s", r.PID, pct, util.FormatBytes(r.Memory), util.Indent(depth), r.Name)
			if r.Command != "" && r.Command != r.Name {
				text += "  " + r.Command
			}
			if err := line(text); err != nil {
				return err
			}
			if err := walk(r.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(report.Tree, 0); err != nil {
		return err
	}
	return line(fmt.Sprintf("%d processes, total cpu %.1f", report.Processes, report.TotalCPU))
}
