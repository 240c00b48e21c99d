// Package snapshot turns one raw process enumeration into a normalized,
// sorted, row-indexed process forest.
//
// A [Snapshot] is built whole by [Build] and is then either adopted as the
// live tree or consumed node by node by the tree synchronizer. Nodes are held
// in a pid-keyed map; parent and child links are pids, never pointers.
package snapshot

import (
	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/process"
)

// Node is one process in a snapshot.
type Node struct {
	// Row is the node's zero-based position among its siblings.
	Row int
	// Children holds the child pids in ascending order.
	Children []process.PID
	Sample   process.Sample
	// Aggregate is the cpu usage of the node plus all of its descendants.
	Aggregate float64
}

// Snapshot is one complete, internally consistent process forest.
type Snapshot struct {
	// Top holds the top-level pids in ascending order.
	Top      []process.PID
	Nodes    map[process.PID]*Node
	TotalCPU float64
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{Nodes: make(map[process.PID]*Node)}
}

// Len returns the number of processes in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Nodes)
}

// Empty reports whether the snapshot holds no top-level processes.
func (s *Snapshot) Empty() bool {
	return len(s.Top) == 0
}

// Siblings returns the sibling sequence under parent; process.NoParent
// selects the top level. The second result is false if parent is unknown.
func (s *Snapshot) Siblings(parent process.PID) ([]process.PID, bool) {
	if parent == process.NoParent {
		return s.Top, true
	}
	n, ok := s.Nodes[parent]
	if !ok {
		return nil, false
	}
	return n.Children, true
}

// Renumber assigns Row values to list by position.
func (s *Snapshot) Renumber(list []process.PID, from int) error {
	for row := from; row < len(list); row++ {
		n, ok := s.Nodes[list[row]]
		if !ok {
			return inconsistent(list[row], "sibling pid has no node").WithRow(row)
		}
		n.Row = row
	}
	return nil
}

// Check verifies the structural invariants: every referenced pid has a node,
// parent links agree with placement, siblings are strictly ascending and rows
// are contiguous. It also checks that every node is reachable from Top.
func (s *Snapshot) Check() error {
	seen := make(map[process.PID]bool, len(s.Nodes))
	if err := s.checkLevel(process.NoParent, s.Top, seen); err != nil {
		return err
	}
	if len(seen) != len(s.Nodes) {
		for pid := range s.Nodes {
			if !seen[pid] {
				return errors.NewTreeError("node unreachable from top level", errors.ErrTreeInconsistent).
					WithPID(int64(pid))
			}
		}
	}
	return nil
}

func (s *Snapshot) checkLevel(parent process.PID, list []process.PID, seen map[process.PID]bool) error {
	for row, pid := range list {
		n, ok := s.Nodes[pid]
		if !ok {
			return inconsistent(pid, "sibling pid has no node").WithParent(int64(parent)).WithRow(row)
		}
		if seen[pid] {
			return inconsistent(pid, "pid placed twice").WithParent(int64(parent))
		}
		seen[pid] = true
		if n.Sample.PID != pid {
			return inconsistent(pid, "node keyed under a different pid")
		}
		if n.Sample.Parent != parent {
			return inconsistent(pid, "declared parent disagrees with placement").WithParent(int64(parent))
		}
		if n.Row != row {
			return inconsistent(pid, "row out of place").WithRow(row)
		}
		if row > 0 && list[row-1] >= pid {
			return inconsistent(pid, "siblings not strictly ascending").WithParent(int64(parent)).WithRow(row)
		}
		if err := s.checkLevel(pid, n.Children, seen); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every node depth-first in row order. depth is zero for
// top-level processes. Returning false from fn skips the node's children.
func (s *Snapshot) Walk(fn func(n *Node, depth int) bool) {
	s.walk(s.Top, 0, fn)
}

func (s *Snapshot) walk(list []process.PID, depth int, fn func(*Node, int) bool) {
	for _, pid := range list {
		n, ok := s.Nodes[pid]
		if !ok {
			continue
		}
		if fn(n, depth) {
			s.walk(n.Children, depth+1, fn)
		}
	}
}

// SumCPU returns the sum of every node's own cpu usage.
func (s *Snapshot) SumCPU() float64 {
	var sum float64
	for _, n := range s.Nodes {
		sum += n.Sample.CPU
	}
	return sum
}

func inconsistent(pid process.PID, msg string) *errors.TreeError {
	return errors.NewTreeError(msg, errors.ErrTreeInconsistent).WithPID(int64(pid))
}
