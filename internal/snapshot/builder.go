package snapshot

import (
	"slices"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/process"
)

// Build turns one raw enumeration into a snapshot.
//
// Entries may be nested (children grouped under their parent's Tasks) or
// flat (hierarchy expressed only through Sample.Parent), or any mix of the
// two. Build fails with a *errors.SnapshotError wrapping
// errors.ErrCorruptEnumeration when the enumeration cannot form a forest:
// a map key that disagrees with its sample, a nested task that declares a
// different parent, a pid reported twice, a declared parent that was not
// enumerated, or a parent cycle.
func Build(entries map[process.PID]process.Entry) (*Snapshot, error) {
	if err := checkHierarchy(process.NoParent, entries); err != nil {
		return nil, err
	}

	s := New()
	total, err := s.collect(entries)
	if err != nil {
		return nil, err
	}
	s.TotalCPU = total

	if err := s.link(); err != nil {
		return nil, err
	}

	slices.Sort(s.Top)
	for _, n := range s.Nodes {
		slices.Sort(n.Children)
	}

	placed := 0
	for row, pid := range s.Top {
		placed += s.index(pid, row)
	}
	if placed != len(s.Nodes) {
		return nil, errors.NewSnapshotError("parent links form a cycle", errors.ErrCorruptEnumeration)
	}

	return s, nil
}

// checkHierarchy verifies that every entry is keyed by its own pid and that
// nested tasks declare the enclosing process as their parent.
func checkHierarchy(parent process.PID, entries map[process.PID]process.Entry) error {
	for pid, e := range entries {
		if e.PID != pid {
			return errors.NewSnapshotError("entry keyed under a different pid", errors.ErrCorruptEnumeration).
				WithPID(int64(pid))
		}
		if parent != process.NoParent && e.Parent != parent {
			return errors.NewSnapshotError("task declares a different parent", errors.ErrCorruptEnumeration).
				WithPID(int64(pid)).WithParent(int64(e.Parent))
		}
		if err := checkHierarchy(pid, e.Tasks); err != nil {
			return err
		}
	}
	return nil
}

// collect flattens entries into s.Nodes and returns the cpu sum of every
// entry plus the recursively summed usage of its tasks.
func (s *Snapshot) collect(entries map[process.PID]process.Entry) (float64, error) {
	var sum float64
	for pid, e := range entries {
		if _, dup := s.Nodes[pid]; dup {
			return 0, errors.NewSnapshotError("pid reported twice", errors.ErrCorruptEnumeration).
				WithPID(int64(pid))
		}
		sample := e.Sample
		sample.Cmd = slices.Clone(e.Cmd)
		s.Nodes[pid] = &Node{Sample: sample}

		sub, err := s.collect(e.Tasks)
		if err != nil {
			return 0, err
		}
		sum += e.CPU + sub
	}
	return sum, nil
}

// link reconstructs parent to child edges from declared parents.
func (s *Snapshot) link() error {
	for pid, n := range s.Nodes {
		if !n.Sample.HasParent() {
			s.Top = append(s.Top, pid)
			continue
		}
		p, ok := s.Nodes[n.Sample.Parent]
		if !ok {
			return errors.NewSnapshotError("declared parent was not enumerated", errors.ErrCorruptEnumeration).
				WithPID(int64(pid)).WithParent(int64(n.Sample.Parent))
		}
		p.Children = append(p.Children, pid)
	}
	return nil
}

// index assigns rows and aggregates below pid and returns the number of
// nodes it placed.
func (s *Snapshot) index(pid process.PID, row int) int {
	n := s.Nodes[pid]
	n.Row = row
	n.Aggregate = n.Sample.CPU
	placed := 1
	for r, child := range n.Children {
		placed += s.index(child, r)
		n.Aggregate += s.Nodes[child].Aggregate
	}
	return placed
}
