package tree

import (
	"math"
	"slices"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/snapshot"
)

// cpuTolerance is the relative cpu difference below which two readings are
// considered equal.
const cpuTolerance = 0.01

// approxEqual reports whether a and b differ by less than cpuTolerance
// relative to the larger magnitude. Identical values, zeros included, are
// always equal.
func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b)/scale < cpuTolerance
}

// Sync reconciles the live tree with incoming and reports every change to
// the view. incoming must not be used afterwards: its nodes are moved into
// the live tree.
//
// An empty live tree adopts incoming inside a single reset. Otherwise the
// two forests are merged level by level, producing one insert or remove per
// appearing or vanishing subtree and at most one DataChanged per surviving
// row. A process whose parent changed is removed from its old position and
// inserted at its new one. A sibling list that references a pid with no node fails the sync
// with a *errors.TreeError; the live tree may then be partially merged and
// should be cleared.
func (t *Tree) Sync(incoming *snapshot.Snapshot) error {
	t.last = Result{}
	if incoming == nil {
		return nil
	}

	if t.live.Empty() {
		t.view.BeginReset()
		t.live = incoming
		t.view.EndReset()
		t.last.Reset = true
		t.logger.Debug("adopted snapshot", "processes", incoming.Len())
		return nil
	}

	m := merger{tree: t, in: incoming}
	if err := m.detachMoved(); err != nil {
		return err
	}
	if err := m.merge(process.NoParent); err != nil {
		return err
	}

	var total float64
	for _, pid := range t.live.Top {
		total += t.live.Nodes[pid].Aggregate
	}
	t.live.TotalCPU = total
	return nil
}

// merger carries the state of one Sync over the incoming snapshot.
type merger struct {
	tree *Tree
	in   *snapshot.Snapshot
}

// liveSiblings returns a pointer to the live sibling list under parent so
// that inserts and removals update it in place.
func (m *merger) liveSiblings(parent process.PID) (*[]process.PID, error) {
	if parent == process.NoParent {
		return &m.tree.live.Top, nil
	}
	n, ok := m.tree.live.Nodes[parent]
	if !ok {
		return nil, missing(parent, "live parent has no node")
	}
	return &n.Children, nil
}

// detachMoved removes every live process whose parent differs in incoming,
// together with its live subtree. Afterwards each pid present in both trees
// sits under the same parent in both, which the level merge relies on.
func (m *merger) detachMoved() error {
	var moved []process.PID
	for pid, ln := range m.tree.live.Nodes {
		if in, ok := m.in.Nodes[pid]; ok && in.Sample.Parent != ln.Sample.Parent {
			moved = append(moved, pid)
		}
	}
	slices.Sort(moved)

	for _, pid := range moved {
		ln, ok := m.tree.live.Nodes[pid]
		if !ok {
			// already left with a moved ancestor
			continue
		}
		parent := ln.Sample.Parent
		live, err := m.liveSiblings(parent)
		if err != nil {
			return err
		}
		if ln.Row < 0 || ln.Row >= len(*live) || (*live)[ln.Row] != pid {
			return missing(pid, "moved pid not found at its live row").
				WithParent(int64(parent)).WithRow(ln.Row)
		}
		if err := m.remove(parent, live, ln.Row); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) merge(parent process.PID) error {
	live, err := m.liveSiblings(parent)
	if err != nil {
		return err
	}
	in, ok := m.in.Siblings(parent)
	if !ok {
		return missing(parent, "incoming parent has no node")
	}

	a, b := 0, 0
	for a < len(*live) && b < len(in) {
		switch lp, ip := (*live)[a], in[b]; {
		case lp < ip:
			if err := m.remove(parent, live, a); err != nil {
				return err
			}
		case lp > ip:
			if err := m.insert(parent, live, a, ip); err != nil {
				return err
			}
			a++
			b++
		default:
			if err := m.reconcile(lp); err != nil {
				return err
			}
			a++
			b++
		}
	}
	for ; b < len(in); a, b = a+1, b+1 {
		if err := m.insert(parent, live, a, in[b]); err != nil {
			return err
		}
	}
	for a < len(*live) {
		if err := m.remove(parent, live, a); err != nil {
			return err
		}
	}

	if a != b || len(*live) != len(in) {
		return errors.NewTreeError("merge cursors disagree", errors.ErrTreeInconsistent).
			WithParent(int64(parent)).WithRow(a)
	}
	return nil
}

// insert moves the incoming subtree rooted at pid into the live tree at row.
func (m *merger) insert(parent process.PID, live *[]process.PID, row int, pid process.PID) error {
	subtree, err := collect(m.in, pid)
	if err != nil {
		return err
	}
	for _, n := range subtree {
		if _, dup := m.tree.live.Nodes[n.Sample.PID]; dup {
			return missing(n.Sample.PID, "inserted pid already in the live tree").
				WithParent(int64(parent)).WithRow(row)
		}
	}

	m.tree.view.BeginInsert(parent, row)
	for _, n := range subtree {
		m.tree.live.Nodes[n.Sample.PID] = n
		delete(m.in.Nodes, n.Sample.PID)
	}
	*live = slices.Insert(*live, row, pid)
	err = m.tree.live.Renumber(*live, row)
	m.tree.view.EndInsert()
	if err != nil {
		return err
	}

	m.tree.last.Inserted++
	m.logChange("process inserted", subtree[0], parent, row, len(subtree))
	return nil
}

// remove drops the live subtree at row.
func (m *merger) remove(parent process.PID, live *[]process.PID, row int) error {
	pid := (*live)[row]
	subtree, err := collect(m.tree.live, pid)
	if err != nil {
		return err
	}

	m.tree.view.BeginRemove(parent, row)
	for _, n := range subtree {
		if m.tree.live.Nodes[n.Sample.PID] == n {
			delete(m.tree.live.Nodes, n.Sample.PID)
		}
	}
	*live = slices.Delete(*live, row, row+1)
	err = m.tree.live.Renumber(*live, row)
	m.tree.view.EndRemove()
	if err != nil {
		return err
	}

	m.tree.last.Removed++
	m.logChange("process removed", subtree[0], parent, row, len(subtree))
	return nil
}

// reconcile updates a surviving node from its incoming counterpart and
// merges its children. A field change is reported before the children are
// merged; a row whose fields held but whose aggregate moved is reported
// after. Either way the row gets at most one DataChanged.
func (m *merger) reconcile(pid process.PID) error {
	ln, ok := m.tree.live.Nodes[pid]
	if !ok {
		return missing(pid, "live sibling has no node")
	}
	in, ok := m.in.Nodes[pid]
	if !ok {
		return missing(pid, "incoming sibling has no node")
	}

	changed := updateSample(&ln.Sample, in.Sample)
	if changed {
		m.dataChanged(pid)
	}

	if err := m.merge(pid); err != nil {
		return err
	}

	agg := ln.Sample.CPU
	for _, child := range ln.Children {
		cn, ok := m.tree.live.Nodes[child]
		if !ok {
			return missing(child, "live child has no node").WithParent(int64(pid))
		}
		agg += cn.Aggregate
	}
	moved := !approxEqual(agg, ln.Aggregate)
	ln.Aggregate = agg

	if moved && !changed {
		m.dataChanged(pid)
	}
	return nil
}

func (m *merger) dataChanged(pid process.PID) {
	m.tree.view.DataChanged(pid)
	m.tree.last.Changed++
}

// updateSample copies the fields of in into live and reports whether any of
// them changed visibly. cpu uses the approximate comparison; the stored
// value always follows the incoming reading.
func updateSample(live *process.Sample, in process.Sample) bool {
	changed := live.Name != in.Name ||
		live.Exe != in.Exe ||
		live.Memory != in.Memory ||
		live.UID != in.UID ||
		!slices.Equal(live.Cmd, in.Cmd) ||
		!approxEqual(live.CPU, in.CPU)

	live.Name = in.Name
	live.Exe = in.Exe
	live.Memory = in.Memory
	live.UID = in.UID
	live.Cmd = in.Cmd
	live.CPU = in.CPU
	return changed
}

// collect returns the subtree rooted at pid in pre-order, failing if any
// referenced pid has no node.
func collect(s *snapshot.Snapshot, pid process.PID) ([]*snapshot.Node, error) {
	var out []*snapshot.Node
	stack := []process.PID{pid}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := s.Nodes[p]
		if !ok {
			return nil, missing(p, "subtree pid has no node")
		}
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out, nil
}

func (m *merger) logChange(msg string, n *snapshot.Node, parent process.PID, row, size int) {
	log := m.tree.logger
	if !log.DebugEnabled() {
		return
	}
	log.Debug(msg,
		"pid", n.Sample.PID,
		"parent", parent,
		"row", row,
		"subtree", size,
		"exe", n.Sample.Exe,
		"command", n.Sample.CommandLine())
}

func missing(pid process.PID, msg string) *errors.TreeError {
	return errors.NewTreeError(msg, errors.ErrTreeInconsistent).WithPID(int64(pid))
}
