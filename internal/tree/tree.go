package tree

import (
	"math"

	"github.com/Iron-Ham/proctree/internal/logging"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/snapshot"
)

// Tree is the live process tree. It is not safe for concurrent use; the
// consumer that owns it is the only goroutine that may call Sync or read
// from it.
type Tree struct {
	live   *snapshot.Snapshot
	view   View
	logger *logging.Logger
	last   Result
}

// Result summarizes the view mutations produced by the most recent Sync.
type Result struct {
	Inserted int
	Removed  int
	Changed  int
	// Reset is set when the snapshot was adopted wholesale.
	Reset bool
}

// Mutations returns the total number of view notifications, counting a
// reset as one.
func (r Result) Mutations() int {
	n := r.Inserted + r.Removed + r.Changed
	if r.Reset {
		n++
	}
	return n
}

// New returns an empty tree reporting to view. A nil view or logger is
// replaced by a no-op implementation.
func New(view View, logger *logging.Logger) *Tree {
	if view == nil {
		view = NopView{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tree{
		live:   snapshot.New(),
		view:   view,
		logger: logger.WithComponent("sync"),
	}
}

// SetView replaces the view that receives mutations.
func (t *Tree) SetView(view View) {
	if view == nil {
		view = NopView{}
	}
	t.view = view
}

// LastSync returns the result of the most recent Sync.
func (t *Tree) LastSync() Result {
	return t.last
}

// Clear empties the tree inside a reset. The next Sync adopts its snapshot
// wholesale.
func (t *Tree) Clear() {
	t.view.BeginReset()
	t.live = snapshot.New()
	t.view.EndReset()
}

// Len returns the number of processes in the tree.
func (t *Tree) Len() int {
	return t.live.Len()
}

// RowCount returns the number of children of parent, or the number of
// top-level processes for process.NoParent. Unknown parents have no rows.
func (t *Tree) RowCount(parent process.PID) int {
	list, _ := t.live.Siblings(parent)
	return len(list)
}

// ChildAt returns the pid at row under parent.
func (t *Tree) ChildAt(parent process.PID, row int) (process.PID, bool) {
	list, ok := t.live.Siblings(parent)
	if !ok || row < 0 || row >= len(list) {
		return 0, false
	}
	return list[row], true
}

// ParentOf returns the parent of pid, or process.NoParent for top-level
// and unknown pids.
func (t *Tree) ParentOf(pid process.PID) process.PID {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.Parent
	}
	return process.NoParent
}

// Row returns the position of pid among its siblings, or -1 if pid is not
// in the tree.
func (t *Tree) Row(pid process.PID) int {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Row
	}
	return -1
}

// Has reports whether pid is in the tree.
func (t *Tree) Has(pid process.PID) bool {
	_, ok := t.live.Nodes[pid]
	return ok
}

// Sample returns a copy of the sample stored for pid.
func (t *Tree) Sample(pid process.PID) (process.Sample, bool) {
	n, ok := t.live.Nodes[pid]
	if !ok {
		return process.Sample{}, false
	}
	s := n.Sample
	s.Cmd = append([]string(nil), s.Cmd...)
	return s, true
}

// The field accessors below return the zero value for unknown pids.

func (t *Tree) UID(pid process.PID) uint32 {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.UID
	}
	return 0
}

func (t *Tree) CPUUsage(pid process.PID) float64 {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.CPU
	}
	return 0
}

func (t *Tree) Memory(pid process.PID) uint64 {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.Memory
	}
	return 0
}

func (t *Tree) Name(pid process.PID) string {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.Name
	}
	return ""
}

// Command returns the command tokens joined by single spaces.
func (t *Tree) Command(pid process.PID) string {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.CommandLine()
	}
	return ""
}

func (t *Tree) Executable(pid process.PID) string {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Sample.Exe
	}
	return ""
}

// AggregateCPU returns the cpu usage of pid and all of its descendants.
func (t *Tree) AggregateCPU(pid process.PID) float64 {
	if n, ok := t.live.Nodes[pid]; ok {
		return n.Aggregate
	}
	return 0
}

// TotalCPU returns the denominator used for percentages.
func (t *Tree) TotalCPU() float64 {
	return t.live.TotalCPU
}

// CPUPercentage returns pid's share of the total cpu, truncated to a whole
// percent. It is 0 when the total is 0 and saturates at 255.
func (t *Tree) CPUPercentage(pid process.PID) uint8 {
	return percentage(t.CPUUsage(pid), t.live.TotalCPU)
}

func percentage(cpu, total float64) uint8 {
	if total <= 0 || cpu <= 0 || math.IsNaN(cpu) {
		return 0
	}
	p := 100 * cpu / total
	if p >= math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(p)
}

// Item is one row handed to a Walk callback.
type Item struct {
	process.Sample
	Row       int
	Depth     int
	Children  int
	Aggregate float64
}

// Walk visits the tree depth-first in row order. Returning false from fn
// skips the item's descendants.
func (t *Tree) Walk(fn func(Item) bool) {
	t.live.Walk(func(n *snapshot.Node, depth int) bool {
		return fn(Item{
			Sample:    n.Sample,
			Row:       n.Row,
			Depth:     depth,
			Children:  len(n.Children),
			Aggregate: n.Aggregate,
		})
	})
}

// Check verifies the structural invariants of the live tree.
func (t *Tree) Check() error {
	return t.live.Check()
}
