package tui

import (
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/tree"
)

// rowTracker is the tree.View installed by the model. It remembers which
// rows the most recent refresh inserted so they can be highlighted.
type rowTracker struct {
	tree *tree.Tree

	insertParent process.PID
	insertRow    int

	fresh map[process.PID]bool
	reset bool
}

func newRowTracker(t *tree.Tree) *rowTracker {
	return &rowTracker{tree: t, fresh: make(map[process.PID]bool)}
}

// begin forgets what the previous refresh did.
func (r *rowTracker) begin() {
	clear(r.fresh)
	r.reset = false
}

func (r *rowTracker) BeginInsert(parent process.PID, row int) {
	r.insertParent, r.insertRow = parent, row
}

// EndInsert runs once the node is in place, so the row resolves to its pid.
func (r *rowTracker) EndInsert() {
	if pid, ok := r.tree.ChildAt(r.insertParent, r.insertRow); ok {
		r.fresh[pid] = true
	}
}

func (r *rowTracker) BeginRemove(process.PID, int) {}
func (r *rowTracker) EndRemove()                   {}
func (r *rowTracker) DataChanged(process.PID)      {}

func (r *rowTracker) BeginReset() { r.reset = true }
func (r *rowTracker) EndReset()   {}

var _ tree.View = (*rowTracker)(nil)
