package tree

import "github.com/Iron-Ham/proctree/internal/process"

// View receives the row-level mutations a sync produces. Each Begin call is
// followed by its matching End before any other call; the tree is already
// in its new shape when End is called. parent is process.NoParent for
// top-level rows.
type View interface {
	BeginInsert(parent process.PID, row int)
	EndInsert()
	BeginRemove(parent process.PID, row int)
	EndRemove()
	DataChanged(pid process.PID)
	BeginReset()
	EndReset()
}

// NopView discards every mutation.
type NopView struct{}

func (NopView) BeginInsert(process.PID, int) {}
func (NopView) EndInsert()                   {}
func (NopView) BeginRemove(process.PID, int) {}
func (NopView) EndRemove()                   {}
func (NopView) DataChanged(process.PID)      {}
func (NopView) BeginReset()                  {}
func (NopView) EndReset()                    {}
