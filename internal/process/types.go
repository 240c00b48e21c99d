package process

import (
	"context"
	"strings"
)

// PID identifies a live process for the duration of its life.
type PID int32

// NoParent marks a sample without a parent, i.e. a top-level process.
const NoParent PID = -1

// Sample is one process as observed during a single sampling pass.
type Sample struct {
	PID    PID
	Parent PID
	Name   string
	Exe    string
	Cmd    []string
	UID    uint32
	// Memory is the resident set size in bytes.
	Memory uint64
	// CPU is the usage measured for this pass. All samples of one pass use
	// the same unit.
	CPU float64
}

// HasParent reports whether the sample declares a parent process.
func (s Sample) HasParent() bool {
	return s.Parent != NoParent
}

// CommandLine returns the command tokens joined by single spaces.
func (s Sample) CommandLine() string {
	return strings.Join(s.Cmd, " ")
}

// Entry is one raw enumeration item. Tasks holds nested children when the
// enumeration groups them under their parent.
type Entry struct {
	Sample
	Tasks map[PID]Entry
}

// Enumerator supplies the current process table on demand.
type Enumerator interface {
	Enumerate(ctx context.Context) (map[PID]Entry, error)
}

// EnumeratorFunc adapts a plain function to the Enumerator interface.
type EnumeratorFunc func(ctx context.Context) (map[PID]Entry, error)

// Enumerate calls f(ctx).
func (f EnumeratorFunc) Enumerate(ctx context.Context) (map[PID]Entry, error) {
	return f(ctx)
}
