// Package testutil provides testing utilities for proctree tests: builders
// for raw enumerations, a scripted enumerator and a view that records the
// mutations it receives.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Iron-Ham/proctree/internal/process"
)

// Proc builds a sample with a derived name, executable and command line.
// parent may be process.NoParent.
func Proc(pid, parent process.PID, cpu float64) process.Sample {
	name := fmt.Sprintf("proc-%d", pid)
	return process.Sample{
		PID:    pid,
		Parent: parent,
		Name:   name,
		Exe:    "/usr/bin/" + name,
		Cmd:    []string{name, "--serve"},
		UID:    1000,
		Memory: uint64(pid) * 1024,
		CPU:    cpu,
	}
}

// Nested builds an entry with nested tasks.
func Nested(s process.Sample, tasks ...process.Entry) process.Entry {
	e := process.Entry{Sample: s}
	if len(tasks) > 0 {
		e.Tasks = make(map[process.PID]process.Entry, len(tasks))
		for _, t := range tasks {
			e.Tasks[t.PID] = t
		}
	}
	return e
}

// Flat builds a flat enumeration from samples.
func Flat(samples ...process.Sample) map[process.PID]process.Entry {
	m := make(map[process.PID]process.Entry, len(samples))
	for _, s := range samples {
		m[s.PID] = process.Entry{Sample: s}
	}
	return m
}

// Enumeration builds an enumeration from top-level entries.
func Enumeration(entries ...process.Entry) map[process.PID]process.Entry {
	m := make(map[process.PID]process.Entry, len(entries))
	for _, e := range entries {
		m[e.PID] = e
	}
	return m
}

// ScriptedEnumerator returns a fixed sequence of enumerations, repeating the
// last one once the script is exhausted. It is safe for concurrent use.
type ScriptedEnumerator struct {
	mu     sync.Mutex
	script []Step
	calls  int
}

// Step is one scripted enumeration result.
type Step struct {
	Entries map[process.PID]process.Entry
	Err     error
}

// NewScriptedEnumerator creates an enumerator that replays steps in order.
func NewScriptedEnumerator(steps ...Step) *ScriptedEnumerator {
	return &ScriptedEnumerator{script: steps}
}

// Enumerate returns the next scripted step.
func (s *ScriptedEnumerator) Enumerate(ctx context.Context) (map[process.PID]process.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.script) == 0 {
		s.calls++
		return map[process.PID]process.Entry{}, nil
	}
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	return s.script[i].Entries, s.script[i].Err
}

// Calls returns how many times Enumerate has been called.
func (s *ScriptedEnumerator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// RecordingView records every mutation as a short string:
// "insert(parent,row)", "remove(parent,row)", "changed(pid)" and "reset".
// It also verifies that begin/end calls are balanced and never nested.
type RecordingView struct {
	mu      sync.Mutex
	events  []string
	open    string
	misuses []string
}

// BeginInsert records an insertion.
func (v *RecordingView) BeginInsert(parent process.PID, row int) {
	v.begin(fmt.Sprintf("insert(%d,%d)", parent, row))
}

// EndInsert closes an insertion.
func (v *RecordingView) EndInsert() { v.end("insert") }

// BeginRemove records a removal.
func (v *RecordingView) BeginRemove(parent process.PID, row int) {
	v.begin(fmt.Sprintf("remove(%d,%d)", parent, row))
}

// EndRemove closes a removal.
func (v *RecordingView) EndRemove() { v.end("remove") }

// DataChanged records a row update.
func (v *RecordingView) DataChanged(pid process.PID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open != "" {
		v.misuses = append(v.misuses, "changed inside "+v.open)
	}
	v.events = append(v.events, fmt.Sprintf("changed(%d)", pid))
}

// BeginReset records a reset.
func (v *RecordingView) BeginReset() { v.begin("reset") }

// EndReset closes a reset.
func (v *RecordingView) EndReset() { v.end("reset") }

func (v *RecordingView) begin(ev string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open != "" {
		v.misuses = append(v.misuses, ev+" inside "+v.open)
	}
	v.open = ev
	v.events = append(v.events, ev)
}

func (v *RecordingView) end(kind string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !strings.HasPrefix(v.open, kind) {
		v.misuses = append(v.misuses, "end "+kind+" without begin")
	}
	v.open = ""
}

// Events returns a copy of the recorded events.
func (v *RecordingView) Events() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.events...)
}

// Count returns how many recorded events start with prefix.
func (v *RecordingView) Count(prefix string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, ev := range v.events {
		if strings.HasPrefix(ev, prefix) {
			n++
		}
	}
	return n
}

// Clear forgets all recorded events.
func (v *RecordingView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = nil
	v.misuses = nil
	v.open = ""
}

// Misuses returns begin/end protocol violations seen so far.
func (v *RecordingView) Misuses() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.misuses...)
}
