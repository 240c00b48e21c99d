package process

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	gopsProcess "github.com/shirou/gopsutil/v4/process"
	"github.com/sourcegraph/conc/pool"
)

// SystemEnumerator reads the live process table through gopsutil.
//
// gopsutil computes CPU usage as a delta between two calls on the same
// *Process, so handles are cached across passes and keyed by pid and create
// time. The first pass for a process therefore reports zero usage.
//
// SystemEnumerator is safe for concurrent use, but passes are serialized.
type SystemEnumerator struct {
	workers int

	mu    sync.Mutex
	cache map[PID]cachedProcess
}

type cachedProcess struct {
	proc    *gopsProcess.Process
	created int64
}

// NewSystemEnumerator creates an enumerator that inspects up to workers
// processes in parallel. Values below one use runtime.NumCPU().
func NewSystemEnumerator(workers int) *SystemEnumerator {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &SystemEnumerator{
		workers: workers,
		cache:   make(map[PID]cachedProcess),
	}
}

// Enumerate returns every live process as a flat map. Processes whose parent
// is not part of the enumeration (pid 0, or a parent that exited during the
// pass) are reported as top-level.
func (e *SystemEnumerator) Enumerate(ctx context.Context) (map[PID]Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	procs, err := gopsProcess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	p := pool.NewWithResults[*Sample]().WithMaxGoroutines(e.workers)
	for _, proc := range procs {
		handle := e.handle(ctx, proc)
		p.Go(func() *Sample {
			return readSample(ctx, handle)
		})
	}
	samples := p.Wait()

	entries := make(map[PID]Entry, len(samples))
	for _, s := range samples {
		if s == nil {
			continue
		}
		entries[s.PID] = Entry{Sample: *s}
	}

	for pid, entry := range entries {
		if !entry.HasParent() {
			continue
		}
		if _, ok := entries[entry.Parent]; !ok || entry.Parent == pid {
			entry.Parent = NoParent
			entries[pid] = entry
		}
	}

	e.prune(entries)
	return entries, nil
}

// handle returns the cached gopsutil handle for proc, replacing it when the
// pid has been reused by a new process.
func (e *SystemEnumerator) handle(ctx context.Context, proc *gopsProcess.Process) *gopsProcess.Process {
	pid := PID(proc.Pid)
	created, _ := proc.CreateTimeWithContext(ctx)
	if c, ok := e.cache[pid]; ok && c.created == created {
		return c.proc
	}
	e.cache[pid] = cachedProcess{proc: proc, created: created}
	return proc
}

func (e *SystemEnumerator) prune(live map[PID]Entry) {
	for pid := range e.cache {
		if _, ok := live[pid]; !ok {
			delete(e.cache, pid)
		}
	}
}

// readSample collects the fields of one process. It returns nil when the
// process vanished before it could be inspected; fields that are merely
// inaccessible are left at their zero value.
func readSample(ctx context.Context, proc *gopsProcess.Process) *Sample {
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		if running, _ := proc.IsRunningWithContext(ctx); !running {
			return nil
		}
	}

	s := &Sample{
		PID:    PID(proc.Pid),
		Parent: NoParent,
		Name:   name,
	}
	if ppid, err := proc.PpidWithContext(ctx); err == nil && ppid > 0 {
		s.Parent = PID(ppid)
	}
	if exe, err := proc.ExeWithContext(ctx); err == nil {
		s.Exe = exe
	}
	if cmd, err := proc.CmdlineSliceWithContext(ctx); err == nil {
		s.Cmd = cmd
	}
	if uids, err := proc.UidsWithContext(ctx); err == nil && len(uids) > 0 {
		s.UID = uids[0]
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		s.Memory = mem.RSS
	}
	if cpu, err := proc.PercentWithContext(ctx, 0); err == nil {
		s.CPU = cpu
	}
	return s
}
