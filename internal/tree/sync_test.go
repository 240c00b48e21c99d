package tree

import (
	"bytes"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/logging"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/snapshot"
	"github.com/Iron-Ham/proctree/internal/testutil"
)

const none = process.NoParent

func build(t *testing.T, samples ...process.Sample) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.Build(testutil.Flat(samples...))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s
}

// seeded returns a tree already holding samples, with the view cleared.
func seeded(t *testing.T, samples ...process.Sample) (*Tree, *testutil.RecordingView) {
	t.Helper()
	view := &testutil.RecordingView{}
	tr := New(view, nil)
	if err := tr.Sync(build(t, samples...)); err != nil {
		t.Fatalf("initial Sync failed: %v", err)
	}
	view.Clear()
	return tr, view
}

func syncOK(t *testing.T, tr *Tree, view *testutil.RecordingView, samples ...process.Sample) []string {
	t.Helper()
	view.Clear()
	if err := tr.Sync(build(t, samples...)); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if m := view.Misuses(); len(m) > 0 {
		t.Fatalf("view protocol violated: %v", m)
	}
	if err := tr.Check(); err != nil {
		t.Fatalf("live tree inconsistent after Sync: %v", err)
	}
	return view.Events()
}

func TestSync_FirstSampleResets(t *testing.T) {
	view := &testutil.RecordingView{}
	tr := New(view, nil)

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 1),
		testutil.Proc(2, 1, 1),
		testutil.Proc(3, 1, 1),
	)

	if want := []string{"reset"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if !tr.LastSync().Reset || tr.LastSync().Mutations() != 1 {
		t.Errorf("LastSync() = %+v", tr.LastSync())
	}
	if tr.Len() != 3 || tr.RowCount(1) != 2 {
		t.Errorf("Len() = %d, RowCount(1) = %d", tr.Len(), tr.RowCount(1))
	}
}

func TestSync_IdempotentResync(t *testing.T) {
	samples := []process.Sample{
		testutil.Proc(1, none, 2),
		testutil.Proc(4, 1, 3),
		testutil.Proc(9, 4, 0),
		testutil.Proc(20, none, 0),
	}
	tr, view := seeded(t, samples...)

	for range 3 {
		if events := syncOK(t, tr, view, samples...); len(events) != 0 {
			t.Fatalf("re-sync emitted %v, want nothing", events)
		}
	}
	if tr.LastSync().Mutations() != 0 {
		t.Errorf("LastSync() = %+v, want no mutations", tr.LastSync())
	}
}

func TestSync_DiffMinimality(t *testing.T) {
	tr, view := seeded(t,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 1),
		testutil.Proc(3, 1, 1),
		testutil.Proc(5, 1, 1),
		testutil.Proc(6, 5, 1),
	)

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 1),
		testutil.Proc(4, 1, 1),
		testutil.Proc(5, 1, 1),
		testutil.Proc(6, 5, 1),
	)

	if want := []string{"remove(1,1)", "insert(1,1)"}; !slices.Equal(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for pid, row := range map[process.PID]int{2: 0, 4: 1, 5: 2, 6: 0} {
		if got := tr.Row(pid); got != row {
			t.Errorf("Row(%d) = %d, want %d", pid, got, row)
		}
	}
	if tr.Has(3) {
		t.Error("pid 3 still present after removal")
	}
	if r := tr.LastSync(); r.Inserted != 1 || r.Removed != 1 || r.Changed != 0 {
		t.Errorf("LastSync() = %+v", r)
	}
}

func TestSync_CPUTolerance(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 10))

	if events := syncOK(t, tr, view, testutil.Proc(1, none, 10.05)); len(events) != 0 {
		t.Errorf("0.5%% change emitted %v", events)
	}
	if got := tr.CPUUsage(1); got != 10.05 {
		t.Errorf("CPUUsage(1) = %v, want the latest reading 10.05", got)
	}

	events := syncOK(t, tr, view, testutil.Proc(1, none, 10.05*1.05))
	if want := []string{"changed(1)"}; !slices.Equal(events, want) {
		t.Errorf("5%% change emitted %v, want %v", events, want)
	}
}

func TestSync_ZeroCPUIsStable(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 0), testutil.Proc(2, 1, 0))
	if events := syncOK(t, tr, view, testutil.Proc(1, none, 0), testutil.Proc(2, 1, 0)); len(events) != 0 {
		t.Errorf("zero cpu re-sync emitted %v", events)
	}
	if math.IsNaN(tr.AggregateCPU(1)) {
		t.Error("aggregate of an idle subtree is NaN")
	}
}

func TestSync_FieldChangeEmitsOnce(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1))

	renamed := testutil.Proc(1, none, 5)
	renamed.Name = "renamed"
	renamed.Cmd = []string{"renamed", "--verbose"}
	renamed.Memory *= 2

	events := syncOK(t, tr, view, renamed)
	if want := []string{"changed(1)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if tr.Name(1) != "renamed" || tr.Command(1) != "renamed --verbose" || tr.Memory(1) != renamed.Memory {
		t.Errorf("fields not updated: %q %q %d", tr.Name(1), tr.Command(1), tr.Memory(1))
	}
}

func TestSync_AggregatePropagates(t *testing.T) {
	tr, view := seeded(t,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 10),
		testutil.Proc(3, none, 5),
	)

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 20),
		testutil.Proc(3, none, 5),
	)
	if want := []string{"changed(2)", "changed(1)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if got := tr.AggregateCPU(1); got != 20 {
		t.Errorf("AggregateCPU(1) = %v, want 20", got)
	}
	if got := tr.TotalCPU(); got != 25 {
		t.Errorf("TotalCPU() = %v, want 25", got)
	}
}

func TestSync_InsertedChildRaisesParentAggregate(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1))

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 1),
		testutil.Proc(7, 1, 4),
		testutil.Proc(8, 7, 1),
	)
	if want := []string{"insert(1,0)", "changed(1)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if !tr.Has(8) || tr.ParentOf(8) != 7 {
		t.Error("inserted subtree lost its descendants")
	}
	if got := tr.AggregateCPU(1); got != 6 {
		t.Errorf("AggregateCPU(1) = %v, want 6", got)
	}
}

func TestSync_RemovalDropsSubtree(t *testing.T) {
	tr, view := seeded(t,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 0),
		testutil.Proc(3, 2, 0),
		testutil.Proc(4, 3, 0),
	)

	events := syncOK(t, tr, view, testutil.Proc(1, none, 0))
	if want := []string{"remove(1,0)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	for _, pid := range []process.PID{2, 3, 4} {
		if tr.Has(pid) {
			t.Errorf("descendant %d survived its ancestor's removal", pid)
		}
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
}

func TestSync_TopLevelRemoval(t *testing.T) {
	tr, view := seeded(t,
		testutil.Proc(1, none, 1),
		testutil.Proc(2, none, 1),
		testutil.Proc(3, none, 1),
	)

	events := syncOK(t, tr, view, testutil.Proc(1, none, 1), testutil.Proc(3, none, 1))
	if want := []string{"remove(-1,1)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if tr.Row(3) != 1 || tr.RowCount(none) != 2 {
		t.Errorf("Row(3) = %d, RowCount(none) = %d", tr.Row(3), tr.RowCount(none))
	}
	if tr.TotalCPU() != 2 {
		t.Errorf("TotalCPU() = %v, want 2", tr.TotalCPU())
	}
}

func TestSync_ReparentToLowerPID(t *testing.T) {
	// 30 moves from 20 to 10; the new parent is merged first.
	tr, view := seeded(t,
		testutil.Proc(1, none, 0),
		testutil.Proc(10, 1, 0),
		testutil.Proc(20, 1, 0),
		testutil.Proc(30, 20, 5),
	)

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 0),
		testutil.Proc(10, 1, 0),
		testutil.Proc(20, 1, 0),
		testutil.Proc(30, 10, 5),
	)

	want := []string{"remove(20,0)", "insert(10,0)", "changed(10)", "changed(20)"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if pid, _ := tr.ChildAt(10, 0); pid != 30 || tr.Name(30) != "proc-30" {
		t.Errorf("ChildAt(10, 0) = %d named %q, want 30 named proc-30", pid, tr.Name(30))
	}
	if tr.ParentOf(30) != 10 || tr.RowCount(20) != 0 {
		t.Errorf("ParentOf(30) = %d, RowCount(20) = %d", tr.ParentOf(30), tr.RowCount(20))
	}
	if tr.AggregateCPU(10) != 5 || tr.AggregateCPU(20) != 0 {
		t.Errorf("aggregates = %v, %v; want 5, 0", tr.AggregateCPU(10), tr.AggregateCPU(20))
	}
}

func TestSync_ReparentToHigherLevel(t *testing.T) {
	// 5 is adopted by its grandparent and lands before its old parent.
	tr, view := seeded(t,
		testutil.Proc(1, none, 0),
		testutil.Proc(10, 1, 0),
		testutil.Proc(5, 10, 2),
	)

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 0),
		testutil.Proc(5, 1, 2),
		testutil.Proc(10, 1, 0),
	)

	want := []string{"remove(10,0)", "insert(1,0)", "changed(10)"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if tr.Row(5) != 0 || tr.Row(10) != 1 || tr.ParentOf(5) != 1 {
		t.Errorf("Row(5) = %d, Row(10) = %d, ParentOf(5) = %d", tr.Row(5), tr.Row(10), tr.ParentOf(5))
	}
	if tr.TotalCPU() != 2 {
		t.Errorf("TotalCPU() = %v, want 2", tr.TotalCPU())
	}
}

func TestSync_ReparentCarriesDescendants(t *testing.T) {
	tr, view := seeded(t,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 0),
		testutil.Proc(3, 2, 1),
		testutil.Proc(4, 3, 1),
	)

	events := syncOK(t, tr, view,
		testutil.Proc(1, none, 0),
		testutil.Proc(2, 1, 0),
		testutil.Proc(3, 1, 1),
		testutil.Proc(4, 3, 1),
	)

	want := []string{"remove(2,0)", "changed(2)", "insert(1,1)"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if !tr.Has(4) || tr.ParentOf(4) != 3 || tr.AggregateCPU(3) != 2 {
		t.Errorf("moved subtree lost its child: Has(4) = %v, AggregateCPU(3) = %v", tr.Has(4), tr.AggregateCPU(3))
	}
}

func TestSync_ParentAndChildSwap(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1), testutil.Proc(2, 1, 1))

	events := syncOK(t, tr, view, testutil.Proc(2, none, 1), testutil.Proc(1, 2, 1))

	if want := []string{"remove(-1,0)", "insert(-1,0)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if tr.ParentOf(1) != 2 || tr.ParentOf(2) != none {
		t.Errorf("ParentOf(1) = %d, ParentOf(2) = %d", tr.ParentOf(1), tr.ParentOf(2))
	}
}

func TestSync_FieldChangeReportedBeforeChildren(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1))

	renamed := testutil.Proc(1, none, 1)
	renamed.Name = "renamed"

	events := syncOK(t, tr, view, renamed, testutil.Proc(2, 1, 3))
	if want := []string{"changed(1)", "insert(1,0)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if got := tr.AggregateCPU(1); got != 4 {
		t.Errorf("AggregateCPU(1) = %v, want 4", got)
	}
	if tr.LastSync().Changed != 1 {
		t.Errorf("LastSync().Changed = %d, want 1", tr.LastSync().Changed)
	}
}

func TestSync_EmptySnapshotThenReset(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1), testutil.Proc(2, none, 1))

	events := syncOK(t, tr, view)
	if want := []string{"remove(-1,0)", "remove(-1,0)"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}

	events = syncOK(t, tr, view, testutil.Proc(5, none, 1))
	if want := []string{"reset"}; !slices.Equal(events, want) {
		t.Errorf("events after emptying = %v, want %v", events, want)
	}
}

func TestSync_MissingPID(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1))

	broken := build(t, testutil.Proc(1, none, 1), testutil.Proc(2, none, 1))
	delete(broken.Nodes, 2)

	err := tr.Sync(broken)
	if !errors.Is(err, errors.ErrTreeInconsistent) {
		t.Fatalf("Sync() = %v, want ErrTreeInconsistent", err)
	}
	var treeErr *errors.TreeError
	if !errors.As(err, &treeErr) {
		t.Errorf("error %T is not a *TreeError", err)
	}
	if m := view.Misuses(); len(m) > 0 {
		t.Errorf("failed sync left the view unbalanced: %v", m)
	}
}

func TestSync_NilIsNoop(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1))
	if err := tr.Sync(nil); err != nil {
		t.Fatalf("Sync(nil) = %v", err)
	}
	if len(view.Events()) != 0 || tr.Len() != 1 {
		t.Error("Sync(nil) changed the tree")
	}
}

func TestSync_LogsStructuralChanges(t *testing.T) {
	var buf bytes.Buffer
	tr := New(NopView{}, logging.NewWriterLogger(&buf, logging.LevelDebug))
	if err := tr.Sync(build(t, testutil.Proc(1, none, 0))); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := tr.Sync(build(t, testutil.Proc(1, none, 0), testutil.Proc(42, 1, 0))); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"msg":"process inserted"`, `"pid":42`, `"exe":"/usr/bin/proc-42"`, `"command":"proc-42 --serve"`, `"component":"sync"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

// randomForest draws a forest over a random subset of pids 1..n. Parents
// always have lower pids, so the result is acyclic.
func randomForest(r *rand.Rand, n int) []process.Sample {
	var samples []process.Sample
	present := map[process.PID]bool{}
	for pid := process.PID(1); pid <= process.PID(n); pid++ {
		if r.IntN(3) == 0 {
			continue
		}
		parent := none
		if pid > 1 && r.IntN(4) != 0 {
			candidate := process.PID(1 + r.IntN(int(pid)-1))
			if present[candidate] {
				parent = candidate
			}
		}
		cpu := float64(r.IntN(5))
		if r.IntN(2) == 0 {
			cpu = 0
		}
		samples = append(samples, testutil.Proc(pid, parent, cpu))
		present[pid] = true
	}
	return samples
}

func TestSync_RandomSequenceMatchesSnapshot(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	view := &testutil.RecordingView{}
	tr := New(view, nil)

	for step := range 200 {
		samples := randomForest(r, 40)
		syncOK(t, tr, view, samples...)

		want := build(t, samples...)
		if tr.Len() != want.Len() {
			t.Fatalf("step %d: Len() = %d, want %d", step, tr.Len(), want.Len())
		}
		for pid, n := range want.Nodes {
			if tr.Row(pid) != n.Row || tr.ParentOf(pid) != n.Sample.Parent {
				t.Fatalf("step %d: pid %d at (%d,%d), want (%d,%d)",
					step, pid, tr.ParentOf(pid), tr.Row(pid), n.Sample.Parent, n.Row)
			}
			if tr.CPUUsage(pid) != n.Sample.CPU {
				t.Fatalf("step %d: CPUUsage(%d) = %v, want %v", step, pid, tr.CPUUsage(pid), n.Sample.CPU)
			}
			if math.Abs(tr.AggregateCPU(pid)-n.Aggregate) > 1e-9 {
				t.Fatalf("step %d: AggregateCPU(%d) = %v, want %v", step, pid, tr.AggregateCPU(pid), n.Aggregate)
			}
		}

		var sum float64
		var percent int
		tr.Walk(func(it Item) bool {
			sum += it.CPU
			if it.Depth == 0 {
				percent += int(percentage(it.Aggregate, tr.TotalCPU()))
			}
			return true
		})
		if math.Abs(sum-tr.TotalCPU()) > 1e-9 {
			t.Fatalf("step %d: TotalCPU() = %v, sum of cpu = %v", step, tr.TotalCPU(), sum)
		}
		if percent > 100 {
			t.Fatalf("step %d: top-level percentages sum to %d", step, percent)
		}

		if events := syncOK(t, tr, view, samples...); len(events) != 0 {
			t.Fatalf("step %d: idempotent re-sync emitted %v", step, events)
		}
	}
}

func TestApproxEqual(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{0, 0, true},
		{10, 10, true},
		{10, 10.05, true},
		{10, 10.5, false},
		{0, 0.001, false},
		{-5, -5.01, true},
		{100, 99.2, true},
		{100, 98.9, false},
	}
	for _, tt := range tests {
		if got := approxEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("approxEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
