package tree

import (
	"slices"
	"testing"

	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/testutil"
)

func TestTree_Accessors(t *testing.T) {
	tr, _ := seeded(t,
		testutil.Proc(1, none, 2),
		testutil.Proc(10, 1, 4),
		testutil.Proc(11, 1, 2),
		testutil.Proc(30, none, 0),
	)

	if got := tr.RowCount(none); got != 2 {
		t.Errorf("RowCount(none) = %d, want 2", got)
	}
	if got := tr.RowCount(1); got != 2 {
		t.Errorf("RowCount(1) = %d, want 2", got)
	}
	if got := tr.RowCount(999); got != 0 {
		t.Errorf("RowCount(999) = %d, want 0", got)
	}

	if pid, ok := tr.ChildAt(1, 1); !ok || pid != 11 {
		t.Errorf("ChildAt(1, 1) = %d, %v, want 11", pid, ok)
	}
	if pid, ok := tr.ChildAt(none, 1); !ok || pid != 30 {
		t.Errorf("ChildAt(none, 1) = %d, %v, want 30", pid, ok)
	}
	for _, row := range []int{-1, 2} {
		if _, ok := tr.ChildAt(1, row); ok {
			t.Errorf("ChildAt(1, %d) reported a row that does not exist", row)
		}
	}

	if got := tr.ParentOf(11); got != 1 {
		t.Errorf("ParentOf(11) = %d, want 1", got)
	}
	if got := tr.ParentOf(1); got != none {
		t.Errorf("ParentOf(1) = %d, want NoParent", got)
	}
	if got := tr.ParentOf(999); got != none {
		t.Errorf("ParentOf(999) = %d, want NoParent", got)
	}
	if got := tr.Row(999); got != -1 {
		t.Errorf("Row(999) = %d, want -1", got)
	}

	if got := tr.Name(10); got != "proc-10" {
		t.Errorf("Name(10) = %q", got)
	}
	if got := tr.Executable(10); got != "/usr/bin/proc-10" {
		t.Errorf("Executable(10) = %q", got)
	}
	if got := tr.Command(10); got != "proc-10 --serve" {
		t.Errorf("Command(10) = %q", got)
	}
	if got := tr.UID(10); got != 1000 {
		t.Errorf("UID(10) = %d", got)
	}
	if got := tr.Memory(10); got != 10*1024 {
		t.Errorf("Memory(10) = %d", got)
	}
	if got := tr.AggregateCPU(1); got != 8 {
		t.Errorf("AggregateCPU(1) = %v, want 8", got)
	}
	if got := tr.TotalCPU(); got != 8 {
		t.Errorf("TotalCPU() = %v, want 8", got)
	}
	if got := tr.CPUPercentage(10); got != 50 {
		t.Errorf("CPUPercentage(10) = %d, want 50", got)
	}
	if got := tr.CPUPercentage(999); got != 0 {
		t.Errorf("CPUPercentage(999) = %d, want 0", got)
	}

	if tr.Name(999) != "" || tr.Command(999) != "" || tr.Memory(999) != 0 {
		t.Error("accessors for an unknown pid should return zero values")
	}
}

func TestTree_SampleIsACopy(t *testing.T) {
	tr, _ := seeded(t, testutil.Proc(1, none, 1))

	s, ok := tr.Sample(1)
	if !ok {
		t.Fatal("Sample(1) not found")
	}
	s.Cmd[0] = "mutated"
	s.Name = "mutated"
	if tr.Command(1) != "proc-1 --serve" || tr.Name(1) != "proc-1" {
		t.Error("mutating a returned sample changed the tree")
	}
	if _, ok := tr.Sample(2); ok {
		t.Error("Sample(2) found a pid that does not exist")
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name       string
		cpu, total float64
		want       uint8
	}{
		{"zero total", 5, 0, 0},
		{"zero cpu", 0, 10, 0},
		{"truncates", 1, 3, 33},
		{"whole", 10, 10, 100},
		{"saturates", 400, 100, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentage(tt.cpu, tt.total); got != tt.want {
				t.Errorf("percentage(%v, %v) = %d, want %d", tt.cpu, tt.total, got, tt.want)
			}
		})
	}
}

func TestTree_Walk(t *testing.T) {
	tr, _ := seeded(t,
		testutil.Proc(1, none, 1),
		testutil.Proc(3, 1, 1),
		testutil.Proc(2, 1, 1),
		testutil.Proc(4, 2, 1),
		testutil.Proc(5, none, 1),
	)

	var pids []process.PID
	var depths []int
	tr.Walk(func(it Item) bool {
		pids = append(pids, it.PID)
		depths = append(depths, it.Depth)
		if it.PID == 1 && (it.Children != 2 || it.Aggregate != 4) {
			t.Errorf("item 1 = %+v", it)
		}
		return true
	})
	if want := []process.PID{1, 2, 4, 3, 5}; !slices.Equal(pids, want) {
		t.Errorf("walk order = %v, want %v", pids, want)
	}
	if want := []int{0, 1, 2, 1, 0}; !slices.Equal(depths, want) {
		t.Errorf("depths = %v, want %v", depths, want)
	}

	pids = pids[:0]
	tr.Walk(func(it Item) bool {
		pids = append(pids, it.PID)
		return it.Depth == 0 && it.PID != 1
	})
	if want := []process.PID{1, 5}; !slices.Equal(pids, want) {
		t.Errorf("collapsed walk = %v, want %v", pids, want)
	}
}

func TestTree_Clear(t *testing.T) {
	tr, view := seeded(t, testutil.Proc(1, none, 1))

	tr.Clear()
	if want := []string{"reset"}; !slices.Equal(view.Events(), want) {
		t.Errorf("events = %v, want %v", view.Events(), want)
	}
	if tr.Len() != 0 || tr.TotalCPU() != 0 {
		t.Error("Clear left processes behind")
	}
}

func TestTree_NilCollaborators(t *testing.T) {
	tr := New(nil, nil)
	tr.SetView(nil)
	if err := tr.Sync(build(t, testutil.Proc(1, none, 1))); err != nil {
		t.Fatalf("Sync with nil view failed: %v", err)
	}
	if !tr.Has(1) {
		t.Error("Has(1) = false after Sync")
	}
}
