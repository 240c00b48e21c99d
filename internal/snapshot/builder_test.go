package snapshot

import (
	"math"
	"slices"
	"testing"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/testutil"
)

const none = process.NoParent

func TestBuild_Flat(t *testing.T) {
	entries := testutil.Flat(
		testutil.Proc(1, none, 1),
		testutil.Proc(30, 1, 2),
		testutil.Proc(5, 1, 3),
		testutil.Proc(12, 5, 4),
		testutil.Proc(2, none, 5),
	)

	s, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := s.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if want := []process.PID{1, 2}; !slices.Equal(s.Top, want) {
		t.Errorf("Top = %v, want %v", s.Top, want)
	}
	if want := []process.PID{5, 30}; !slices.Equal(s.Nodes[1].Children, want) {
		t.Errorf("children of 1 = %v, want %v", s.Nodes[1].Children, want)
	}
	if s.Nodes[30].Row != 1 {
		t.Errorf("row of 30 = %d, want 1", s.Nodes[30].Row)
	}
	if s.Nodes[2].Row != 1 {
		t.Errorf("row of 2 = %d, want 1", s.Nodes[2].Row)
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}

	t.Run("total cpu is the sum of every node", func(t *testing.T) {
		if s.TotalCPU != 15 {
			t.Errorf("TotalCPU = %v, want 15", s.TotalCPU)
		}
		if s.TotalCPU != s.SumCPU() {
			t.Errorf("TotalCPU = %v, SumCPU = %v", s.TotalCPU, s.SumCPU())
		}
	})

	t.Run("aggregates cover subtrees", func(t *testing.T) {
		want := map[process.PID]float64{1: 10, 5: 7, 12: 4, 30: 2, 2: 5}
		for pid, agg := range want {
			if got := s.Nodes[pid].Aggregate; got != agg {
				t.Errorf("Aggregate(%d) = %v, want %v", pid, got, agg)
			}
		}
	})
}

func TestBuild_Nested(t *testing.T) {
	entries := testutil.Enumeration(
		testutil.Nested(testutil.Proc(10, none, 1),
			testutil.Nested(testutil.Proc(11, 10, 2),
				testutil.Nested(testutil.Proc(13, 11, 3)),
			),
			testutil.Nested(testutil.Proc(12, 10, 4)),
		),
	)

	s, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := s.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (nested tasks must be flattened)", s.Len())
	}
	if want := []process.PID{11, 12}; !slices.Equal(s.Nodes[10].Children, want) {
		t.Errorf("children of 10 = %v, want %v", s.Nodes[10].Children, want)
	}
	if want := []process.PID{13}; !slices.Equal(s.Nodes[11].Children, want) {
		t.Errorf("children of 11 = %v, want %v", s.Nodes[11].Children, want)
	}
	if s.TotalCPU != 10 {
		t.Errorf("TotalCPU = %v, want 10", s.TotalCPU)
	}
	if s.Nodes[10].Aggregate != s.TotalCPU {
		t.Errorf("root aggregate = %v, want %v", s.Nodes[10].Aggregate, s.TotalCPU)
	}
}

func TestBuild_CopiesCommandTokens(t *testing.T) {
	entries := testutil.Flat(testutil.Proc(1, none, 0))
	s, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	entries[1].Cmd[0] = "mutated"
	if s.Nodes[1].Sample.Cmd[0] == "mutated" {
		t.Error("snapshot shares command storage with the enumeration")
	}
}

func TestBuild_Empty(t *testing.T) {
	s, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) failed: %v", err)
	}
	if !s.Empty() || s.Len() != 0 || s.TotalCPU != 0 {
		t.Errorf("Build(nil) = %+v, want empty snapshot", s)
	}
}

func TestBuild_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		entries map[process.PID]process.Entry
	}{
		{
			name: "entry keyed under a different pid",
			entries: map[process.PID]process.Entry{
				7: {Sample: testutil.Proc(8, none, 0)},
			},
		},
		{
			name: "task declares a different parent",
			entries: testutil.Enumeration(
				testutil.Nested(testutil.Proc(1, none, 0),
					testutil.Nested(testutil.Proc(2, 99, 0)),
				),
			),
		},
		{
			name: "declared parent not enumerated",
			entries: testutil.Flat(
				testutil.Proc(1, none, 0),
				testutil.Proc(2, 42, 0),
			),
		},
		{
			name: "pid reported twice",
			entries: testutil.Enumeration(
				testutil.Nested(testutil.Proc(1, none, 0),
					testutil.Nested(testutil.Proc(3, 1, 0)),
				),
				testutil.Nested(testutil.Proc(3, 1, 0)),
			),
		},
		{
			name: "parent cycle",
			entries: testutil.Flat(
				testutil.Proc(1, none, 0),
				testutil.Proc(4, 5, 0),
				testutil.Proc(5, 4, 0),
			),
		},
		{
			name: "self parent",
			entries: testutil.Flat(
				testutil.Proc(6, 6, 0),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Build(tt.entries)
			if err == nil {
				t.Fatalf("Build succeeded with %d nodes, want corrupt enumeration error", s.Len())
			}
			if !errors.Is(err, errors.ErrCorruptEnumeration) {
				t.Errorf("error = %v, want ErrCorruptEnumeration", err)
			}
			var snapErr *errors.SnapshotError
			if !errors.As(err, &snapErr) {
				t.Errorf("error %T is not a *SnapshotError", err)
			}
		})
	}
}

func TestCheck_DetectsViolations(t *testing.T) {
	build := func(t *testing.T) *Snapshot {
		t.Helper()
		s, err := Build(testutil.Flat(
			testutil.Proc(1, none, 0),
			testutil.Proc(2, 1, 0),
			testutil.Proc(3, 1, 0),
		))
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return s
	}

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"dangling child", func(s *Snapshot) { s.Nodes[1].Children = append(s.Nodes[1].Children, 9) }},
		{"unsorted siblings", func(s *Snapshot) {
			s.Nodes[1].Children = []process.PID{3, 2}
			s.Nodes[3].Row, s.Nodes[2].Row = 0, 1
		}},
		{"row gap", func(s *Snapshot) { s.Nodes[3].Row = 2 }},
		{"parent disagrees", func(s *Snapshot) { s.Nodes[2].Sample.Parent = none }},
		{"unreachable node", func(s *Snapshot) { s.Nodes[1].Children = []process.PID{2} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := build(t)
			tt.mutate(s)
			err := s.Check()
			if !errors.Is(err, errors.ErrTreeInconsistent) {
				t.Errorf("Check() = %v, want ErrTreeInconsistent", err)
			}
		})
	}
}

func TestSnapshot_Walk(t *testing.T) {
	s, err := Build(testutil.Flat(
		testutil.Proc(1, none, 0),
		testutil.Proc(4, 1, 0),
		testutil.Proc(2, 1, 0),
		testutil.Proc(3, 2, 0),
		testutil.Proc(9, none, 0),
	))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var order []process.PID
	var depths []int
	s.Walk(func(n *Node, depth int) bool {
		order = append(order, n.Sample.PID)
		depths = append(depths, depth)
		return true
	})
	if want := []process.PID{1, 2, 3, 4, 9}; !slices.Equal(order, want) {
		t.Errorf("walk order = %v, want %v", order, want)
	}
	if want := []int{0, 1, 2, 1, 0}; !slices.Equal(depths, want) {
		t.Errorf("walk depths = %v, want %v", depths, want)
	}

	order = order[:0]
	s.Walk(func(n *Node, depth int) bool {
		order = append(order, n.Sample.PID)
		return n.Sample.PID != 2
	})
	if want := []process.PID{1, 2, 4, 9}; !slices.Equal(order, want) {
		t.Errorf("pruned walk order = %v, want %v", order, want)
	}
}

func TestSnapshot_Siblings(t *testing.T) {
	s, err := Build(testutil.Flat(testutil.Proc(1, none, 0), testutil.Proc(2, 1, 0)))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if top, ok := s.Siblings(none); !ok || !slices.Equal(top, []process.PID{1}) {
		t.Errorf("Siblings(none) = %v, %v", top, ok)
	}
	if kids, ok := s.Siblings(1); !ok || !slices.Equal(kids, []process.PID{2}) {
		t.Errorf("Siblings(1) = %v, %v", kids, ok)
	}
	if _, ok := s.Siblings(77); ok {
		t.Error("Siblings(77) reported an unknown parent as present")
	}
}

func TestBuild_RandomForestInvariants(t *testing.T) {
	// Every fifth pid is top level; the rest hang off a lower pid, so the
	// forest is acyclic by construction.
	var samples []process.Sample
	for i := process.PID(1); i <= 200; i++ {
		parent := none
		if i%5 != 0 {
			parent = (i * 7 / 11) % i
			if parent == 0 {
				parent = none
			}
		}
		samples = append(samples, testutil.Proc(i, parent, float64(i%13)))
	}

	s, err := Build(testutil.Flat(samples...))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := s.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if math.Abs(s.TotalCPU-s.SumCPU()) > 1e-9 {
		t.Errorf("TotalCPU = %v, SumCPU = %v", s.TotalCPU, s.SumCPU())
	}
	var topAgg float64
	for _, pid := range s.Top {
		topAgg += s.Nodes[pid].Aggregate
	}
	if math.Abs(topAgg-s.TotalCPU) > 1e-9 {
		t.Errorf("sum of top-level aggregates = %v, want %v", topAgg, s.TotalCPU)
	}
}
