package state

import (
	"errors"
	"testing"

	"github.com/san-kum/rigidtree/internal/stage"
)

func realize(s *State, to stage.Stage) {
	for st := s.Stage() + 1; st <= to; st++ {
		s.Advance(st)
	}
}

type flags []bool

func (f flags) Clone() flags { return append(flags(nil), f...) }

func TestAllocationOnlyBeforeTopology(t *testing.T) {
	s := New()
	q0, err := s.AllocateQ(3)
	if err != nil || q0 != 0 {
		t.Fatalf("AllocateQ: %d, %v", q0, err)
	}
	q1, _ := s.AllocateQ(4)
	if q1 != 3 {
		t.Errorf("second slot should start at 3, got %d", q1)
	}
	if ground, _ := s.AllocateU(0); ground != 0 {
		t.Errorf("zero-length slot offset %d", ground)
	}
	realize(s, stage.Topology)

	if _, err := s.AllocateQ(1); !errors.Is(err, ErrAllocationClosed) {
		t.Errorf("expected ErrAllocationClosed, got %v", err)
	}
	if _, err := AllocateCache(s, stage.Position, func() int { return 0 }); !errors.Is(err, ErrAllocationClosed) {
		t.Errorf("expected ErrAllocationClosed, got %v", err)
	}
	if s.NQ() != 7 {
		t.Errorf("NQ = %d", s.NQ())
	}
}

func TestVariableOwnershipInvalidates(t *testing.T) {
	s := New()
	s.AllocateQ(1)
	s.AllocateU(1)
	s.AllocateZ(1)
	inst, _ := AllocateDiscrete(s, stage.Instance, 1.0)
	realize(s, stage.Report)

	tests := []struct {
		name string
		mut  func()
		want stage.Stage
	}{
		{"q", func() { s.UpdQ()[0] = 1 }, stage.Time},
		{"u", func() { s.UpdU()[0] = 1 }, stage.Position},
		{"z", func() { s.UpdZ()[0] = 1 }, stage.Velocity},
		{"time", func() { s.SetTime(1) }, stage.Instance},
		{"instance var", func() { inst.Set(s, 2) }, stage.Model},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			realize(s, stage.Report)
			tt.mut()
			if s.Stage() != tt.want {
				t.Errorf("stage after mutating %s: got %v, want %v", tt.name, s.Stage(), tt.want)
			}
		})
	}
	if inst.Get(s) != 2 {
		t.Errorf("discrete value not stored")
	}
}

func TestSetLengthChecked(t *testing.T) {
	s := New()
	s.AllocateQ(2)
	if err := s.SetQ([]float64{1}); err == nil {
		t.Error("expected length error")
	}
	if err := s.SetQ([]float64{1, 2}); err != nil {
		t.Error(err)
	}
}

func TestCacheHandle(t *testing.T) {
	s := New()
	h, _ := AllocateCache(s, stage.Velocity, func() []float64 { return make([]float64, 2) })
	realize(s, stage.Velocity)
	v := h.Get(s, "test", func(x *[]float64) { (*x)[0] = 5 })
	if (*v)[0] != 5 || h.EvaluationCount(s) != 1 {
		t.Fatalf("unexpected cache value %v", *v)
	}
	if !h.IsValid(s) {
		t.Error("expected valid entry")
	}
	s.UpdU()
	if h.IsValid(s) {
		t.Error("velocity entry must be stale after u changes")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.AllocateQ(2)
	mask, _ := AllocateDiscrete(s, stage.Instance, flags{true, false})
	h, _ := AllocateCache(s, stage.Position, func() []float64 { return make([]float64, 1) })
	realize(s, stage.Acceleration)
	h.Get(s, "test", func(x *[]float64) { (*x)[0] = 1 })

	c := s.Clone()
	if c.Stage() != stage.Instance {
		t.Errorf("clone stage %v", c.Stage())
	}
	c.UpdQ()[0] = 9
	mask.Get(c)[0] = false
	if s.Q()[0] != 0 {
		t.Error("clone shares q storage")
	}
	if !mask.Get(s)[0] {
		t.Error("clone shares discrete storage")
	}
	if h.IsValid(c) {
		t.Error("clone caches should start stale")
	}
	if !h.IsValid(s) {
		t.Error("original cache should still be valid")
	}
}
