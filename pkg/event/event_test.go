package event

import (
	"errors"
	"math"
	"testing"

	"github.com/softphys/tensegrity/pkg/graph"
	"github.com/softphys/tensegrity/pkg/state"
)

func newState(t *testing.T, health, complexity float64) *state.State {
	t.Helper()
	g, err := graph.NewWithEdges(
		[]string{"a", "b"},
		[]graph.Edge{{From: "a", To: "b", Weight: 1}},
	)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	fields := func(v float64) map[string]float64 {
		return map[string]float64{"a": v, "b": v}
	}
	s, err := state.New(g, fields(health), fields(complexity), fields(0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return s
}

func TestFeatureChange(t *testing.T) {
	s := newState(t, 0.8, 0.4)

	if err := (FeatureChange{Node: "a", Magnitude: 0.1}).Apply(s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.Complexity["a"]; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("expected complexity 0.5, got %g", got)
	}
	if got := s.Health["a"]; math.Abs(got-0.75) > 1e-12 {
		t.Errorf("expected health 0.75, got %g", got)
	}
	// Untargeted node untouched.
	if s.Complexity["b"] != 0.4 || s.Health["b"] != 0.8 {
		t.Error("event leaked onto untargeted node")
	}
}

func TestRefactor(t *testing.T) {
	s := newState(t, 0.5, 0.6)

	if err := (Refactor{Node: "a", Magnitude: 0.15}).Apply(s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.Complexity["a"]; math.Abs(got-0.45) > 1e-12 {
		t.Errorf("expected complexity 0.45, got %g", got)
	}
	if got := s.Health["a"]; math.Abs(got-0.62) > 1e-12 {
		t.Errorf("expected health 0.62, got %g", got)
	}
}

func TestPatch(t *testing.T) {
	s := newState(t, 0.5, 0.6)

	if err := (Patch{Node: "b", Magnitude: 0.2}).Apply(s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.Health["b"]; math.Abs(got-0.7) > 1e-12 {
		t.Errorf("expected health 0.7, got %g", got)
	}
	if got := s.Complexity["b"]; math.Abs(got-0.61) > 1e-12 {
		t.Errorf("expected complexity 0.61, got %g", got)
	}
}

func TestHealthDecayAllNodes(t *testing.T) {
	s := newState(t, 0.5, 0.6)

	if err := (HealthDecay{Rate: 0.01}).Apply(s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, n := range []string{"a", "b"} {
		if got := s.Health[n]; math.Abs(got-0.49) > 1e-12 {
			t.Errorf("health[%s]: expected 0.49, got %g", n, got)
		}
	}
}

func TestHealthDecaySingleNode(t *testing.T) {
	s := newState(t, 0.5, 0.6)

	if err := (HealthDecay{Node: "a", Rate: 0.1}).Apply(s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(s.Health["a"]-0.4) > 1e-12 {
		t.Errorf("expected health[a]=0.4, got %g", s.Health["a"])
	}
	if s.Health["b"] != 0.5 {
		t.Errorf("expected health[b] untouched, got %g", s.Health["b"])
	}
}

// Clamping must hold under adversarial magnitudes and repeated
// application: no event sequence may push a field outside [0,1].
func TestClampingUnderRepeatedApplication(t *testing.T) {
	s := newState(t, 0.5, 0.5)

	events := []Event{
		FeatureChange{Node: "a", Magnitude: 5},
		Patch{Node: "a", Magnitude: 9},
		Refactor{Node: "a", Magnitude: 7},
		HealthDecay{Rate: 3},
	}
	for round := 0; round < 10; round++ {
		for _, e := range events {
			if err := e.Apply(s); err != nil {
				t.Fatalf("round %d, %s: %v", round, e, err)
			}
			for _, n := range []string{"a", "b"} {
				if s.Health[n] < 0 || s.Health[n] > 1 {
					t.Fatalf("%s pushed health[%s] to %g", e, n, s.Health[n])
				}
				if s.Complexity[n] < 0 || s.Complexity[n] > 1 {
					t.Fatalf("%s pushed complexity[%s] to %g", e, n, s.Complexity[n])
				}
			}
		}
	}
}

func TestUnknownNodeFailsFast(t *testing.T) {
	s := newState(t, 0.5, 0.5)

	for _, e := range []Event{
		FeatureChange{Node: "ghost", Magnitude: 0.1},
		Refactor{Node: "ghost", Magnitude: 0.1},
		Patch{Node: "ghost", Magnitude: 0.1},
		HealthDecay{Node: "ghost", Rate: 0.1},
	} {
		err := e.Apply(s)
		var unknown *graph.UnknownNodeError
		if !errors.As(err, &unknown) {
			t.Errorf("%s: expected UnknownNodeError, got %v", e, err)
		}
	}
}

func TestKindsAndStrings(t *testing.T) {
	cases := []struct {
		event Event
		kind  Kind
		str   string
	}{
		{FeatureChange{Node: "a", Magnitude: 0.1}, KindFeatureChange, "FeatureChange(node=a, magnitude=0.10)"},
		{Refactor{Node: "a", Magnitude: 0.15}, KindRefactor, "Refactor(node=a, magnitude=0.15)"},
		{Patch{Node: "a", Magnitude: 0.2}, KindPatch, "Patch(node=a, magnitude=0.20)"},
		{HealthDecay{Rate: 0.01}, KindHealthDecay, "HealthDecay(target=all, rate=0.010)"},
	}
	for _, c := range cases {
		if c.event.Kind() != c.kind {
			t.Errorf("expected kind %s, got %s", c.kind, c.event.Kind())
		}
		if c.event.String() != c.str {
			t.Errorf("expected %q, got %q", c.str, c.event.String())
		}
	}
}
