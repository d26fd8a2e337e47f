package actor

import (
	"math/rand"
	"testing"

	"github.com/softphys/tensegrity/pkg/event"
	"github.com/softphys/tensegrity/pkg/graph"
	"github.com/softphys/tensegrity/pkg/state"
)

// threeNodeState builds a small state with distinct demand and badness
// profiles: hot has the demand, rotten has the badness.
func threeNodeState(t *testing.T) *state.State {
	t.Helper()
	g, err := graph.NewWithEdges(
		[]string{"hot", "rotten", "quiet"},
		[]graph.Edge{
			{From: "hot", To: "rotten", Weight: 0.5},
			{From: "rotten", To: "quiet", Weight: 0.5},
		},
	)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	health := map[string]float64{"hot": 0.9, "rotten": 0.1, "quiet": 0.9}
	complexity := map[string]float64{"hot": 0.2, "rotten": 0.9, "quiet": 0.2}
	demand := map[string]float64{"hot": 0.9, "rotten": 0.3, "quiet": 0.1}

	s, err := state.New(g, health, complexity, demand)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()
	s.UpdateEnergies()
	return s
}

func TestFeatureEngineerTargetsDemand(t *testing.T) {
	s := threeNodeState(t)
	eng := NewFeatureEngineer("alice", 0.8, 0.2)

	ev := eng.Act(s)
	fc, ok := ev.(event.FeatureChange)
	if !ok {
		t.Fatalf("expected FeatureChange, got %T", ev)
	}
	if fc.Node != "hot" {
		t.Errorf("expected target hot, got %s", fc.Node)
	}
	if fc.Magnitude != FeatureMagnitude {
		t.Errorf("expected magnitude %g, got %g", FeatureMagnitude, fc.Magnitude)
	}
	if eng.ActionCount() != 1 {
		t.Errorf("expected action count 1, got %d", eng.ActionCount())
	}
}

func TestRefactorEngineerTargetsBadness(t *testing.T) {
	s := threeNodeState(t)
	eng := NewRefactorEngineer("bob", 0.2, 0.8)

	ev := eng.Act(s)
	rf, ok := ev.(event.Refactor)
	if !ok {
		t.Fatalf("expected Refactor, got %T", ev)
	}
	if rf.Node != "rotten" {
		t.Errorf("expected target rotten, got %s", rf.Node)
	}
	if rf.Magnitude != RefactorMagnitude {
		t.Errorf("expected magnitude %g, got %g", RefactorMagnitude, rf.Magnitude)
	}
}

// Equal scores must resolve to the first node in graph insertion
// order, never randomly.
func TestArgMaxTieBreakInsertionOrder(t *testing.T) {
	g, err := graph.NewWithEdges(
		[]string{"second", "first"},
		[]graph.Edge{{From: "second", To: "first", Weight: 1}},
	)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	fields := func(v float64) map[string]float64 {
		return map[string]float64{"second": v, "first": v}
	}
	s, err := state.New(g, fields(0.5), fields(0.5), fields(0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()

	eng := NewFeatureEngineer("alice", 0.8, 0.2)
	for i := 0; i < 5; i++ {
		ev := eng.ChooseAction(s).(event.FeatureChange)
		if ev.Node != "second" {
			t.Fatalf("tie must go to first-inserted node, got %s", ev.Node)
		}
	}
}

func TestAIAgentStressReducesFeatureBias(t *testing.T) {
	s := threeNodeState(t)

	// Count feature choices over many draws at low vs high stress.
	countFeatures := func(h float64) int {
		s.H = h
		agent := NewAIAgent("agent-1", 0.6, false, rand.New(rand.NewSource(1)))
		features := 0
		for i := 0; i < 2000; i++ {
			if _, ok := agent.ChooseAction(s).(event.FeatureChange); ok {
				features++
			}
		}
		return features
	}

	calm := countFeatures(0)
	stressed := countFeatures(4) // stress factor saturates at 1

	// adjustedBias: calm = 0.6, stressed = 0.3.
	if calm <= stressed {
		t.Errorf("stress must reduce feature preference: calm=%d stressed=%d", calm, stressed)
	}
	if calm < 1000 || calm > 1400 {
		t.Errorf("calm feature rate implausible for bias 0.6: %d/2000", calm)
	}
	if stressed < 450 || stressed > 750 {
		t.Errorf("stressed feature rate implausible for bias 0.3: %d/2000", stressed)
	}
}

func TestAIAgentFlowSteering(t *testing.T) {
	s := threeNodeState(t)

	// Force a known flow field: business pressure on hot, stability
	// pressure on rotten.
	s.Flow["hot"] = state.FlowVector{X: 0.9, Y: 0.0}
	s.Flow["rotten"] = state.FlowVector{X: 0.1, Y: 0.8}
	s.Flow["quiet"] = state.FlowVector{X: 0.0, Y: 0.1}

	// Bias 1 with H=0 always picks feature; bias 0 always refactor.
	s.H = 0
	featAgent := NewAIAgent("feat", 1.0, true, rand.New(rand.NewSource(1)))
	if ev := featAgent.ChooseAction(s).(event.FeatureChange); ev.Node != "hot" {
		t.Errorf("feature flow steering: expected hot, got %s", ev.Node)
	}

	refAgent := NewAIAgent("ref", 0.0, true, rand.New(rand.NewSource(1)))
	if ev := refAgent.ChooseAction(s).(event.Refactor); ev.Node != "rotten" {
		t.Errorf("refactor flow steering: expected rotten, got %s", ev.Node)
	}
}

func TestAIAgentFallbackWithoutFlow(t *testing.T) {
	s := threeNodeState(t)

	featAgent := NewAIAgent("feat", 1.0, false, rand.New(rand.NewSource(1)))
	s.H = 0
	if ev := featAgent.ChooseAction(s).(event.FeatureChange); ev.Node != "hot" {
		t.Errorf("demand fallback: expected hot, got %s", ev.Node)
	}

	refAgent := NewAIAgent("ref", 0.0, false, rand.New(rand.NewSource(1)))
	if ev := refAgent.ChooseAction(s).(event.Refactor); ev.Node != "rotten" {
		t.Errorf("badness fallback: expected rotten, got %s", ev.Node)
	}
}

func TestSelectors(t *testing.T) {
	s := threeNodeState(t)

	if got := SelectByDemand(s, 2); got[0] != "hot" || got[1] != "rotten" {
		t.Errorf("by demand: got %v", got)
	}
	if got := SelectByBadness(s, 1); got[0] != "rotten" {
		t.Errorf("by badness: got %v", got)
	}
	if got := SelectByLocalEnergy(s, 1); got[0] != "rotten" {
		// rotten disagrees with both neighbors; it concentrates the
		// local Dirichlet energy.
		t.Errorf("by local energy: got %v", got)
	}
	if got := SelectByFlowMagnitude(s, 1); len(got) != 1 {
		t.Errorf("by flow magnitude: got %v", got)
	}

	rng := rand.New(rand.NewSource(3))
	if got := SelectRandom(s, 2, rng); len(got) != 2 || got[0] == got[1] {
		t.Errorf("random selection must be distinct, got %v", got)
	}
	if got := SelectRandom(s, 10, rng); len(got) != 3 {
		t.Errorf("random selection capped at node count, got %v", got)
	}
}

func TestSelectWeightedByFieldUniformFallback(t *testing.T) {
	s := threeNodeState(t)
	rng := rand.New(rand.NewSource(5))

	// All-zero weights: uniform draw, not a division by zero.
	zero := map[string]float64{"hot": 0, "rotten": 0, "quiet": 0}
	seen := map[string]int{}
	for i := 0; i < 3000; i++ {
		seen[SelectWeightedByField(s, zero, rng)]++
	}
	for n, c := range seen {
		if c < 800 || c > 1200 {
			t.Errorf("uniform fallback skewed: %s drawn %d/3000", n, c)
		}
	}

	// Weighted draw follows the field.
	weighted := map[string]float64{"hot": 0.9, "rotten": 0.1, "quiet": 0}
	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		counts[SelectWeightedByField(s, weighted, rng)]++
	}
	if counts["quiet"] != 0 {
		t.Errorf("zero-weight node drawn %d times", counts["quiet"])
	}
	if counts["hot"] < 2400 {
		t.Errorf("high-weight node underdrawn: %d/3000", counts["hot"])
	}
}

func TestActionCounterOnlyOnEvent(t *testing.T) {
	g := graph.New() // empty graph: policies emit nothing
	s, err := state.New(g, map[string]float64{}, map[string]float64{}, map[string]float64{})
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	eng := NewFeatureEngineer("alice", 0.8, 0.2)
	if ev := eng.Act(s); ev != nil {
		t.Fatalf("expected nil event on empty graph, got %v", ev)
	}
	if eng.ActionCount() != 0 {
		t.Errorf("counter must not advance on nil event, got %d", eng.ActionCount())
	}

	agent := NewAIAgent("agent", 0.6, true, rand.New(rand.NewSource(1)))
	if ev := agent.Act(s); ev != nil {
		t.Fatalf("expected nil event on empty graph, got %v", ev)
	}
	if agent.ActionCount() != 0 {
		t.Errorf("counter must not advance on nil event, got %d", agent.ActionCount())
	}
}
