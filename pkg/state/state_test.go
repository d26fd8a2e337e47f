package state

import (
	"math"
	"strings"
	"testing"

	"github.com/softphys/tensegrity/pkg/graph"
)

func pairGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewWithEdges(
		[]string{"a", "b"},
		[]graph.Edge{{From: "a", To: "b", Weight: 1}},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	return g
}

func uniform(g *graph.Graph, v float64) map[string]float64 {
	out := make(map[string]float64)
	for _, n := range g.Nodes() {
		out[n] = v
	}
	return out
}

func TestNewRejectsMissingNode(t *testing.T) {
	g := pairGraph(t)
	health := map[string]float64{"a": 0.5} // b missing

	_, err := New(g, health, uniform(g, 0.5), uniform(g, 0.5))
	if err == nil || !strings.Contains(err.Error(), "missing node") {
		t.Fatalf("expected missing-node error, got %v", err)
	}
}

func TestNewRejectsOutOfRange(t *testing.T) {
	g := pairGraph(t)
	complexity := map[string]float64{"a": 0.5, "b": 1.3}

	_, err := New(g, uniform(g, 0.5), complexity, uniform(g, 0.5))
	if err == nil || !strings.Contains(err.Error(), "outside [0,1]") {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestNewRejectsStrayKey(t *testing.T) {
	g := pairGraph(t)
	demand := uniform(g, 0.5)
	demand["typo"] = 0.5

	_, err := New(g, uniform(g, 0.5), uniform(g, 0.5), demand)
	if err == nil {
		t.Fatal("expected error for field key not in graph")
	}
}

// Given health=0.5, complexity=0.6 and the default weights,
// risk = 0.6·0.5 = 0.3 and bad = 0.4·0.5 + 0.3·0.6 + 0.3·0.3 = 0.47.
func TestDerivedFieldValues(t *testing.T) {
	g := pairGraph(t)
	s, err := New(g, uniform(g, 0.5), uniform(g, 0.6), uniform(g, 0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	s.UpdateDerivedFields()

	if r := s.Risk["a"]; math.Abs(r-0.3) > 1e-12 {
		t.Errorf("expected risk 0.3, got %g", r)
	}
	if b := s.Bad["a"]; math.Abs(b-0.47) > 1e-12 {
		t.Errorf("expected bad 0.47, got %g", b)
	}
}

func TestGradientAndFlow(t *testing.T) {
	g := pairGraph(t)
	health := map[string]float64{"a": 1.0, "b": 0.0}
	complexity := map[string]float64{"a": 0.0, "b": 1.0}
	demand := map[string]float64{"a": 0.5, "b": 0.0}

	s, err := New(g, health, complexity, demand)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()

	// bad[a] = 0, bad[b] = 0.4 + 0.3 + 0.3 = 1.0
	if b := s.Bad["b"]; math.Abs(b-1.0) > 1e-12 {
		t.Fatalf("expected bad[b]=1.0, got %g", b)
	}
	if gr := s.Grad["a"]; math.Abs(gr-(-1.0)) > 1e-12 {
		t.Errorf("expected grad[a]=-1, got %g", gr)
	}
	if gr := s.Grad["b"]; math.Abs(gr-1.0) > 1e-12 {
		t.Errorf("expected grad[b]=1, got %g", gr)
	}

	// flow = (0.6·demand, 0.4·(-grad))
	fa := s.Flow["a"]
	if math.Abs(fa.X-0.3) > 1e-12 || math.Abs(fa.Y-0.4) > 1e-12 {
		t.Errorf("expected flow[a]=(0.3, 0.4), got (%g, %g)", fa.X, fa.Y)
	}
	fb := s.Flow["b"]
	if math.Abs(fb.X) > 1e-12 || math.Abs(fb.Y-(-0.4)) > 1e-12 {
		t.Errorf("expected flow[b]=(0, -0.4), got (%g, %g)", fb.X, fb.Y)
	}
}

func TestFirstStepKineticEnergyIsZero(t *testing.T) {
	g := pairGraph(t)
	s, err := New(g, uniform(g, 0.5), uniform(g, 0.6), uniform(g, 0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	s.UpdateDerivedFields()
	s.UpdateEnergies()

	// BadPrev is empty before the first StepForward, so T != 0 here
	// would mean the zero-initialized snapshot convention broke.
	want := 0.5 * 2 * 0.47 * 0.47
	if math.Abs(s.T-want) > 1e-12 {
		t.Errorf("first-step T against zero snapshot: expected %g, got %g", want, s.T)
	}

	// After StepForward an unchanged field yields T = 0.
	s.StepForward()
	s.UpdateDerivedFields()
	s.UpdateEnergies()
	if s.T != 0 {
		t.Errorf("unchanged badness: expected T=0, got %g", s.T)
	}
}

func TestStepForward(t *testing.T) {
	g := pairGraph(t)
	s, err := New(g, uniform(g, 0.5), uniform(g, 0.6), uniform(g, 0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()

	before := map[string]float64{}
	for n, v := range s.Bad {
		before[n] = v
	}

	s.StepForward()

	if s.TimeStep != 1 {
		t.Errorf("expected time step 1, got %d", s.TimeStep)
	}
	for n, v := range before {
		if s.BadPrev[n] != v {
			t.Errorf("BadPrev[%s]: expected %g, got %g", n, v, s.BadPrev[n])
		}
	}

	// The snapshot is a copy: mutating Bad must not leak into it.
	s.Health["a"] = 0.1
	s.UpdateDerivedFields()
	if s.BadPrev["a"] != before["a"] {
		t.Error("BadPrev aliases Bad; snapshot must be a copy")
	}
}

func TestEnergiesConsistent(t *testing.T) {
	g := pairGraph(t)
	health := map[string]float64{"a": 0.9, "b": 0.2}
	complexity := map[string]float64{"a": 0.2, "b": 0.8}
	demand := map[string]float64{"a": 0.3, "b": 0.7}

	s, err := New(g, health, complexity, demand)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()
	s.UpdateEnergies()

	if math.Abs(s.V-(s.VStruct+s.VBus)) > 1e-12 {
		t.Errorf("V != VStruct+VBus: %g vs %g", s.V, s.VStruct+s.VBus)
	}
	if math.Abs(s.H-(s.T+s.V)) > 1e-12 {
		t.Errorf("H != T+V: %g vs %g", s.H, s.T+s.V)
	}
	if math.Abs(s.Lagrangian-(s.T-s.V)) > 1e-12 {
		t.Errorf("Lagrangian != T-V")
	}
	if s.VStruct < 0 {
		t.Errorf("structural potential negative: %g", s.VStruct)
	}
}

func TestRecordIncidentSnapshotsFields(t *testing.T) {
	g := pairGraph(t)
	s, err := New(g, uniform(g, 0.5), uniform(g, 0.6), uniform(g, 0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()
	s.UpdateEnergies()

	inc := s.RecordIncident("a", "badness_critical", s.Bad["a"])
	if inc.Node != "a" || inc.Type != "badness_critical" {
		t.Errorf("unexpected incident record: %+v", inc)
	}
	if inc.Bad != s.Bad["a"] || inc.Health != s.Health["a"] {
		t.Error("incident must snapshot fields at occurrence")
	}
	if len(s.Incidents) != 1 {
		t.Fatalf("expected 1 logged incident, got %d", len(s.Incidents))
	}
}

func TestHighRiskNodesAndHubs(t *testing.T) {
	g := pairGraph(t)
	health := map[string]float64{"a": 1.0, "b": 0.0}
	complexity := map[string]float64{"a": 0.0, "b": 1.0}

	s, err := New(g, health, complexity, uniform(g, 0.5))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()
	s.UpdateEnergies()

	risky := s.HighRiskNodes(0.7)
	if len(risky) != 1 || risky[0] != "b" {
		t.Errorf("expected [b], got %v", risky)
	}

	hubs := s.HighEnergyHubs(1)
	if len(hubs) != 1 {
		t.Fatalf("expected 1 hub, got %d", len(hubs))
	}
	// Both nodes have equal E_local on a single edge; the tie keeps
	// graph node order.
	if hubs[0].Node != "a" {
		t.Errorf("expected tie broken by node order (a), got %s", hubs[0].Node)
	}
}

func TestSummaryStats(t *testing.T) {
	g := pairGraph(t)
	health := map[string]float64{"a": 1.0, "b": 0.0}

	s, err := New(g, health, uniform(g, 0.4), uniform(g, 0.4))
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	s.UpdateDerivedFields()
	s.UpdateEnergies()

	sum := s.SummaryStats()
	if math.Abs(sum.HealthMean-0.5) > 1e-12 {
		t.Errorf("expected health mean 0.5, got %g", sum.HealthMean)
	}
	if math.Abs(sum.HealthStd-0.5) > 1e-12 {
		t.Errorf("expected health std 0.5, got %g", sum.HealthStd)
	}
	if sum.H != s.H || sum.IncidentCount != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}
