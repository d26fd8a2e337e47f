// Package state holds the complete simulation state at one time step:
// the coupling graph, the scalar fields over its nodes, and the cached
// energy values derived from them.
//
// Three fields are primitive and mutated only by events (health,
// complexity, demand, all in [0,1]). Four are derived and recomputed
// from the primitives in a fixed order every step (risk, bad, grad,
// flow); nothing else may write them.
package state

import (
	"fmt"
	"math"
	"sort"

	"github.com/softphys/tensegrity/pkg/energy"
	"github.com/softphys/tensegrity/pkg/graph"
)

// FieldWeights are the tunable blend weights of the derivation
// pipeline and the business potential. None of the groups are
// normalized: callers own the "should sum to 1" contract.
type FieldWeights struct {
	// Badness blend: bad = α(1-health) + β·complexity + γ·risk.
	Alpha float64
	Beta  float64
	Gamma float64

	// Flow blend: flow = (αFlow·demand, βFlow·(-grad)).
	AlphaFlow float64
	BetaFlow  float64

	// Business potential: V_bus = Σ demand·(λ1(1-health) + λ2·complexity).
	Lambda1 float64
	Lambda2 float64
}

// DefaultFieldWeights returns the calibration used by the baseline
// experiments.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{
		Alpha:     0.4,
		Beta:      0.3,
		Gamma:     0.3,
		AlphaFlow: 0.6,
		BetaFlow:  0.4,
		Lambda1:   energy.DefaultLambdaHealth,
		Lambda2:   energy.DefaultLambdaComplexity,
	}
}

// FlowVector is the per-node 2-vector combining business pressure (X)
// and stability pressure (Y, the negative badness gradient: positive Y
// means the node needs structural attention).
type FlowVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Incident is one stochastically sampled adverse event at a node,
// with a snapshot of the fields at the moment it occurred.
type Incident struct {
	TimeStep   int     `json:"time_step"`
	Node       string  `json:"node"`
	Type       string  `json:"type"`
	Severity   float64 `json:"severity"`
	Bad        float64 `json:"bad"`
	ELocal     float64 `json:"e_local"`
	Health     float64 `json:"health"`
	Complexity float64 `json:"complexity"`
}

// State is the complete simulation state. It is created once per
// scenario and mutated in place by the step loop; it is never copied
// except for the BadPrev snapshot taken at step end.
type State struct {
	Graph *graph.Graph

	// Primitive fields, mutated only by events. All in [0,1].
	Health     map[string]float64
	Complexity map[string]float64
	Demand     map[string]float64

	// Derived fields. Recomputed by UpdateDerivedFields; never
	// mutated directly.
	Risk map[string]float64
	Bad  map[string]float64
	Grad map[string]float64
	Flow map[string]FlowVector

	// BadPrev is the badness snapshot from the previous step,
	// consumed by the kinetic term. Empty before the first
	// StepForward; missing nodes read as zero.
	BadPrev map[string]float64

	// Energies, recomputed by UpdateEnergies.
	VStruct    float64
	VBus       float64
	V          float64
	T          float64
	H          float64
	Lagrangian float64

	// ELocal is the per-node local Dirichlet energy diagnostic.
	ELocal map[string]float64

	// Incidents is the append-only incident log.
	Incidents []Incident

	TimeStep int

	Weights FieldWeights
}

// New creates a simulation state over g. The three primitive field
// maps must carry exactly the graph's node set with values in [0,1];
// a malformed scenario fails here, before the first step.
func New(g *graph.Graph, health, complexity, demand map[string]float64) (*State, error) {
	for name, field := range map[string]map[string]float64{
		"health":     health,
		"complexity": complexity,
		"demand":     demand,
	} {
		if err := validateField(g, name, field); err != nil {
			return nil, err
		}
	}

	return &State{
		Graph:      g,
		Health:     health,
		Complexity: complexity,
		Demand:     demand,
		Risk:       make(map[string]float64),
		Bad:        make(map[string]float64),
		Grad:       make(map[string]float64),
		Flow:       make(map[string]FlowVector),
		BadPrev:    make(map[string]float64),
		ELocal:     make(map[string]float64),
		Weights:    DefaultFieldWeights(),
	}, nil
}

func validateField(g *graph.Graph, name string, field map[string]float64) error {
	for _, n := range g.Nodes() {
		v, ok := field[n]
		if !ok {
			return fmt.Errorf("field %s: missing node %q: %w", name, n, &graph.UnknownNodeError{Node: n})
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("field %s: node %q value %g outside [0,1]", name, n, v)
		}
	}
	for n := range field {
		if !g.HasNode(n) {
			return fmt.Errorf("field %s: %w", name, &graph.UnknownNodeError{Node: n})
		}
	}
	return nil
}

// UpdateDerivedFields recomputes risk, badness, gradient and flow from
// the primitive fields, in that exact order. Computing risk first (as
// a pure function of health and complexity) is what breaks the
// circular dependency between risk and badness.
func (s *State) UpdateDerivedFields() {
	w := s.Weights

	for _, n := range s.Graph.Nodes() {
		s.Risk[n] = s.Complexity[n] * (1 - s.Health[n])
	}

	for _, n := range s.Graph.Nodes() {
		s.Bad[n] = w.Alpha*(1-s.Health[n]) + w.Beta*s.Complexity[n] + w.Gamma*s.Risk[n]
	}

	// Discrete graph gradient of badness.
	for _, n := range s.Graph.Nodes() {
		var grad float64
		for _, nb := range s.Graph.Neighbors(n) {
			grad += s.Graph.Weight(n, nb) * (s.Bad[n] - s.Bad[nb])
		}
		s.Grad[n] = grad
	}

	for _, n := range s.Graph.Nodes() {
		s.Flow[n] = FlowVector{
			X: w.AlphaFlow * s.Demand[n],
			Y: w.BetaFlow * -s.Grad[n],
		}
	}
}

// UpdateEnergies recomputes every energy value from the current
// fields. Must run strictly after UpdateDerivedFields so the badness
// vector is current. The kinetic term consumes the BadPrev snapshot
// captured by the previous StepForward.
func (s *State) UpdateEnergies() {
	nodes := s.Graph.Nodes()
	bad := make([]float64, len(nodes))
	badPrev := make([]float64, len(nodes))
	for i, n := range nodes {
		bad[i] = s.Bad[n]
		badPrev[i] = s.BadPrev[n] // zero before the first step
	}

	s.VStruct = energy.StructuralPotential(s.Graph.Laplacian(), bad)
	s.VBus = energy.BusinessPotential(nodes, s.Demand, s.Health, s.Complexity, s.Weights.Lambda1, s.Weights.Lambda2)
	s.V = s.VStruct + s.VBus
	s.T = energy.KineticEnergy(bad, badPrev, nil)
	s.H = energy.Hamiltonian(s.T, s.VStruct, s.VBus)
	s.Lagrangian = energy.Lagrangian(s.T, s.V)

	for _, n := range nodes {
		s.ELocal[n] = energy.LocalDirichlet(s.Graph, s.Bad, n)
	}
}

// StepForward snapshots the outgoing badness into BadPrev and advances
// the time counter. It is deliberately separate from UpdateEnergies so
// that actors and events of the current step always observe the
// outgoing badness before it becomes "previous".
func (s *State) StepForward() {
	snap := make(map[string]float64, len(s.Bad))
	for n, v := range s.Bad {
		snap[n] = v
	}
	s.BadPrev = snap
	s.TimeStep++
}

// RecordIncident appends an incident to the log with a snapshot of the
// node's fields at the current step.
func (s *State) RecordIncident(node, incidentType string, severity float64) Incident {
	inc := Incident{
		TimeStep:   s.TimeStep,
		Node:       node,
		Type:       incidentType,
		Severity:   severity,
		Bad:        s.Bad[node],
		ELocal:     s.ELocal[node],
		Health:     s.Health[node],
		Complexity: s.Complexity[node],
	}
	s.Incidents = append(s.Incidents, inc)
	return inc
}

// HighRiskNodes returns, in graph node order, the nodes whose badness
// exceeds threshold.
func (s *State) HighRiskNodes(threshold float64) []string {
	var out []string
	for _, n := range s.Graph.Nodes() {
		if s.Bad[n] > threshold {
			out = append(out, n)
		}
	}
	return out
}

// NodeEnergy pairs a node with its local Dirichlet energy.
type NodeEnergy struct {
	Node   string
	ELocal float64
}

// HighEnergyHubs returns the topN nodes by local Dirichlet energy,
// descending. These are the early-warning candidates. Ties keep graph
// node order.
func (s *State) HighEnergyHubs(topN int) []NodeEnergy {
	out := make([]NodeEnergy, 0, s.Graph.NodeCount())
	for _, n := range s.Graph.Nodes() {
		out = append(out, NodeEnergy{Node: n, ELocal: s.ELocal[n]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ELocal > out[j].ELocal })
	if topN < len(out) {
		out = out[:topN]
	}
	return out
}

// PhaseCoordinates returns the (T, V) phase-space point of the current
// state.
func (s *State) PhaseCoordinates() (float64, float64) {
	return energy.PhaseCoordinates(s.T, s.V)
}

// Summary holds aggregate statistics of one state snapshot.
type Summary struct {
	TimeStep       int     `json:"time_step"`
	HealthMean     float64 `json:"health_mean"`
	HealthStd      float64 `json:"health_std"`
	ComplexityMean float64 `json:"complexity_mean"`
	ComplexityStd  float64 `json:"complexity_std"`
	BadMean        float64 `json:"bad_mean"`
	BadStd         float64 `json:"bad_std"`
	T              float64 `json:"t"`
	V              float64 `json:"v"`
	H              float64 `json:"h"`
	Lagrangian     float64 `json:"lagrangian"`
	VStruct        float64 `json:"v_struct"`
	VBus           float64 `json:"v_bus"`
	IncidentCount  int     `json:"incident_count"`
}

// SummaryStats computes aggregate statistics for the current state.
func (s *State) SummaryStats() Summary {
	hMean, hStd := meanStd(s.Graph.Nodes(), s.Health)
	cMean, cStd := meanStd(s.Graph.Nodes(), s.Complexity)
	bMean, bStd := meanStd(s.Graph.Nodes(), s.Bad)
	return Summary{
		TimeStep:       s.TimeStep,
		HealthMean:     hMean,
		HealthStd:      hStd,
		ComplexityMean: cMean,
		ComplexityStd:  cStd,
		BadMean:        bMean,
		BadStd:         bStd,
		T:              s.T,
		V:              s.V,
		H:              s.H,
		Lagrangian:     s.Lagrangian,
		VStruct:        s.VStruct,
		VBus:           s.VBus,
		IncidentCount:  len(s.Incidents),
	}
}

func (s *State) String() string {
	return fmt.Sprintf("State(t=%d, H=%.3f, T=%.3f, V=%.3f, incidents=%d)",
		s.TimeStep, s.H, s.T, s.V, len(s.Incidents))
}

func meanStd(nodes []string, field map[string]float64) (float64, float64) {
	if len(nodes) == 0 {
		return 0, 0
	}
	var sum float64
	for _, n := range nodes {
		sum += field[n]
	}
	mean := sum / float64(len(nodes))
	var sq float64
	for _, n := range nodes {
		d := field[n] - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(nodes)))
}
