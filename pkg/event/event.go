// Package event defines the state-mutating commands of the simulation.
// Events are immutable once constructed, mutate only the primitive
// fields (health, complexity, demand), and clamp every write to [0,1].
// Derived fields are never touched here; the step loop recomputes them
// after all events of a step have applied.
package event

import (
	"fmt"

	"github.com/softphys/tensegrity/pkg/graph"
	"github.com/softphys/tensegrity/pkg/state"
)

// Kind identifies the event variant.
type Kind string

const (
	KindFeatureChange Kind = "feature_change"
	KindRefactor      Kind = "refactor"
	KindPatch         Kind = "patch"
	KindHealthDecay   Kind = "health_decay"
)

// Event is a command that mutates primitive fields in place. Apply
// returns an error only for unknown target nodes, which is a
// programming error the engine never recovers from.
type Event interface {
	Apply(s *state.State) error
	Kind() Kind
	String() string
}

// FeatureChange adds a feature to a node: new code raises complexity,
// and rushed features cost health at half the magnitude.
type FeatureChange struct {
	Node      string
	Magnitude float64
}

func (e FeatureChange) Apply(s *state.State) error {
	if err := checkNode(s, e.Node); err != nil {
		return err
	}
	s.Complexity[e.Node] = clamp(s.Complexity[e.Node] + e.Magnitude)
	s.Health[e.Node] = clamp(s.Health[e.Node] - 0.5*e.Magnitude)
	return nil
}

func (e FeatureChange) Kind() Kind { return KindFeatureChange }

func (e FeatureChange) String() string {
	return fmt.Sprintf("FeatureChange(node=%s, magnitude=%.2f)", e.Node, e.Magnitude)
}

// Refactor simplifies a node: complexity drops by the magnitude and
// health recovers at 0.8x.
type Refactor struct {
	Node      string
	Magnitude float64
}

func (e Refactor) Apply(s *state.State) error {
	if err := checkNode(s, e.Node); err != nil {
		return err
	}
	s.Complexity[e.Node] = clamp(s.Complexity[e.Node] - e.Magnitude)
	s.Health[e.Node] = clamp(s.Health[e.Node] + 0.8*e.Magnitude)
	return nil
}

func (e Refactor) Kind() Kind { return KindRefactor }

func (e Refactor) String() string {
	return fmt.Sprintf("Refactor(node=%s, magnitude=%.2f)", e.Node, e.Magnitude)
}

// Patch fixes bugs at a node: health rises by the magnitude, with a
// small complexity cost (5%) for the patch code itself.
type Patch struct {
	Node      string
	Magnitude float64
}

func (e Patch) Apply(s *state.State) error {
	if err := checkNode(s, e.Node); err != nil {
		return err
	}
	s.Health[e.Node] = clamp(s.Health[e.Node] + e.Magnitude)
	s.Complexity[e.Node] = clamp(s.Complexity[e.Node] + 0.05*e.Magnitude)
	return nil
}

func (e Patch) Kind() Kind { return KindPatch }

func (e Patch) String() string {
	return fmt.Sprintf("Patch(node=%s, magnitude=%.2f)", e.Node, e.Magnitude)
}

// HealthDecay models passive entropy (dependency drift, bit rot). An
// empty Node targets every node in the graph; it runs once per step
// regardless of actor activity.
type HealthDecay struct {
	Node string
	Rate float64
}

func (e HealthDecay) Apply(s *state.State) error {
	if e.Node == "" {
		for _, n := range s.Graph.Nodes() {
			s.Health[n] = clamp(s.Health[n] - e.Rate)
		}
		return nil
	}
	if err := checkNode(s, e.Node); err != nil {
		return err
	}
	s.Health[e.Node] = clamp(s.Health[e.Node] - e.Rate)
	return nil
}

func (e HealthDecay) Kind() Kind { return KindHealthDecay }

func (e HealthDecay) String() string {
	target := e.Node
	if target == "" {
		target = "all"
	}
	return fmt.Sprintf("HealthDecay(target=%s, rate=%.3f)", target, e.Rate)
}

func checkNode(s *state.State, node string) error {
	if !s.Graph.HasNode(node) {
		return &graph.UnknownNodeError{Node: node}
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
