// Package actor implements the decision policies that drive the
// simulation. An actor reads global state and emits at most one event
// per step; it never writes fields directly.
//
// Every policy scores candidate nodes and picks the arg-max. Ties are
// broken by graph node insertion order: the first inserted node wins.
package actor

import (
	"math"
	"math/rand"

	"github.com/softphys/tensegrity/pkg/event"
	"github.com/softphys/tensegrity/pkg/state"
)

// Default event magnitudes emitted by the built-in policies.
const (
	FeatureMagnitude  = 0.1
	RefactorMagnitude = 0.15
)

// Actor is a named decision policy. Act wraps ChooseAction and tracks
// how many non-nil events the actor has produced; the counter is
// observability only and never feeds back into policy.
type Actor interface {
	Name() string
	ChooseAction(s *state.State) event.Event
	Act(s *state.State) event.Event
	ActionCount() int
}

// tracker carries the shared name/counter bookkeeping of every actor.
type tracker struct {
	name    string
	actions int
}

func (t *tracker) Name() string     { return t.name }
func (t *tracker) ActionCount() int { return t.actions }

func (t *tracker) track(e event.Event) event.Event {
	if e != nil {
		t.actions++
	}
	return e
}

// argMax returns the node with the highest score, iterating in graph
// node order so the earliest-inserted node wins ties. Returns "" for
// an empty graph.
func argMax(s *state.State, score func(node string) float64) string {
	best := ""
	bestScore := math.Inf(-1)
	for _, n := range s.Graph.Nodes() {
		if sc := score(n); sc > bestScore {
			best = n
			bestScore = sc
		}
	}
	return best
}

// FeatureEngineer ships features to high-demand modules, discounted by
// how much stress the target already contributes.
type FeatureEngineer struct {
	tracker
	BusinessWeight  float64
	StabilityWeight float64
}

// NewFeatureEngineer creates a feature engineer. The weights should
// sum to 1 but are passed through untouched.
func NewFeatureEngineer(name string, businessWeight, stabilityWeight float64) *FeatureEngineer {
	return &FeatureEngineer{
		tracker:         tracker{name: name},
		BusinessWeight:  businessWeight,
		StabilityWeight: stabilityWeight,
	}
}

// ChooseAction targets the node maximizing
// businessWeight·demand − stabilityWeight·bad.
func (a *FeatureEngineer) ChooseAction(s *state.State) event.Event {
	target := argMax(s, func(n string) float64 {
		return a.BusinessWeight*s.Demand[n] - a.StabilityWeight*s.Bad[n]
	})
	if target == "" {
		return nil
	}
	return event.FeatureChange{Node: target, Magnitude: FeatureMagnitude}
}

func (a *FeatureEngineer) Act(s *state.State) event.Event {
	return a.track(a.ChooseAction(s))
}

// RefactorEngineer pays down stress where it is worst, preferring
// high-demand modules when badness is comparable.
type RefactorEngineer struct {
	tracker
	BusinessWeight  float64
	StabilityWeight float64
}

// NewRefactorEngineer creates a refactor engineer.
func NewRefactorEngineer(name string, businessWeight, stabilityWeight float64) *RefactorEngineer {
	return &RefactorEngineer{
		tracker:         tracker{name: name},
		BusinessWeight:  businessWeight,
		StabilityWeight: stabilityWeight,
	}
}

// ChooseAction targets the node maximizing
// stabilityWeight·bad + businessWeight·demand.
func (a *RefactorEngineer) ChooseAction(s *state.State) event.Event {
	target := argMax(s, func(n string) float64 {
		return a.StabilityWeight*s.Bad[n] + a.BusinessWeight*s.Demand[n]
	})
	if target == "" {
		return nil
	}
	return event.Refactor{Node: target, Magnitude: RefactorMagnitude}
}

func (a *RefactorEngineer) Act(s *state.State) event.Event {
	return a.track(a.ChooseAction(s))
}

// AIAgent autonomously alternates between features and refactors. Its
// feature preference shrinks as system stress rises, and it steers by
// the flow field when enabled. The RNG is injected so a seeded run is
// reproducible; the simulator hands it the same stream used for
// incident sampling.
type AIAgent struct {
	tracker
	FeatureBias float64
	UseFlow     bool
	rng         *rand.Rand
}

// NewAIAgent creates an AI agent with an explicit random source.
func NewAIAgent(name string, featureBias float64, useFlow bool, rng *rand.Rand) *AIAgent {
	return &AIAgent{
		tracker:     tracker{name: name},
		FeatureBias: featureBias,
		UseFlow:     useFlow,
		rng:         rng,
	}
}

// SetRand replaces the agent's random source. The simulator calls this
// when it adopts an actor list, so all stochastic decisions of a run
// share one seeded stream.
func (a *AIAgent) SetRand(rng *rand.Rand) { a.rng = rng }

// ChooseAction runs the two-stage policy: pick the action kind by a
// stress-adjusted biased coin, then pick the target node.
func (a *AIAgent) ChooseAction(s *state.State) event.Event {
	if s.Graph.NodeCount() == 0 {
		return nil
	}

	feature := a.chooseFeature(s)

	var target string
	if a.UseFlow && len(s.Flow) > 0 {
		target = a.selectByFlow(s, feature)
	} else if feature {
		target = SelectByDemand(s, 1)[0]
	} else {
		target = SelectByBadness(s, 1)[0]
	}

	if feature {
		return event.FeatureChange{Node: target, Magnitude: FeatureMagnitude}
	}
	return event.Refactor{Node: target, Magnitude: RefactorMagnitude}
}

func (a *AIAgent) Act(s *state.State) event.Event {
	return a.track(a.ChooseAction(s))
}

// chooseFeature decides feature vs refactor. The base bias is scaled
// down as the Hamiltonian rises: in a crisis the agent refactors more.
func (a *AIAgent) chooseFeature(s *state.State) bool {
	stress := math.Min(1, s.H/2)
	adjusted := a.FeatureBias * (1 - 0.5*stress)
	return a.rng.Float64() < adjusted
}

// selectByFlow steers by the flow field: features chase the business
// component (X), refactors chase the stability component (Y).
func (a *AIAgent) selectByFlow(s *state.State, feature bool) string {
	return argMax(s, func(n string) float64 {
		f := s.Flow[n]
		if feature {
			return f.X
		}
		return f.Y
	})
}
