// Package scenario describes complete simulation setups: topology,
// initial fields, actor roster and run configuration. Scenarios are
// embedded in Go (Baseline) or loaded from YAML files.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/softphys/tensegrity/pkg/actor"
	"github.com/softphys/tensegrity/pkg/graph"
	"github.com/softphys/tensegrity/pkg/sim"
	"github.com/softphys/tensegrity/pkg/state"
)

// Actor types accepted in scenario files.
const (
	ActorFeatureEngineer  = "feature_engineer"
	ActorRefactorEngineer = "refactor_engineer"
	ActorAIAgent          = "ai_agent"
)

// ActorSpec declares one actor in a scenario file. Weight fields are
// optional; each actor type has its conventional defaults.
type ActorSpec struct {
	Type            string   `json:"type" yaml:"type"`
	Name            string   `json:"name" yaml:"name"`
	BusinessWeight  *float64 `json:"business_weight,omitempty" yaml:"business_weight,omitempty"`
	StabilityWeight *float64 `json:"stability_weight,omitempty" yaml:"stability_weight,omitempty"`
	FeatureBias     *float64 `json:"feature_bias,omitempty" yaml:"feature_bias,omitempty"`
	UseFlow         *bool    `json:"use_flow,omitempty" yaml:"use_flow,omitempty"`
}

// Scenario is a complete simulation setup.
type Scenario struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []string           `json:"nodes" yaml:"nodes"`
	Edges       []graph.Edge       `json:"edges" yaml:"edges"`
	Health      map[string]float64 `json:"health" yaml:"health"`
	Complexity  map[string]float64 `json:"complexity" yaml:"complexity"`
	Demand      map[string]float64 `json:"demand" yaml:"demand"`
	Actors      []ActorSpec        `json:"actors" yaml:"actors"`
	Config      *sim.Config        `json:"config,omitempty" yaml:"config,omitempty"`
}

// Load reads and validates a YAML scenario file. A malformed scenario
// fails here, never at step time.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario for structural problems. Field range
// and coverage checks are deferred to state construction, which owns
// them.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("scenario %s: at least one node is required", s.Name)
	}
	seen := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if seen[n] {
			return fmt.Errorf("scenario %s: duplicate node %q", s.Name, n)
		}
		seen[n] = true
	}
	for _, e := range s.Edges {
		if !seen[e.From] || !seen[e.To] {
			return fmt.Errorf("scenario %s: edge %s--%s references unknown node", s.Name, e.From, e.To)
		}
	}
	for i, a := range s.Actors {
		if a.Name == "" {
			return fmt.Errorf("scenario %s: actor %d has no name", s.Name, i)
		}
		switch a.Type {
		case ActorFeatureEngineer, ActorRefactorEngineer, ActorAIAgent:
		default:
			return fmt.Errorf("scenario %s: actor %s has unknown type %q", s.Name, a.Name, a.Type)
		}
	}
	return nil
}

// BuildState constructs the simulation state for this scenario.
func (s *Scenario) BuildState() (*state.State, error) {
	g, err := graph.NewWithEdges(s.Nodes, s.Edges)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	st, err := state.New(g, cloneField(s.Health), cloneField(s.Complexity), cloneField(s.Demand))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return st, nil
}

// BuildActors constructs the actor roster. AI agents are created
// without a random source; the simulator injects its seeded stream
// when it adopts the roster.
func (s *Scenario) BuildActors() []actor.Actor {
	actors := make([]actor.Actor, 0, len(s.Actors))
	for _, spec := range s.Actors {
		switch spec.Type {
		case ActorFeatureEngineer:
			actors = append(actors, actor.NewFeatureEngineer(
				spec.Name,
				floatOr(spec.BusinessWeight, 0.8),
				floatOr(spec.StabilityWeight, 0.2),
			))
		case ActorRefactorEngineer:
			actors = append(actors, actor.NewRefactorEngineer(
				spec.Name,
				floatOr(spec.BusinessWeight, 0.2),
				floatOr(spec.StabilityWeight, 0.8),
			))
		case ActorAIAgent:
			actors = append(actors, actor.NewAIAgent(
				spec.Name,
				floatOr(spec.FeatureBias, 0.6),
				boolOr(spec.UseFlow, true),
				nil,
			))
		}
	}
	return actors
}

// BuildConfig resolves the run configuration: the scenario's explicit
// config if present, the defaults otherwise, with the scenario name
// carried into the run label.
func (s *Scenario) BuildConfig() sim.Config {
	cfg := sim.DefaultConfig()
	if s.Config != nil {
		cfg = *s.Config
	}
	if cfg.Name == "" {
		cfg.Name = s.Name
	}
	return cfg
}

// Build constructs state, actors and config in one call.
func (s *Scenario) Build() (*state.State, []actor.Actor, sim.Config, error) {
	st, err := s.BuildState()
	if err != nil {
		return nil, nil, sim.Config{}, err
	}
	return st, s.BuildActors(), s.BuildConfig(), nil
}

func cloneField(field map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(field))
	for k, v := range field {
		out[k] = v
	}
	return out
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func boolOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}
