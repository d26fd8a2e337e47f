package scenario

import "github.com/softphys/tensegrity/pkg/graph"

// Baseline returns the six-module reference scenario: a tightly
// coupled core with api/db below it, two feature modules hanging off
// the api, and a loosely coupled util. D_featureX carries the demand
// hotspot.
func Baseline() *Scenario {
	fw := func(v float64) *float64 { return &v }

	return &Scenario{
		Name:        "baseline",
		Description: "Six-module reference system with one popular feature module",
		Nodes:       []string{"A_core", "B_api", "C_db", "D_featureX", "E_featureY", "F_util"},
		Edges: []graph.Edge{
			{From: "A_core", To: "B_api", Weight: 0.9},
			{From: "A_core", To: "C_db", Weight: 0.7},
			{From: "A_core", To: "F_util", Weight: 0.4},
			{From: "B_api", To: "D_featureX", Weight: 0.6},
			{From: "B_api", To: "E_featureY", Weight: 0.5},
			{From: "C_db", To: "D_featureX", Weight: 0.3},
		},
		Health: map[string]float64{
			"A_core":     0.8,
			"B_api":      0.8,
			"C_db":       0.7,
			"D_featureX": 0.6,
			"E_featureY": 0.6,
			"F_util":     0.7,
		},
		Complexity: map[string]float64{
			"A_core":     0.7,
			"B_api":      0.6,
			"C_db":       0.5,
			"D_featureX": 0.4,
			"E_featureY": 0.4,
			"F_util":     0.3,
		},
		Demand: map[string]float64{
			"A_core":     0.4,
			"B_api":      0.5,
			"C_db":       0.3,
			"D_featureX": 0.7,
			"E_featureY": 0.5,
			"F_util":     0.2,
		},
		Actors: []ActorSpec{
			{Type: ActorFeatureEngineer, Name: "Alice", BusinessWeight: fw(0.8), StabilityWeight: fw(0.2)},
			{Type: ActorRefactorEngineer, Name: "Bob", BusinessWeight: fw(0.2), StabilityWeight: fw(0.8)},
			{Type: ActorAIAgent, Name: "Agent-1", FeatureBias: fw(0.6)},
		},
	}
}
