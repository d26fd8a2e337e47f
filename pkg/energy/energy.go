// Package energy implements the stress-energy formulas of the
// tensegrity model: the Hamiltonian H = T + V where T is kinetic
// energy (rate of change of badness) and V is potential energy
// (structural neighbor disagreement plus business tension).
//
// All functions are pure. Vectors are ordered by graph node insertion
// order; the caller is responsible for keeping vector order consistent
// with the Laplacian it passes in.
package energy

import (
	"math"

	"github.com/softphys/tensegrity/pkg/graph"
)

// Default business-potential weights. They should sum to 1, but this
// is a caller contract: non-normalized weights are passed through
// untouched.
const (
	DefaultLambdaHealth     = 0.6
	DefaultLambdaComplexity = 0.4
)

// Default incident probability calibration. Expected to yield roughly
// 2-5 incidents per 100 steps on the baseline scenario.
const (
	DefaultIncidentThreshold = 0.6
	DefaultIncidentSteepness = 10.0
	DefaultIncidentMaxProb   = 0.05
)

// StructuralPotential computes the Dirichlet energy of the badness
// field against the graph Laplacian:
//
//	V_struct = ½ bad^T L bad = ½ Σ w_ij (bad[i] - bad[j])²
//
// L must be positive semi-definite, so the result is >= 0. It is zero
// iff badness is constant across every connected component.
func StructuralPotential(lap [][]float64, bad []float64) float64 {
	var q float64
	for i := range bad {
		row := lap[i]
		for j := range bad {
			q += bad[i] * row[j] * bad[j]
		}
	}
	return 0.5 * q
}

// BusinessPotential computes the business cost of unhealthy or complex
// high-demand modules:
//
//	V_bus = Σ demand[i] · (λ1·(1-health[i]) + λ2·complexity[i])
//
// Nodes fixes summation order so repeated runs accumulate floating
// point error identically.
func BusinessPotential(nodes []string, demand, health, complexity map[string]float64, lambda1, lambda2 float64) float64 {
	var v float64
	for _, n := range nodes {
		v += demand[n] * (lambda1*(1-health[n]) + lambda2*complexity[n])
	}
	return v
}

// KineticEnergy computes the rate-of-change energy of the badness
// field:
//
//	T = ½ Σ m_i (bad[i] - badPrev[i])²
//
// A nil mass vector means uniform mass m_i = 1. T is zero when badness
// is unchanged, and depends only on the squared per-node delta.
func KineticEnergy(badCurr, badPrev, mass []float64) float64 {
	var t float64
	for i := range badCurr {
		d := badCurr[i] - badPrev[i]
		if mass == nil {
			t += d * d
		} else {
			t += mass[i] * d * d
		}
	}
	return 0.5 * t
}

// LocalDirichlet computes the structural stress concentrated at one
// node:
//
//	E_local[i] = ½ Σ_{j∈neighbors(i)} w_ij (bad[i] - bad[j])²
//
// Isolated nodes always yield 0. High E_local at hub nodes is the
// model's early-warning signal for incidents.
func LocalDirichlet(g *graph.Graph, bad map[string]float64, node string) float64 {
	var e float64
	for _, nb := range g.Neighbors(node) {
		w := g.Weight(node, nb)
		d := bad[node] - bad[nb]
		e += 0.5 * w * d * d
	}
	return e
}

// Hamiltonian is the total system stress H = T + V_struct + V_bus.
func Hamiltonian(t, vStruct, vBus float64) float64 {
	return t + vStruct + vBus
}

// Lagrangian is L = T - V. Diagnostic only; can be negative.
func Lagrangian(t, v float64) float64 {
	return t - v
}

// PhaseCoordinates returns the (T, V) phase-space point used to
// classify the system regime.
func PhaseCoordinates(t, v float64) (float64, float64) {
	return t, v
}

// Regime labels a quadrant of (T, V) phase space.
type Regime string

const (
	RegimeHealthyFlow       Regime = "healthy_flow"       // low T, low V
	RegimeChaoticThrash     Regime = "chaotic_thrash"     // high T, high V
	RegimeFrozenBureaucracy Regime = "frozen_bureaucracy" // low T, high V
	RegimeStableEquilibrium Regime = "stable_equilibrium" // high T, low V
)

// ClassifyRegime maps a phase-space point to its quadrant relative to
// the given thresholds.
func ClassifyRegime(t, v, tThreshold, vThreshold float64) Regime {
	highT := t >= tThreshold
	highV := v >= vThreshold
	switch {
	case highT && highV:
		return RegimeChaoticThrash
	case !highT && highV:
		return RegimeFrozenBureaucracy
	case highT && !highV:
		return RegimeStableEquilibrium
	default:
		return RegimeHealthyFlow
	}
}

// IncidentProbability maps a node's badness to a per-step incident
// probability:
//
//	P = maxProb · sigmoid(steepness·(bad - threshold))
//
// Monotonic in badness, bounded in (0, maxProb), P = maxProb/2 exactly
// at the threshold.
func IncidentProbability(bad, threshold, steepness, maxProb float64) float64 {
	return maxProb * sigmoid(steepness*(bad-threshold))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
