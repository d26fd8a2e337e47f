package actor

import (
	"math"
	"math/rand"
	"sort"

	"github.com/softphys/tensegrity/pkg/state"
)

// Node selection helpers shared by policies. All sorts are stable over
// graph node order so equal scores resolve deterministically.

// SelectByDemand returns the topN nodes by demand, descending.
func SelectByDemand(s *state.State, topN int) []string {
	return topBy(s, topN, func(n string) float64 { return s.Demand[n] })
}

// SelectByBadness returns the topN nodes by badness, descending.
func SelectByBadness(s *state.State, topN int) []string {
	return topBy(s, topN, func(n string) float64 { return s.Bad[n] })
}

// SelectByFlowMagnitude returns the topN nodes by |flow|, descending.
func SelectByFlowMagnitude(s *state.State, topN int) []string {
	return topBy(s, topN, func(n string) float64 {
		f := s.Flow[n]
		return math.Hypot(f.X, f.Y)
	})
}

// SelectByLocalEnergy returns the topN nodes by local Dirichlet
// energy, descending. High E_local hubs are the early-warning
// candidates.
func SelectByLocalEnergy(s *state.State, topN int) []string {
	return topBy(s, topN, func(n string) float64 { return s.ELocal[n] })
}

// SelectRandom returns n distinct nodes drawn uniformly without
// replacement.
func SelectRandom(s *state.State, n int, rng *rand.Rand) []string {
	nodes := s.Graph.Nodes()
	if n > len(nodes) {
		n = len(nodes)
	}
	out := make([]string, 0, n)
	for _, idx := range rng.Perm(len(nodes))[:n] {
		out = append(out, nodes[idx])
	}
	return out
}

// SelectWeightedByField draws one node with probability proportional
// to its value in field. A zero weight sum falls back to a uniform
// draw instead of dividing by zero.
func SelectWeightedByField(s *state.State, field map[string]float64, rng *rand.Rand) string {
	nodes := s.Graph.Nodes()
	if len(nodes) == 0 {
		return ""
	}

	var total float64
	for _, n := range nodes {
		total += field[n]
	}
	if total <= 0 {
		return nodes[rng.Intn(len(nodes))]
	}

	target := rng.Float64() * total
	var cum float64
	for _, n := range nodes {
		cum += field[n]
		if target < cum {
			return n
		}
	}
	return nodes[len(nodes)-1]
}

func topBy(s *state.State, topN int, score func(node string) float64) []string {
	nodes := append([]string(nil), s.Graph.Nodes()...)
	sort.SliceStable(nodes, func(i, j int) bool {
		return score(nodes[i]) > score(nodes[j])
	})
	if topN < len(nodes) {
		nodes = nodes[:topN]
	}
	return nodes
}
