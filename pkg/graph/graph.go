// Package graph models a software system as an undirected weighted
// graph: nodes are modules, edge weights are coupling strengths. The
// graph keeps a cached Laplacian matrix L = D - A that is recomputed
// synchronously on every edge mutation, so readers always see a matrix
// consistent with the current edge set.
package graph

// Edge describes one weighted coupling between two modules.
type Edge struct {
	From   string  `json:"from" yaml:"from"`
	To     string  `json:"to" yaml:"to"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Graph is an undirected weighted graph over string node IDs.
//
// Node order is insertion order. Every iteration the engine performs
// (field derivation, incident sampling, arg-max tie-breaks, Laplacian
// row order) uses that order, which is what makes a seeded run
// bit-reproducible.
type Graph struct {
	nodes []string
	index map[string]int
	adj   []map[int]float64
	lap   [][]float64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// NewWithEdges builds a graph from a node list and an edge list. The
// node list fixes iteration order for the lifetime of the graph.
func NewWithEdges(nodes []string, edges []Edge) (*Graph, error) {
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		if err := g.SetEdge(e.From, e.To, e.Weight); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode registers a node. Adding an existing node is a no-op. Node
// sets are fixed per scenario; there is no node removal.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
	g.adj = append(g.adj, make(map[int]float64))
	g.rebuildLaplacian()
}

// SetEdge upserts the undirected edge i--j with the given coupling
// weight and recomputes the Laplacian before returning. Weights must
// be positive and self-edges are rejected.
func (g *Graph) SetEdge(i, j string, weight float64) error {
	if weight <= 0 {
		return &InvalidEdgeError{From: i, To: j, Weight: weight, Reason: "weight must be positive"}
	}
	if i == j {
		return &InvalidEdgeError{From: i, To: j, Weight: weight, Reason: "self-edges are not allowed"}
	}
	ii, ok := g.index[i]
	if !ok {
		return &UnknownNodeError{Node: i}
	}
	jj, ok := g.index[j]
	if !ok {
		return &UnknownNodeError{Node: j}
	}
	g.adj[ii][jj] = weight
	g.adj[jj][ii] = weight
	g.rebuildLaplacian()
	return nil
}

// RemoveEdge deletes the edge i--j if present (no-op otherwise) and
// recomputes the Laplacian.
func (g *Graph) RemoveEdge(i, j string) error {
	ii, ok := g.index[i]
	if !ok {
		return &UnknownNodeError{Node: i}
	}
	jj, ok := g.index[j]
	if !ok {
		return &UnknownNodeError{Node: j}
	}
	if _, ok := g.adj[ii][jj]; !ok {
		return nil
	}
	delete(g.adj[ii], jj)
	delete(g.adj[jj], ii)
	g.rebuildLaplacian()
	return nil
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// HasEdge reports whether the edge i--j exists.
func (g *Graph) HasEdge(i, j string) bool {
	ii, ok := g.index[i]
	if !ok {
		return false
	}
	jj, ok := g.index[j]
	if !ok {
		return false
	}
	_, ok = g.adj[ii][jj]
	return ok
}

// Weight returns the coupling weight of edge i--j, or 0 if absent.
func (g *Graph) Weight(i, j string) float64 {
	ii := g.mustIndex(i)
	jj := g.mustIndex(j)
	return g.adj[ii][jj]
}

// Nodes returns the node IDs in insertion order. Callers must treat
// the slice as read-only.
func (g *Graph) Nodes() []string {
	return g.nodes
}

// Neighbors returns the neighbors of id in node insertion order.
func (g *Graph) Neighbors(id string) []string {
	ii := g.mustIndex(id)
	var out []string
	for jj, n := range g.nodes {
		if _, ok := g.adj[ii][jj]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Degree returns the number of neighbors of id.
func (g *Graph) Degree(id string) int {
	return len(g.adj[g.mustIndex(id)])
}

// WeightedDegree returns the sum of coupling weights incident to id.
func (g *Graph) WeightedDegree(id string) float64 {
	ii := g.mustIndex(id)
	// Sum in neighbor index order so repeated runs accumulate
	// floating point error identically.
	var sum float64
	for jj := range g.nodes {
		if w, ok := g.adj[ii][jj]; ok {
			sum += w
		}
	}
	return sum
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, row := range g.adj {
		total += len(row)
	}
	return total / 2
}

// Laplacian returns the cached Laplacian matrix L = D - A, indexed by
// node insertion order. The matrix is rebuilt on every mutation;
// callers must treat it as read-only.
//
// Structural properties (verified by tests, not enforced here): L is
// symmetric, positive semi-definite, has zero row sums, and its
// smallest eigenvalue is ~0 for a connected graph.
func (g *Graph) Laplacian() [][]float64 {
	return g.lap
}

func (g *Graph) rebuildLaplacian() {
	n := len(g.nodes)
	lap := make([][]float64, n)
	for i := range lap {
		lap[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		var deg float64
		for j := 0; j < n; j++ {
			if w, ok := g.adj[i][j]; ok {
				lap[i][j] = -w
				deg += w
			}
		}
		lap[i][i] = deg
	}
	g.lap = lap
}

// mustIndex resolves a node id, panicking with *UnknownNodeError when
// the node was never added. Construction validates every scenario
// node, so an unknown id here is a programming error and is not
// recovered anywhere in the engine.
func (g *Graph) mustIndex(id string) int {
	ii, ok := g.index[id]
	if !ok {
		panic(&UnknownNodeError{Node: id})
	}
	return ii
}
