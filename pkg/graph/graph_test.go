package graph

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func baselineTopology(t *testing.T) *Graph {
	t.Helper()
	g, err := NewWithEdges(
		[]string{"A_core", "B_api", "C_db", "D_featureX", "E_featureY", "F_util"},
		[]Edge{
			{From: "A_core", To: "B_api", Weight: 0.9},
			{From: "A_core", To: "C_db", Weight: 0.7},
			{From: "A_core", To: "F_util", Weight: 0.4},
			{From: "B_api", To: "D_featureX", Weight: 0.6},
			{From: "B_api", To: "E_featureY", Weight: 0.5},
			{From: "C_db", To: "D_featureX", Weight: 0.3},
		},
	)
	if err != nil {
		t.Fatalf("failed to build topology: %v", err)
	}
	return g
}

func TestSetEdgeRejectsNonPositiveWeight(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")

	for _, w := range []float64{0, -0.5} {
		err := g.SetEdge("a", "b", w)
		var invalid *InvalidEdgeError
		if !errors.As(err, &invalid) {
			t.Fatalf("weight %g: expected InvalidEdgeError, got %v", w, err)
		}
	}
	if g.EdgeCount() != 0 {
		t.Errorf("rejected edges must not be stored, got %d edges", g.EdgeCount())
	}
}

func TestSetEdgeUnknownNode(t *testing.T) {
	g := New()
	g.AddNode("a")

	err := g.SetEdge("a", "ghost", 1.0)
	var unknown *UnknownNodeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownNodeError, got %v", err)
	}
	if unknown.Node != "ghost" {
		t.Errorf("expected offending node ghost, got %q", unknown.Node)
	}
}

func TestSetEdgeUpsertAndRemove(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")

	if err := g.SetEdge("a", "b", 0.5); err != nil {
		t.Fatalf("set edge: %v", err)
	}
	if err := g.SetEdge("a", "b", 0.9); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
	if got := g.Weight("a", "b"); got != 0.9 {
		t.Errorf("expected upserted weight 0.9, got %g", got)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("upsert must not duplicate the edge, got %d", g.EdgeCount())
	}

	if err := g.RemoveEdge("a", "b"); err != nil {
		t.Fatalf("remove edge: %v", err)
	}
	if g.HasEdge("a", "b") {
		t.Error("edge still present after removal")
	}
	// Removing an absent edge is a no-op.
	if err := g.RemoveEdge("a", "b"); err != nil {
		t.Fatalf("remove of absent edge must be a no-op, got %v", err)
	}
}

func TestNeighborsInsertionOrder(t *testing.T) {
	g := baselineTopology(t)

	got := g.Neighbors("A_core")
	want := []string{"B_api", "C_db", "F_util"}
	if len(got) != len(want) {
		t.Fatalf("expected %d neighbors, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("neighbor %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDegrees(t *testing.T) {
	g := baselineTopology(t)

	if d := g.Degree("A_core"); d != 3 {
		t.Errorf("expected degree 3 for A_core, got %d", d)
	}
	wd := g.WeightedDegree("A_core")
	if math.Abs(wd-2.0) > 1e-12 {
		t.Errorf("expected weighted degree 2.0 for A_core, got %g", wd)
	}
}

func TestLaplacianSymmetricZeroRowSums(t *testing.T) {
	g := baselineTopology(t)
	lap := g.Laplacian()
	n := g.NodeCount()

	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += lap[i][j]
			if lap[i][j] != lap[j][i] {
				t.Errorf("L[%d][%d]=%g != L[%d][%d]=%g", i, j, lap[i][j], j, i, lap[j][i])
			}
		}
		if math.Abs(rowSum) > 1e-12 {
			t.Errorf("row %d sum = %g, expected 0", i, rowSum)
		}
	}
}

// The quadratic form x^T L x must be non-negative for any x (L is
// PSD), and exactly zero for constant x on a connected graph (the
// constant vector spans the nullspace, i.e. the smallest eigenvalue
// is ~0).
func TestLaplacianPositiveSemiDefinite(t *testing.T) {
	g := baselineTopology(t)
	lap := g.Laplacian()
	n := g.NodeCount()

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		x := make([]float64, n)
		for i := range x {
			x[i] = rng.Float64()*4 - 2
		}
		if q := quadraticForm(lap, x); q < -1e-10 {
			t.Fatalf("trial %d: x^T L x = %g < 0", trial, q)
		}
	}

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	if q := quadraticForm(lap, ones); math.Abs(q) > 1e-12 {
		t.Errorf("constant vector energy = %g, expected 0", q)
	}
}

func TestLaplacianTracksMutations(t *testing.T) {
	g := baselineTopology(t)

	if err := g.RemoveEdge("A_core", "B_api"); err != nil {
		t.Fatalf("remove edge: %v", err)
	}
	lap := g.Laplacian()
	if lap[0][1] != 0 {
		t.Errorf("expected L[0][1]=0 after edge removal, got %g", lap[0][1])
	}
	wantDiag := 0.7 + 0.4
	if math.Abs(lap[0][0]-wantDiag) > 1e-12 {
		t.Errorf("expected L[0][0]=%g after edge removal, got %g", wantDiag, lap[0][0])
	}
}

func TestUnknownNodeAccessPanics(t *testing.T) {
	g := baselineTopology(t)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on unknown node access")
		}
		if _, ok := r.(*UnknownNodeError); !ok {
			t.Fatalf("expected *UnknownNodeError panic, got %T", r)
		}
	}()
	g.Neighbors("ghost")
}

func quadraticForm(lap [][]float64, x []float64) float64 {
	var q float64
	for i := range x {
		for j := range x {
			q += x[i] * lap[i][j] * x[j]
		}
	}
	return q
}
