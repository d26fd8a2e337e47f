package graph

import "fmt"

// InvalidEdgeError reports an edge with a non-positive coupling weight
// or a degenerate endpoint pair.
type InvalidEdgeError struct {
	From   string
	To     string
	Weight float64
	Reason string
}

func (e *InvalidEdgeError) Error() string {
	return fmt.Sprintf("invalid edge %s--%s (weight %g): %s", e.From, e.To, e.Weight, e.Reason)
}

// UnknownNodeError reports access to a node that was never added to the
// graph. Field and graph access by absent node id is a programming
// error: it is surfaced immediately and never recovered.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.Node)
}
