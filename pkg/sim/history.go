package sim

import (
	"github.com/softphys/tensegrity/pkg/event"
	"github.com/softphys/tensegrity/pkg/state"
)

// EventRecord is one applied event in the history log.
type EventRecord struct {
	Step        int        `json:"step"`
	Actor       string     `json:"actor"`
	Kind        event.Kind `json:"kind"`
	Description string     `json:"description"`
}

// History is the append-only record of a run: global energy series,
// per-node field series, the event log and the incident log. It is
// the only object handed to external consumers; they read it, they
// never mutate engine state through it.
type History struct {
	Steps      []int     `json:"steps"`
	H          []float64 `json:"h"`
	T          []float64 `json:"t"`
	V          []float64 `json:"v"`
	VStruct    []float64 `json:"v_struct"`
	VBus       []float64 `json:"v_bus"`
	Lagrangian []float64 `json:"lagrangian"`

	Events    []EventRecord    `json:"events"`
	Incidents []state.Incident `json:"incidents"`

	Health     map[string][]float64 `json:"health"`
	Complexity map[string][]float64 `json:"complexity"`
	Bad        map[string][]float64 `json:"bad"`
	ELocal     map[string][]float64 `json:"e_local"`
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		Health:     make(map[string][]float64),
		Complexity: make(map[string][]float64),
		Bad:        make(map[string][]float64),
		ELocal:     make(map[string][]float64),
	}
}

// RecordStep appends a snapshot of the current state.
func (h *History) RecordStep(s *state.State) {
	h.Steps = append(h.Steps, s.TimeStep)
	h.H = append(h.H, s.H)
	h.T = append(h.T, s.T)
	h.V = append(h.V, s.V)
	h.VStruct = append(h.VStruct, s.VStruct)
	h.VBus = append(h.VBus, s.VBus)
	h.Lagrangian = append(h.Lagrangian, s.Lagrangian)

	for _, n := range s.Graph.Nodes() {
		h.Health[n] = append(h.Health[n], s.Health[n])
		h.Complexity[n] = append(h.Complexity[n], s.Complexity[n])
		h.Bad[n] = append(h.Bad[n], s.Bad[n])
		h.ELocal[n] = append(h.ELocal[n], s.ELocal[n])
	}
}

// RecordEvent appends an applied event to the log.
func (h *History) RecordEvent(step int, actorName string, e event.Event) {
	h.Events = append(h.Events, EventRecord{
		Step:        step,
		Actor:       actorName,
		Kind:        e.Kind(),
		Description: e.String(),
	})
}

// RecordIncident appends an incident to the log.
func (h *History) RecordIncident(inc state.Incident) {
	h.Incidents = append(h.Incidents, inc)
}
