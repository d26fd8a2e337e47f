// Package sim runs the tensegrity simulation: it orchestrates actor
// turns, event application, passive decay, field and energy
// recomputation, incident sampling and history recording.
//
// A Simulator is single-threaded and deterministic given a seed: one
// seeded random stream drives every stochastic decision (the AI
// agent's action-kind draw and incident sampling), so a fixed seed
// reproduces a run bit for bit, event ordering and incidents included.
// Independent Simulators with distinct states and seeds may run in
// parallel; nothing is shared between them.
package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/softphys/tensegrity/pkg/actor"
	"github.com/softphys/tensegrity/pkg/energy"
	"github.com/softphys/tensegrity/pkg/event"
	"github.com/softphys/tensegrity/pkg/state"
)

// IncidentTypeBadnessCritical is the incident type sampled from the
// badness field.
const IncidentTypeBadnessCritical = "badness_critical"

// Phase tracks the simulator lifecycle. A simulator runs exactly once.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// Simulator coordinates one run over one state.
type Simulator struct {
	state   *state.State
	actors  []actor.Actor
	config  Config
	history *History
	rng     *rand.Rand
	phase   Phase
	label   string
}

// New creates a simulator. The configuration is validated here; the
// random stream is seeded once and handed to every AI agent in the
// actor list so all randomness of the run shares it.
func New(st *state.State, actors []actor.Actor, cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if cfg.RandomSeed != nil {
		seed = *cfg.RandomSeed
	}
	rng := rand.New(rand.NewSource(seed))

	for _, a := range actors {
		if agent, ok := a.(*actor.AIAgent); ok {
			agent.SetRand(rng)
		}
	}

	label := cfg.Name
	if label == "" {
		label = "default"
	}

	return &Simulator{
		state:   st,
		actors:  actors,
		config:  cfg,
		history: NewHistory(),
		rng:     rng,
		phase:   PhaseIdle,
		label:   label,
	}, nil
}

// State returns the simulator's state. Read-only for callers.
func (sim *Simulator) State() *state.State { return sim.state }

// History returns the run history recorded so far.
func (sim *Simulator) History() *History { return sim.history }

// Phase returns the lifecycle phase.
func (sim *Simulator) Phase() Phase { return sim.phase }

// Run executes the configured number of steps and returns the
// history. A simulator is single-use: calling Run twice is an error.
func (sim *Simulator) Run() (*History, error) {
	if sim.phase != PhaseIdle {
		return nil, fmt.Errorf("simulator already %s", sim.phase)
	}
	sim.phase = PhaseRunning

	// Initial derivation and snapshot before any actor moves.
	sim.state.UpdateDerivedFields()
	sim.state.UpdateEnergies()
	sim.history.RecordStep(sim.state)

	for step := 0; step < sim.config.NSteps; step++ {
		if err := sim.step(); err != nil {
			return nil, err
		}
		if (step+1)%sim.config.LogInterval == 0 {
			sim.history.RecordStep(sim.state)
		}
	}

	sim.phase = PhaseCompleted
	return sim.history, nil
}

// step executes one simulation step:
// actors -> decay -> derived fields -> energies -> incidents -> advance.
func (sim *Simulator) step() error {
	for _, a := range sim.actors {
		ev := a.Act(sim.state)
		if ev == nil {
			continue
		}
		if err := ev.Apply(sim.state); err != nil {
			return fmt.Errorf("actor %s: %w", a.Name(), err)
		}
		sim.history.RecordEvent(sim.state.TimeStep, a.Name(), ev)
		TensegrityEventTotal.WithLabelValues(sim.label, a.Name(), string(ev.Kind())).Inc()
	}

	if sim.config.EnableHealthDecay {
		decay := event.HealthDecay{Rate: sim.config.HealthDecayRate}
		if err := decay.Apply(sim.state); err != nil {
			return err
		}
	}

	sim.state.UpdateDerivedFields()
	sim.state.UpdateEnergies()

	if sim.config.EnableIncidents {
		sim.sampleIncidents()
	}

	sim.state.StepForward()

	TensegrityStepTotal.WithLabelValues(sim.label).Inc()
	TensegrityHamiltonian.WithLabelValues(sim.label).Set(sim.state.H)
	TensegrityKinetic.WithLabelValues(sim.label).Set(sim.state.T)
	TensegrityPotential.WithLabelValues(sim.label).Set(sim.state.V)
	return nil
}

// sampleIncidents draws one uniform variate per node, in graph node
// order, against the badness-driven incident probability. Node order
// is part of the reproducibility contract: it fixes how the random
// stream is consumed.
func (sim *Simulator) sampleIncidents() {
	for _, n := range sim.state.Graph.Nodes() {
		bad := sim.state.Bad[n]
		prob := energy.IncidentProbability(
			bad,
			sim.config.IncidentThreshold,
			sim.config.IncidentSteepness,
			sim.config.IncidentMaxProb,
		)
		if sim.rng.Float64() < prob {
			inc := sim.state.RecordIncident(n, IncidentTypeBadnessCritical, bad)
			sim.history.RecordIncident(inc)
			TensegrityIncidentTotal.WithLabelValues(sim.label, n).Inc()
		}
	}
}
