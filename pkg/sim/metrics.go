package sim

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TensegrityHamiltonian tracks total system stress per scenario.
	TensegrityHamiltonian = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tensegrity_hamiltonian",
			Help: "Total system stress H = T + V_struct + V_bus",
		},
		[]string{"scenario"},
	)

	// TensegrityKinetic tracks the kinetic energy term.
	TensegrityKinetic = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tensegrity_kinetic_energy",
			Help: "Kinetic energy T (rate of change of badness)",
		},
		[]string{"scenario"},
	)

	// TensegrityPotential tracks the total potential energy term.
	TensegrityPotential = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tensegrity_potential_energy",
			Help: "Total potential energy V = V_struct + V_bus",
		},
		[]string{"scenario"},
	)

	// TensegrityEventTotal counts applied events by actor and kind.
	TensegrityEventTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensegrity_event_total",
			Help: "Total number of events applied",
		},
		[]string{"scenario", "actor", "kind"},
	)

	// TensegrityIncidentTotal counts sampled incidents by node.
	TensegrityIncidentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensegrity_incident_total",
			Help: "Total number of incidents sampled",
		},
		[]string{"scenario", "node"},
	)

	// TensegrityStepTotal counts completed simulation steps.
	TensegrityStepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensegrity_step_total",
			Help: "Total number of completed simulation steps",
		},
		[]string{"scenario"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(TensegrityHamiltonian)
	prometheus.MustRegister(TensegrityKinetic)
	prometheus.MustRegister(TensegrityPotential)
	prometheus.MustRegister(TensegrityEventTotal)
	prometheus.MustRegister(TensegrityIncidentTotal)
	prometheus.MustRegister(TensegrityStepTotal)
}
