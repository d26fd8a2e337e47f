package sim

import (
	"fmt"

	"github.com/softphys/tensegrity/pkg/energy"
)

// ConfigurationError reports a malformed simulation configuration. A
// malformed scenario must fail before the first step, never silently
// produce degenerate output.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config holds the named options of one simulation run.
type Config struct {
	// Name labels the run in metrics and the archive.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// NSteps is the number of time steps to simulate.
	NSteps int `json:"n_steps" yaml:"n_steps"`

	// RandomSeed seeds the single random stream shared by all
	// stochastic decisions of the run. Nil means a time-derived
	// seed (non-reproducible).
	RandomSeed *int64 `json:"random_seed" yaml:"random_seed"`

	// HealthDecayRate is the per-step passive health loss (entropy).
	HealthDecayRate float64 `json:"health_decay_rate" yaml:"health_decay_rate"`

	EnableHealthDecay bool `json:"enable_health_decay" yaml:"enable_health_decay"`
	EnableIncidents   bool `json:"enable_incidents" yaml:"enable_incidents"`

	// Incident probability calibration, see energy.IncidentProbability.
	IncidentThreshold float64 `json:"incident_threshold" yaml:"incident_threshold"`
	IncidentSteepness float64 `json:"incident_steepness" yaml:"incident_steepness"`
	IncidentMaxProb   float64 `json:"incident_max_prob" yaml:"incident_max_prob"`

	// LogInterval is how often a snapshot is appended to history
	// (every N steps).
	LogInterval int `json:"log_interval" yaml:"log_interval"`
}

// DefaultConfig returns the baseline calibration: 100 steps, seed 42,
// 1% decay, incidents enabled, snapshot every step.
func DefaultConfig() Config {
	seed := int64(42)
	return Config{
		NSteps:            100,
		RandomSeed:        &seed,
		HealthDecayRate:   0.01,
		EnableHealthDecay: true,
		EnableIncidents:   true,
		IncidentThreshold: energy.DefaultIncidentThreshold,
		IncidentSteepness: energy.DefaultIncidentSteepness,
		IncidentMaxProb:   energy.DefaultIncidentMaxProb,
		LogInterval:       1,
	}
}

// Validate checks the configuration. All violations are unrecoverable.
func (c Config) Validate() error {
	if c.NSteps <= 0 {
		return &ConfigurationError{Field: "n_steps", Reason: "must be positive"}
	}
	if c.LogInterval <= 0 {
		return &ConfigurationError{Field: "log_interval", Reason: "must be positive"}
	}
	if c.HealthDecayRate < 0 {
		return &ConfigurationError{Field: "health_decay_rate", Reason: "must not be negative"}
	}
	if c.IncidentMaxProb < 0 || c.IncidentMaxProb > 1 {
		return &ConfigurationError{Field: "incident_max_prob", Reason: "must be in [0,1]"}
	}
	return nil
}
