// Package sweep runs Monte Carlo seed sweeps: the same scenario
// simulated under many seeds, in parallel, with per-seed summaries and
// an aggregate. Each seed gets its own state and its own random stream,
// so workers share nothing and every seed's run is reproducible in
// isolation.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/softphys/tensegrity/pkg/scenario"
	"github.com/softphys/tensegrity/pkg/sim"
)

// Result is the per-seed outcome of one sweep run.
type Result struct {
	Seed          int64   `json:"seed"`
	FinalH        float64 `json:"final_h"`
	FinalT        float64 `json:"final_t"`
	FinalV        float64 `json:"final_v"`
	MeanHealth    float64 `json:"mean_health"`
	MeanBad       float64 `json:"mean_bad"`
	IncidentCount int     `json:"incident_count"`
	EventCount    int     `json:"event_count"`
}

// Aggregate summarizes a whole sweep.
type Aggregate struct {
	Runs           int     `json:"runs"`
	FinalHMean     float64 `json:"final_h_mean"`
	FinalHStd      float64 `json:"final_h_std"`
	IncidentMean   float64 `json:"incident_mean"`
	IncidentTotal  int     `json:"incident_total"`
	MeanHealthMean float64 `json:"mean_health_mean"`
}

// Runner executes one scenario across many seeds.
type Runner struct {
	Scenario *scenario.Scenario
	Config   sim.Config
	Workers  int
}

// NewRunner creates a sweep runner. Workers <= 0 means one worker per
// seed up to 8.
func NewRunner(sc *scenario.Scenario, cfg sim.Config, workers int) *Runner {
	return &Runner{Scenario: sc, Config: cfg, Workers: workers}
}

// Run simulates every seed and returns the results ordered by seed.
// The first error cancels the remaining work.
func (r *Runner) Run(ctx context.Context, seeds []int64) ([]Result, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("sweep: no seeds")
	}

	workers := r.Workers
	if workers <= 0 {
		workers = len(seeds)
		if workers > 8 {
			workers = 8
		}
	}

	type job struct {
		idx  int
		seed int64
	}
	jobs := make(chan job)
	results := make([]Result, len(seeds))
	errs := make(chan error, len(seeds))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := r.runSeed(j.seed)
				if err != nil {
					errs <- fmt.Errorf("seed %d: %w", j.seed, err)
					continue
				}
				slog.Debug("Sweep seed completed", "scenario", r.Scenario.Name,
					"seed", j.seed, "finalH", res.FinalH, "incidents", res.IncidentCount)
				results[j.idx] = res
			}
		}()
	}

	var cancelled error
feed:
	for i, seed := range seeds {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- job{idx: i, seed: seed}:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if cancelled != nil {
		return nil, cancelled
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Seed < results[j].Seed })
	return results, nil
}

// runSeed builds a fresh state and simulator for one seed and runs it
// to completion.
func (r *Runner) runSeed(seed int64) (Result, error) {
	st, err := r.Scenario.BuildState()
	if err != nil {
		return Result{}, err
	}
	actors := r.Scenario.BuildActors()

	cfg := r.Config
	s := seed
	cfg.RandomSeed = &s

	simulator, err := sim.New(st, actors, cfg)
	if err != nil {
		return Result{}, err
	}
	hist, err := simulator.Run()
	if err != nil {
		return Result{}, err
	}

	summary := simulator.State().SummaryStats()
	return Result{
		Seed:          seed,
		FinalH:        summary.H,
		FinalT:        summary.T,
		FinalV:        summary.V,
		MeanHealth:    summary.HealthMean,
		MeanBad:       summary.BadMean,
		IncidentCount: len(hist.Incidents),
		EventCount:    len(hist.Events),
	}, nil
}

// Aggregate reduces sweep results to summary statistics.
func AggregateResults(results []Result) Aggregate {
	agg := Aggregate{Runs: len(results)}
	if len(results) == 0 {
		return agg
	}

	var hSum, healthSum float64
	for _, r := range results {
		hSum += r.FinalH
		healthSum += r.MeanHealth
		agg.IncidentTotal += r.IncidentCount
	}
	n := float64(len(results))
	agg.FinalHMean = hSum / n
	agg.MeanHealthMean = healthSum / n
	agg.IncidentMean = float64(agg.IncidentTotal) / n

	var sq float64
	for _, r := range results {
		d := r.FinalH - agg.FinalHMean
		sq += d * d
	}
	agg.FinalHStd = math.Sqrt(sq / n)
	return agg
}
