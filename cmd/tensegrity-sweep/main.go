package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/softphys/tensegrity/pkg/scenario"
	"github.com/softphys/tensegrity/pkg/sweep"
	"github.com/softphys/tensegrity/pkg/sweep/redisboard"
)

func main() {
	var (
		scenarioFile string
		steps        int
		nSeeds       int
		firstSeed    int64
		workers      int
		jsonOutput   bool
		redisAddr    string
		sweepName    string
		workerID     string
	)

	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario YAML file")
	flag.IntVar(&steps, "steps", 0, "Override number of steps (0 = scenario default)")
	flag.IntVar(&nSeeds, "seeds", 10, "Number of seeds to sweep")
	flag.Int64Var(&firstSeed, "first-seed", 1, "First seed value")
	flag.IntVar(&workers, "workers", 0, "Worker goroutines (0 = auto)")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&redisAddr, "redis", "", "Redis address for a distributed sweep (empty = local)")
	flag.StringVar(&sweepName, "name", "", "Sweep name for the shared board (default: scenario name)")
	flag.StringVar(&workerID, "worker-id", "", "Worker id on the shared board (default: hostname+pid)")
	flag.Parse()

	var sc *scenario.Scenario
	if scenarioFile != "" {
		var err error
		sc, err = scenario.Load(scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "No scenario file provided, sweeping built-in baseline...")
		sc = scenario.Baseline()
	}

	cfg := sc.BuildConfig()
	if steps > 0 {
		cfg.NSteps = steps
	}

	seeds := make([]int64, nSeeds)
	for i := range seeds {
		seeds[i] = firstSeed + int64(i)
	}

	runner := sweep.NewRunner(sc, cfg, workers)
	ctx := context.Background()

	var results []sweep.Result
	if redisAddr != "" {
		results = runDistributed(ctx, runner, sc, seeds, redisAddr, sweepName, workerID)
	} else {
		var err error
		results, err = runner.Run(ctx, seeds)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
	}

	writeReport(sc.Name, results, jsonOutput)
}

// runDistributed claims seeds on a shared Redis board so several
// processes can split one sweep, then reads back everything published
// so far.
func runDistributed(ctx context.Context, runner *sweep.Runner, sc *scenario.Scenario, seeds []int64, addr, name, workerID string) []sweep.Result {
	if name == "" {
		name = sc.Name
	}
	if workerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		workerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	board := redisboard.New(client, name)
	done, err := board.RunWorker(ctx, runner, seeds, workerID, 10*time.Minute)
	if err != nil {
		log.Fatalf("Distributed sweep failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Worker %s completed %d of %d seeds\n", workerID, len(done), len(seeds))

	results, err := board.Results(ctx)
	if err != nil {
		log.Fatalf("Failed to read sweep board: %v", err)
	}
	return results
}

func writeReport(name string, results []sweep.Result, jsonFmt bool) {
	agg := sweep.AggregateResults(results)

	var output []byte
	var err error
	if jsonFmt {
		output, err = json.MarshalIndent(struct {
			Scenario  string          `json:"scenario"`
			Aggregate sweep.Aggregate `json:"aggregate"`
			Results   []sweep.Result  `json:"results"`
		}{name, agg, results}, "", "  ")
	} else {
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("\n--- Sweep Report: %s ---\n", name))
		buf.WriteString(fmt.Sprintf("Runs: %d\n", agg.Runs))
		buf.WriteString(fmt.Sprintf("Final H: %.4f ± %.4f\n", agg.FinalHMean, agg.FinalHStd))
		buf.WriteString(fmt.Sprintf("Incidents: %d total (%.2f per run)\n", agg.IncidentTotal, agg.IncidentMean))
		buf.WriteString(fmt.Sprintf("Mean health: %.3f\n", agg.MeanHealthMean))
		buf.WriteString("\nPer seed:\n")
		for _, r := range results {
			buf.WriteString(fmt.Sprintf("  seed %4d: H=%.4f incidents=%d events=%d\n",
				r.Seed, r.FinalH, r.IncidentCount, r.EventCount))
		}
		output = buf.Bytes()
	}

	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}
	fmt.Println(string(output))
}
