package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/softphys/tensegrity/pkg/scenario"
	"github.com/softphys/tensegrity/pkg/sim"
	"github.com/softphys/tensegrity/pkg/state"
	"github.com/softphys/tensegrity/pkg/store"
)

func main() {
	var (
		scenarioFile string
		steps        int
		seed         int64
		jsonOutput   bool
		outputFile   string
		dbPath       string
	)

	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario YAML file")
	flag.IntVar(&steps, "steps", 0, "Override number of steps (0 = scenario default)")
	flag.Int64Var(&seed, "seed", -1, "Override random seed (-1 = scenario default)")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&outputFile, "out", "", "Write output to file instead of stdout")
	flag.StringVar(&dbPath, "db", "", "Archive the run in this SQLite database")
	flag.Parse()

	var sc *scenario.Scenario
	if scenarioFile != "" {
		var err error
		sc, err = scenario.Load(scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "No scenario file provided, running built-in baseline...")
		sc = scenario.Baseline()
	}

	st, actors, cfg, err := sc.Build()
	if err != nil {
		log.Fatalf("Failed to build scenario: %v", err)
	}
	if steps > 0 {
		cfg.NSteps = steps
	}
	if seed >= 0 {
		cfg.RandomSeed = &seed
	}

	simulator, err := sim.New(st, actors, cfg)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}
	hist, err := simulator.Run()
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	if dbPath != "" {
		archive, err := store.NewStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		defer archive.Close()

		usedSeed := int64(0)
		if cfg.RandomSeed != nil {
			usedSeed = *cfg.RandomSeed
		}
		rec, err := archive.SaveRun(sc.Name, usedSeed, hist)
		if err != nil {
			log.Fatalf("Failed to archive run: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Archived as run %d\n", rec.ID)
	}

	writeReport(sc.Name, simulator, hist, jsonOutput, outputFile)
}

// report is the JSON output shape of one run.
type report struct {
	Scenario string        `json:"scenario"`
	Summary  state.Summary `json:"summary"`
	History  *sim.History  `json:"history"`
	HighRisk []string      `json:"high_risk"`
	Hubs     []hubEntry    `json:"high_energy_hubs"`
}

type hubEntry struct {
	Node   string  `json:"node"`
	ELocal float64 `json:"e_local"`
}

func writeReport(name string, simulator *sim.Simulator, hist *sim.History, jsonFmt bool, filePath string) {
	st := simulator.State()
	summary := st.SummaryStats()

	var output []byte
	var err error

	if jsonFmt {
		hubs := make([]hubEntry, 0, 3)
		for _, h := range st.HighEnergyHubs(3) {
			hubs = append(hubs, hubEntry{Node: h.Node, ELocal: h.ELocal})
		}
		output, err = json.MarshalIndent(report{
			Scenario: name,
			Summary:  summary,
			History:  hist,
			HighRisk: st.HighRiskNodes(0.6),
			Hubs:     hubs,
		}, "", "  ")
	} else {
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("\n--- Simulation Report: %s ---\n", name))
		buf.WriteString(fmt.Sprintf("Steps: %d | Events: %d | Incidents: %d\n",
			summary.TimeStep, len(hist.Events), len(hist.Incidents)))
		buf.WriteString(fmt.Sprintf("H: %.4f (T=%.4f, V_struct=%.4f, V_bus=%.4f)\n",
			summary.H, summary.T, summary.VStruct, summary.VBus))
		buf.WriteString(fmt.Sprintf("Health: %.3f ± %.3f | Complexity: %.3f ± %.3f | Badness: %.3f ± %.3f\n",
			summary.HealthMean, summary.HealthStd,
			summary.ComplexityMean, summary.ComplexityStd,
			summary.BadMean, summary.BadStd))

		if risky := st.HighRiskNodes(0.6); len(risky) > 0 {
			buf.WriteString("\nHigh-risk modules (badness > 0.6):\n")
			for _, n := range risky {
				buf.WriteString(fmt.Sprintf("  %s (bad=%.3f, health=%.3f)\n", n, st.Bad[n], st.Health[n]))
			}
		}

		buf.WriteString("\nHigh-energy hubs:\n")
		for _, h := range st.HighEnergyHubs(3) {
			buf.WriteString(fmt.Sprintf("  %s (E_local=%.4f)\n", h.Node, h.ELocal))
		}

		if len(hist.Incidents) > 0 {
			buf.WriteString("\nIncidents:\n")
			for _, inc := range hist.Incidents {
				buf.WriteString(fmt.Sprintf("  step %d: %s at %s (severity=%.3f)\n",
					inc.TimeStep, inc.Type, inc.Node, inc.Severity))
			}
		}
		output = buf.Bytes()
	}

	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}

	if filePath != "" {
		if err := os.WriteFile(filePath, output, 0644); err != nil {
			log.Fatalf("Failed to write report to %s: %v", filePath, err)
		}
		fmt.Printf("Report written to %s\n", filePath)
	} else {
		fmt.Println(string(output))
	}
}
