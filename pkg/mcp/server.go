// Package mcp exposes the simulator over the Model Context Protocol:
// tools to run scenarios and sweeps, resources over the run archive,
// and a prompt introducing the energy model's vocabulary.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/softphys/tensegrity/pkg/scenario"
	"github.com/softphys/tensegrity/pkg/sim"
	"github.com/softphys/tensegrity/pkg/store"
	"github.com/softphys/tensegrity/pkg/sweep"
)

// Server adapts the simulator and run archive to MCP.
type Server struct {
	mcpServer *server.MCPServer
	archive   *store.Store
}

// NewServer creates an MCP server over the given run archive. The
// archive may be nil; run_simulation then skips archiving.
func NewServer(archive *store.Store) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"tensegrity",
			"1.0.0",
		),
		archive: archive,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// tensegrity://runs
	s.mcpServer.AddResource(mcp.NewResource(
		"tensegrity://runs",
		"Archived Simulation Runs",
		mcp.WithResourceDescription("Recent archived runs with final energy and incident counts"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRuns)

	// tensegrity://incidents
	s.mcpServer.AddResource(mcp.NewResource(
		"tensegrity://incidents",
		"Incident Counts By Module",
		mcp.WithResourceDescription("How many archived incidents each module has accumulated"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadIncidents)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"run_simulation",
		mcp.WithDescription("Run a scenario and return its summary. Uses the built-in baseline unless a scenario file is given."),
		mcp.WithString("scenario_path", mcp.Description("Path to a YAML scenario file (default: built-in baseline)")),
		mcp.WithNumber("steps", mcp.Description("Number of steps (default 100)")),
		mcp.WithNumber("seed", mcp.Description("Random seed (default 42)")),
	), s.handleRunSimulation)

	s.mcpServer.AddTool(mcp.NewTool(
		"run_sweep",
		mcp.WithDescription("Run the same scenario under multiple seeds and return the aggregate."),
		mcp.WithString("scenario_path", mcp.Description("Path to a YAML scenario file (default: built-in baseline)")),
		mcp.WithNumber("steps", mcp.Description("Number of steps per run (default 100)")),
		mcp.WithNumber("seeds", mcp.Description("Number of seeds, starting at 1 (default 10)")),
	), s.handleRunSweep)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"tensegrity-aware",
		mcp.WithPromptDescription("Provides context about the energy model (badness, Hamiltonian, incidents)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		return scenario.Baseline(), nil
	}
	return scenario.Load(path)
}

func (s *Server) handleReadRuns(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("no run archive configured")
	}
	runs, err := s.archive.ListRuns("", 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadIncidents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("no run archive configured")
	}
	counts, err := s.archive.IncidentsByNode("")
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}

	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal incident counts: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRunSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarioPath := mcp.ParseString(request, "scenario_path", "")
	steps := int(mcp.ParseFloat64(request, "steps", 100))
	seed := int64(mcp.ParseFloat64(request, "seed", 42))

	sc, err := s.loadScenario(scenarioPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scenario error: %v", err)), nil
	}

	st, actors, cfg, err := sc.Build()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build error: %v", err)), nil
	}
	cfg.NSteps = steps
	cfg.RandomSeed = &seed

	simulator, err := sim.New(st, actors, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("config error: %v", err)), nil
	}
	hist, err := simulator.Run()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run error: %v", err)), nil
	}

	if s.archive != nil {
		if _, err := s.archive.SaveRun(sc.Name, seed, hist); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("archive error: %v", err)), nil
		}
	}

	summary := simulator.State().SummaryStats()
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRunSweep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarioPath := mcp.ParseString(request, "scenario_path", "")
	steps := int(mcp.ParseFloat64(request, "steps", 100))
	nSeeds := int(mcp.ParseFloat64(request, "seeds", 10))

	sc, err := s.loadScenario(scenarioPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scenario error: %v", err)), nil
	}

	cfg := sc.BuildConfig()
	cfg.NSteps = steps

	seeds := make([]int64, nSeeds)
	for i := range seeds {
		seeds[i] = int64(i + 1)
	}

	runner := sweep.NewRunner(sc, cfg, 0)
	results, err := runner.Run(ctx, seeds)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sweep error: %v", err)), nil
	}

	agg := sweep.AggregateResults(results)
	data, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "tensegrity-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with Tensegrity, a physics-style simulator of
software system evolution.

Concepts:
- Module: a node in the coupling graph, carrying health, complexity and demand in [0,1].
- Badness: the per-module stress blend bad = 0.4*(1-health) + 0.3*complexity + 0.3*risk.
- Hamiltonian (H): total system stress, kinetic plus potential energy. Rising H means trouble.
- Incident: a stochastic failure sampled where badness exceeds the critical threshold.
- Actors: feature engineers raise complexity for demand, refactor engineers pay it down,
  AI agents alternate between the two with a stress-adjusted bias.

Use 'run_simulation' to run one scenario, 'run_sweep' for a multi-seed
Monte Carlo sweep. Read 'tensegrity://runs' for archived runs and
'tensegrity://incidents' for incident hot spots.
`

	return mcp.NewGetPromptResult(
		"tensegrity-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
