package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/softphys/tensegrity/pkg/scenario"
	"github.com/softphys/tensegrity/pkg/sim"
)

// Config
const (
	frameRate      = 150 * time.Millisecond
	viewportHeight = 14
	barWidth       = 30
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	nodeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(14)
	calmBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	critBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	incidentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	eventStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type tickMsg time.Time

type runMsg struct {
	name  string
	nodes []string
	hist  *sim.History
	err   error
}

type model struct {
	spinner  spinner.Model
	viewport viewport.Model

	scenarioFile string
	steps        int
	seed         int64

	name  string
	nodes []string
	hist  *sim.History

	frame   int
	playing bool
	ready   bool
	err     error
}

func initialModel(scenarioFile string, steps int, seed int64) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		spinner:      s,
		viewport:     vp,
		scenarioFile: scenarioFile,
		steps:        steps,
		seed:         seed,
		playing:      true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		runSimulation(m.scenarioFile, m.steps, m.seed),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.playing = !m.playing
		case "left", "h":
			m.playing = false
			if m.frame > 0 {
				m.frame--
			}
		case "right", "l":
			m.playing = false
			if m.hist != nil && m.frame < len(m.hist.Steps)-1 {
				m.frame++
			}
		case "r":
			m.frame = 0
			m.playing = true
		}
		m.updateViewportContent()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		if m.ready && m.playing && m.frame < len(m.hist.Steps)-1 {
			m.frame++
			m.updateViewportContent()
		}
		cmds = append(cmds, tick())

	case runMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.name = msg.name
			m.nodes = msg.nodes
			m.hist = msg.hist
			m.ready = true
			m.updateViewportContent()
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	if m.hist == nil {
		return
	}

	var sb strings.Builder
	for _, n := range m.nodes {
		bad := m.hist.Bad[n][m.frame]
		health := m.hist.Health[n][m.frame]
		sb.WriteString(fmt.Sprintf("%s %s bad=%.3f health=%.3f\n",
			nodeStyle.Render(n), renderBar(bad), bad, health))
	}

	step := m.hist.Steps[m.frame]
	sb.WriteString("\n")
	for _, inc := range m.hist.Incidents {
		if inc.TimeStep == step {
			sb.WriteString(incidentStyle.Render(
				fmt.Sprintf("INCIDENT %s at %s (severity=%.3f)", inc.Type, inc.Node, inc.Severity)) + "\n")
		}
	}
	for _, ev := range m.hist.Events {
		if ev.Step == step {
			sb.WriteString(eventStyle.Render(fmt.Sprintf("%s: %s", ev.Actor, ev.Description)) + "\n")
		}
	}

	m.viewport.SetContent(sb.String())
}

// renderBar draws a badness bar, colored by how close the node is to
// the critical threshold.
func renderBar(bad float64) string {
	filled := int(bad * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	switch {
	case bad > 0.6:
		return critBarStyle.Render(bar)
	case bad > 0.4:
		return warnBarStyle.Render(bar)
	default:
		return calmBarStyle.Render(bar)
	}
}

func (m model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\nSimulation failed: %v\n", m.err)) +
			subtleStyle.Render("Press q to quit\n")
	}
	if !m.ready {
		return fmt.Sprintf("\n%s Running simulation...", m.spinner.View())
	}

	step := m.hist.Steps[m.frame]
	header := headerStyle.Render(fmt.Sprintf("%s %s | step %d/%d",
		m.spinner.View(), m.name, step, m.hist.Steps[len(m.hist.Steps)-1]))

	energyLine := statusStyle.Render(fmt.Sprintf(
		"H=%.4f  T=%.4f  V=%.4f  (struct=%.4f bus=%.4f)",
		m.hist.H[m.frame], m.hist.T[m.frame], m.hist.V[m.frame],
		m.hist.VStruct[m.frame], m.hist.VBus[m.frame]))
	topPane := paneStyle.Render(energyLine)

	var status string
	if m.playing {
		status = okStyle.Render("Playing")
	} else {
		status = subtleStyle.Render("Paused")
	}
	footer := subtleStyle.Render(fmt.Sprintf(
		"\n%s • %d incidents total\nspace play/pause • ←/→ step • r restart • q quit",
		status, len(m.hist.Incidents)))

	return lipgloss.JoinVertical(lipgloss.Left, header, topPane, m.viewport.View(), footer)
}

// Commands

func runSimulation(scenarioFile string, steps int, seed int64) tea.Cmd {
	return func() tea.Msg {
		var sc *scenario.Scenario
		if scenarioFile != "" {
			var err error
			sc, err = scenario.Load(scenarioFile)
			if err != nil {
				return runMsg{err: err}
			}
		} else {
			sc = scenario.Baseline()
		}

		st, actors, cfg, err := sc.Build()
		if err != nil {
			return runMsg{err: err}
		}
		if steps > 0 {
			cfg.NSteps = steps
		}
		if seed >= 0 {
			cfg.RandomSeed = &seed
		}

		simulator, err := sim.New(st, actors, cfg)
		if err != nil {
			return runMsg{err: err}
		}
		hist, err := simulator.Run()
		if err != nil {
			return runMsg{err: err}
		}

		return runMsg{name: sc.Name, nodes: st.Graph.Nodes(), hist: hist}
	}
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	var (
		scenarioFile string
		steps        int
		seed         int64
	)
	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario YAML file")
	flag.IntVar(&steps, "steps", 0, "Override number of steps (0 = scenario default)")
	flag.Int64Var(&seed, "seed", -1, "Override random seed (-1 = scenario default)")
	flag.Parse()

	p := tea.NewProgram(initialModel(scenarioFile, steps, seed), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
