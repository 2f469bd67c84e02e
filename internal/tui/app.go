// Package tui is the terminal front end: a bubbletea program that steps a
// multibody system live, and a plain ANSI renderer usable as an observer.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/controllers"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/experiment"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var modelInfo = map[string]string{
	"pendulum":          "single pin joint",
	"double_pendulum":   "chaotic pin pair",
	"chain":             "five pin links",
	"reversed_pendulum": "pin joint, reversed",
	"servo_arm":         "pid-driven pin pair",
	"pin_slider_ball":   "pin, slider and ball",
	"gyroscope":         "spinning top on a ball",
	"tumbling_box":      "free body, intermediate axis",
	"ellipsoid_roller":  "ellipsoid contact joint",
}

// ManualTorque is the generalized force one key press applies.
const ManualTorque = 20.0

type screen int

const (
	screenMenu screen = iota
	screenConfig
	screenSim
)

var integratorNames = []string{"rk4", "verlet", "leapfrog", "euler", "rk45"}

type model struct {
	screen  screen
	cursor  int
	presets []string
	cfg     *config.Config
	reg     *experiment.Registry

	params      map[string]float64
	paramNames  []string
	paramCursor int
	integrator  int
	editing     bool
	editBuf     string

	built    *config.Model
	step     dynamo.Integrator
	manual   *controllers.Manual
	scene    *Scene
	frame    Frame
	extent   float64
	trail    []Link
	history  []float64
	x        dynamo.State
	simTime  float64
	mobility int
	errMsg   string

	running   bool
	paused    bool
	speed     float64
	lastFrame time.Time
	fps       float64

	width  int
	height int
}

// NewInteractiveApp starts on the preset menu, or directly on the settings
// of cfg when it is non-nil.
func NewInteractiveApp(cfg *config.Config) *model {
	m := &model{
		screen:     screenMenu,
		presets:    config.ListPresets(),
		reg:        experiment.NewRegistry(),
		params:     map[string]float64{},
		paramNames: []string{"dt", "duration", "g", "speed"},
		speed:      1.0,
		width:      80,
		height:     24,
	}
	if cfg != nil {
		m.load(cfg)
	}
	return m
}

func (m *model) load(cfg *config.Config) {
	m.cfg = cfg
	m.screen = screenConfig
	m.paramCursor = 0
	m.params["dt"] = cfg.Dt
	m.params["duration"] = cfg.Duration
	m.params["g"] = cfg.Gravity.G
	m.params["speed"] = 1
	m.integrator = 0
	for i, n := range integratorNames {
		if n == cfg.Integrator {
			m.integrator = i
		}
	}
}

func (m model) Init() tea.Cmd { return nil }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.screen != screenSim {
			return m, nil
		}
		if m.running && !m.paused && m.x != nil {
			now := time.Now()
			if !m.lastFrame.IsZero() {
				if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
					m.fps = 1.0 / dt
				}
			}
			m.lastFrame = now
			m.advance(max(1, int(m.speed)))
		}
		if m.running {
			return m, tick()
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.screen {
	case screenMenu:
		return m.menuKey(msg)
	case screenConfig:
		return m.configKey(msg)
	case screenSim:
		return m.simKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.load(config.GetPreset(m.presets[m.cursor]))
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			if _, err := fmt.Sscanf(m.editBuf, "%f", &val); err == nil {
				m.params[m.paramNames[m.paramCursor]] = val
			}
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == 'e' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.screen = screenMenu
		m.errMsg = ""
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(m.paramNames)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing = true
		m.editBuf = fmt.Sprintf("%g", m.params[m.paramNames[m.paramCursor]])
	case "i":
		m.integrator = (m.integrator + 1) % len(integratorNames)
	case "s":
		if err := m.start(); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.screen = screenSim
		return m, tea.Batch(tea.ClearScreen, tick())
	case "left", "h":
		m.nudge(0.5)
	case "right", "l":
		m.nudge(2)
	}
	return m, nil
}

func (m *model) nudge(f float64) {
	name := m.paramNames[m.paramCursor]
	if name == "g" && m.params[name] == 0 && f > 1 {
		m.params[name] = 1
		return
	}
	m.params[name] *= f
}

func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.running = false
		m.screen = screenMenu
		m.reset()
		return m, tea.ClearScreen
	case " ", "p":
		m.paused = !m.paused
	case "r":
		if err := m.start(); err != nil {
			m.errMsg = err.Error()
		}
		return m, tea.ClearScreen
	case "c":
		m.running = false
		m.screen = screenConfig
		m.reset()
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = math.Min(m.speed*2, 64)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 1)
	case "0":
		m.speed = 1.0
	case "tab":
		if nu := m.built.Tree.NU(); nu > 0 {
			m.mobility = (m.mobility + 1) % nu
		}
	case "left", "h":
		m.manual.Set(m.mobility, -ManualTorque)
	case "right", "l":
		m.manual.Set(m.mobility, ManualTorque)
	}
	return m, nil
}

// start rebuilds the model from the edited settings.
func (m *model) start() error {
	cfg := *m.cfg
	cfg.Dt = m.params["dt"]
	cfg.Duration = m.params["duration"]
	cfg.Gravity.G = m.params["g"]
	cfg.Integrator = integratorNames[m.integrator]

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	step, err := m.reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}
	m.built = built
	m.step = step
	m.manual = controllers.NewManual(built.Tree.NU())
	m.scene = NewScene(built.System)
	m.x = built.InitialVector()
	m.simTime = 0
	m.mobility = 0
	m.trail = make([]Link, 0, 100)
	m.history = make([]float64, 0, 60)
	m.speed = math.Max(1, m.params["speed"])
	m.lastFrame = time.Time{}
	m.errMsg = ""

	m.frame, err = m.scene.Frame(m.x, 0)
	if err != nil {
		return err
	}
	m.extent = 1.2 * math.Max(m.frame.Extent(), 0.5)
	m.running = true
	m.paused = false
	return nil
}

func (m *model) reset() {
	m.trail = nil
	m.history = nil
	m.built = nil
	m.scene = nil
	m.x = nil
	m.simTime = 0
}

// advance takes n fixed steps. Manual forces last one tick.
func (m *model) advance(n int) {
	dt := m.params["dt"]
	for range n {
		if m.simTime >= m.params["duration"] {
			m.paused = true
			break
		}
		c := m.built.Controller.Compute(m.x, m.simTime)
		for i, v := range m.manual.Compute(m.x, m.simTime) {
			c[i] += v
		}
		next := m.step.Step(m.built.System, m.x, c, m.simTime, dt)
		if !next.IsValid() {
			m.paused = true
			m.errMsg = "state diverged"
			if err := m.built.System.LastError(); err != nil {
				m.errMsg = err.Error()
			}
			break
		}
		m.built.System.Project(next, nil)
		m.x = next
		m.simTime += dt
	}
	m.manual.Clear()

	frame, err := m.scene.Frame(m.x, m.simTime)
	if err != nil {
		m.errMsg = err.Error()
		m.paused = true
		return
	}
	m.frame = frame
	if len(frame.Links) > 0 {
		m.trail = append(m.trail, frame.Links[len(frame.Links)-1])
		if len(m.trail) > 100 {
			m.trail = m.trail[1:]
		}
	}
	m.history = append(m.history, frame.KE+frame.PE)
	if len(m.history) > 60 {
		m.history = m.history[1:]
	}
}

func (m model) View() string {
	switch m.screen {
	case screenMenu:
		return m.viewMenu()
	case screenConfig:
		return m.viewConfig()
	case screenSim:
		return m.viewSim()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("         " + cyan.Render("r i g i d t r e e") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	for i, name := range m.presets {
		desc := modelInfo[name]
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-20s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-20s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter configure   q quit") + "\n")

	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(m.cfg.Name) + "  " + dim.Render(modelInfo[m.cfg.Name]) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")

	for i, name := range m.paramNames {
		val := fmt.Sprintf("%8.4g", m.params[name])
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.paramCursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-10s", name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-10s", name)) + dim.Render(val) + "\n")
		}
	}
	b.WriteString("        " + dim.Render(fmt.Sprintf("%-10s", "integrator")) + magenta.Render(fmt.Sprintf("%8s", integratorNames[m.integrator])) + "\n")

	if m.errMsg != "" {
		b.WriteString("\n      " + red.Render(m.errMsg) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select  ←→ halve/double  enter edit  i integrator  s start  esc back") + "\n")

	return b.String()
}

func (m model) viewSim() string {
	cw := max(m.width-6, 50)
	ch := max(m.height-12, 12)
	c := newCanvas(cw, ch, m.extent)
	for _, l := range m.trail {
		c.plot(l.Center, '·')
	}
	m.frame.draw(c)

	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	if m.paused {
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s  %s\n",
		statusIcon, cyan.Render(m.cfg.Name), statusText, dim.Render(integratorNames[m.integrator])))

	duration := m.params["duration"]
	progress := math.Min(m.simTime/duration, 1)
	barWidth := 36
	filled := int(progress * float64(barWidth))
	timeStr := fmt.Sprintf("%.2fs/%.0fs", m.simTime, duration)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s  %s  %s\n\n", bar, dim.Render(timeStr),
		dim.Render(fmt.Sprintf("x%.0f", m.speed)), dim.Render(fmt.Sprintf("%.0ffps", m.fps))))

	b.WriteString(c.rows("   "))

	ke, pe := m.frame.KE, m.frame.PE
	if span := math.Abs(ke) + math.Abs(pe); span > 0 {
		energyWidth := 20
		keBar := int(math.Abs(ke) / span * float64(energyWidth))
		b.WriteString(fmt.Sprintf("\n   energy %s%s  %s %.3f  %s %.3f  %s %.3f\n",
			green.Render(strings.Repeat("█", keBar)),
			yellow.Render(strings.Repeat("█", energyWidth-keBar)),
			green.Render("KE"), ke,
			yellow.Render("PE"), pe,
			dim.Render("E"), ke+pe))
	}
	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s", dim.Render("E"), cyan.Render(sparkline(m.history, 24))))
	}
	if m.frame.QErr > 0 {
		b.WriteString(dim.Render(fmt.Sprintf("   |q|-1 %.1e", m.frame.QErr)))
	}
	b.WriteString("\n")

	if m.built != nil && m.built.Tree.NU() > 0 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("push"), white.Render(m.columnName(m.mobility))))
	}
	if m.errMsg != "" {
		b.WriteString("   " + red.Render(m.errMsg) + "\n")
	}

	b.WriteString("\n" + dim.Render("   space pause  ±speed  tab mobility  ←→ push  r reset  c config  q quit") + "\n")

	return b.String()
}

func (m model) columnName(u int) string {
	nq, _, _ := m.built.System.Split()
	cols := m.built.Columns()
	if nq+u < len(cols) {
		return cols[nq+u]
	}
	return fmt.Sprintf("u%d", u)
}

// RunInteractive opens the live view; with a nil cfg it starts at the
// preset menu.
func RunInteractive(cfg *config.Config) error {
	p := tea.NewProgram(NewInteractiveApp(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
