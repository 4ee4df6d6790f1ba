// ABOUTME: Bubbletea model for the greeting studio TUI
// ABOUTME: Shows recorder, live session and sync playback status
package ui

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const maxTranscriptLines = 4

// Model represents the TUI state
type Model struct {
	// Live session
	connected  bool
	gatewayURL string

	// Recorder
	recording  bool
	frames     int
	dropped    int
	recorded   time.Duration
	level      float64
	transcript []string

	// Playback
	phase   string
	warning string
	errText string
	active  int
	volume  int
	muted   bool

	showDebug bool
	session   uint64

	controls *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case TranscriptMsg:
		m.appendTranscript(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderRecorder()
	s += m.renderTranscript()
	s += m.renderPlayback()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	status := "Offline"
	if m.connected {
		status = "Live: " + truncate(m.gatewayURL, 39)
	}

	return fmt.Sprintf(`┌─ Greetcast Studio ───────────────────────────────────┐
│ Session: %-44s │
├──────────────────────────────────────────────────────┤
`, status)
}

func (m Model) renderRecorder() string {
	state := "Idle"
	if m.recording {
		state = "● Recording"
	}

	return fmt.Sprintf("│ Mic:    %-12s %5.1fs  Level [%s] │\n"+
		"│ Frames: %-6d Dropped: %-6d%-17s │\n",
		state, m.recorded.Seconds(), renderBar(int(m.level*100), 100, 12),
		m.frames, m.dropped, "")
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "│ (no transcript yet)                                  │\n"
	}
	s := ""
	for _, line := range m.transcript {
		s += fmt.Sprintf("│ %-52s │\n", truncate(line, 52))
	}
	return s
}

func (m Model) renderPlayback() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	phase := m.phase
	if phase == "" {
		phase = "idle"
	}

	s := fmt.Sprintf("├──────────────────────────────────────────────────────┤\n"+
		"│ Playback: %-10s Voices: %-3d%-19s │\n"+
		"│ Volume: [%s] %3d%%%-8s%-14s │\n",
		phase, m.active, "",
		renderBar(m.volume, 100, 10), m.volume, muteIcon, "")

	if m.warning != "" {
		s += fmt.Sprintf("│ ⚠ %-50s │\n", truncate(m.warning, 50))
	}
	if m.errText != "" {
		s += fmt.Sprintf("│ ✗ %-50s │\n", truncate(m.errText, 50))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Record  s:Stop  r:Retry  ↑/↓:Volume  m:Mute q:Quit │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) renderDebug() string {
	return fmt.Sprintf("│ DEBUG: sync session %-32d │\n", m.session)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(ActionQuit)
		return m, tea.Quit
	case " ", "space":
		m.controls.send(ActionToggleRecord)
	case "s":
		m.controls.send(ActionStopAll)
	case "r":
		m.controls.send(ActionRetry)
	case "up":
		if m.volume < 100 {
			m.volume = min(m.volume+5, 100)
			m.controls.setVolume(m.volume, m.muted)
		}
	case "down":
		if m.volume > 0 {
			m.volume = max(m.volume-5, 0)
			m.controls.setVolume(m.volume, m.muted)
		}
	case "m":
		m.muted = !m.muted
		m.controls.setVolume(m.volume, m.muted)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.GatewayURL != "" {
		m.gatewayURL = msg.GatewayURL
	}
	if msg.Recording != nil {
		m.recording = *msg.Recording
	}
	if msg.Frames != 0 {
		m.frames = msg.Frames
		m.dropped = msg.Dropped
		m.recorded = msg.Recorded
	}
	if msg.Level != nil {
		m.level = math.Min(math.Max(*msg.Level, 0), 1)
	}
	if msg.Phase != "" {
		m.phase = msg.Phase
		m.session = msg.Session
		m.warning = msg.Warning
		m.errText = msg.Err
	}
	if msg.Active != nil {
		m.active = *msg.Active
	}
}

func (m *Model) appendTranscript(msg TranscriptMsg) {
	if msg.Text == "" {
		return
	}
	line := msg.Text
	if msg.Role != "" {
		line = msg.Role + ": " + msg.Text
	}
	m.transcript = append(m.transcript, line)
	if len(m.transcript) > maxTranscriptLines {
		m.transcript = m.transcript[len(m.transcript)-maxTranscriptLines:]
	}
}

// StatusMsg updates TUI state; zero fields are left unchanged
type StatusMsg struct {
	Connected  *bool
	GatewayURL string

	Recording *bool
	Frames    int
	Dropped   int
	Recorded  time.Duration
	Level     *float64

	Phase   string
	Session uint64
	Warning string
	Err     string
	Active  *int
}

// TranscriptMsg appends a line of live transcript
type TranscriptMsg struct {
	Role string
	Text string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
