// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards key actions to the app
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a user command from the TUI
type Action int

const (
	ActionToggleRecord Action = iota
	ActionStopAll
	ActionRetry
	ActionQuit
)

// VolumeChangeMsg carries a volume or mute change
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// Controls holds channels for TUI to app communication
type Controls struct {
	Actions chan Action
	Volume  chan VolumeChangeMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Volume:  make(chan VolumeChangeMsg, 10),
	}
}

func (c *Controls) send(a Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- a:
	default:
	}
}

func (c *Controls) setVolume(volume int, muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Volume <- VolumeChangeMsg{Volume: volume, Muted: muted}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume int) Model {
	return Model{
		volume:   volume,
		phase:    "idle",
		controls: controls,
	}
}

// Run creates the TUI program; the caller starts it with Run
func Run(controls *Controls, volume int) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
}
