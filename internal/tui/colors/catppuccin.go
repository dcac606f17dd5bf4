// Package colors holds the Catppuccin Mocha palette and the roles the TUI
// assigns to it.
package colors

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, only the shades the TUI uses
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Overlay1 = lipgloss.Color("#7f849c")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")

	Blue   = lipgloss.Color("#89b4fa")
	Sky    = lipgloss.Color("#89dceb")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

// Roles
var (
	RX          = Sky      // inbound data
	TXPending   = Overlay1 // queued, not yet confirmed
	TXDone      = Green
	TXDropped   = Peach // superseded by a newer payload
	TXFailed    = Red
	PumpRunning = Green
	PumpStopped = Red
	FTDIStatus  = Yellow // modem/line status bytes in packet tables
)
