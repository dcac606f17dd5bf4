package styles

import (
	"github.com/allbin/go-usbserial/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Command line output styles
	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Green)

	WarnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Yellow)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay1)
)

type StatusType int

const (
	StatusConnected StatusType = iota
	StatusDisconnected
	StatusConnecting
	StatusError
)

// Symbol returns the glyph printed in front of a status line.
func (s StatusType) Symbol() string {
	switch s {
	case StatusConnected:
		return SuccessStyle.Render("✓")
	case StatusConnecting:
		return InfoStyle.Render("⚡")
	case StatusError:
		return ErrorStyle.Render("✗")
	default:
		return WarnStyle.Render("○")
	}
}
