package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-usbserial/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// TX status values
const (
	TXQueued     = "QUEUED"
	TXWritten    = "WRITTEN"
	TXSuperseded = "SUPERSEDED"
	TXError      = "ERROR"
)

type DataReceivedMsg struct {
	Timestamp time.Time
	Data      []byte
	IsTX      bool
	Status    string // TX only, one of the TX* constants
	Seq       int    // TX only, matches status updates to their payload
}

type DisplayMode struct {
	ShowHex        bool
	ShowASCII      bool
	HideTimestamps bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) SetHideTimestamps(hide bool) {
	df.mode.HideTimestamps = hide
}

// ASCII renders data with non-printable bytes replaced by dots.
func ASCII(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func (df *DataFormatter) FormatMessage(msg DataReceivedMsg) string {
	var indicator string
	if msg.IsTX {
		var txColor lipgloss.Color
		var statusText string

		switch msg.Status {
		case TXQueued:
			txColor = colors.TXPending
			statusText = "TX ○"
		case TXWritten:
			txColor = colors.TXDone
			statusText = "TX ✓"
		case TXSuperseded:
			txColor = colors.TXDropped
			statusText = "TX ↷"
		case TXError:
			txColor = colors.TXFailed
			statusText = "TX ✗"
		default:
			txColor = colors.TXPending
			statusText = "TX"
		}

		indicator = lipgloss.NewStyle().
			Foreground(txColor).
			Bold(true).
			Render("↗ " + statusText)
	} else {
		indicator = lipgloss.NewStyle().
			Foreground(colors.RX).
			Bold(true).
			Render("↙ RX")
	}

	var parts []string

	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", msg.Data))
	}

	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+ASCII(msg.Data))
	}

	// If both are disabled, show raw bytes count
	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
	}

	if df.mode.HideTimestamps {
		return fmt.Sprintf("%s: %s", indicator, strings.Join(parts, "  "))
	}

	timestampStyled := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s]", msg.Timestamp.Format("15:04:05.000")))

	return fmt.Sprintf("%s %s: %s", timestampStyled, indicator, strings.Join(parts, "  "))
}

func (df *DataFormatter) FormatMessages(messages []DataReceivedMsg) []string {
	formatted := make([]string, len(messages))
	for i, msg := range messages {
		formatted[i] = df.FormatMessage(msg)
	}
	return formatted
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

func (df *DataFormatter) ToggleTimestamps() {
	df.mode.HideTimestamps = !df.mode.HideTimestamps
}
