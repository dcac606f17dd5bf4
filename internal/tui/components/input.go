package components

import (
	"fmt"
	"strings"

	"github.com/allbin/go-usbserial/internal/tui/colors"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	switch s {
	case SendingModeHex:
		return "HEX"
	default:
		return "ASCII"
	}
}

func (s SendingMode) placeholder() string {
	if s == SendingModeHex {
		return "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."
	}
	return "Type message and press Enter to send..."
}

// inputChrome is the border, padding, prompt and separator around the field
const inputChrome = 6

// Input is the single line send field of the connect view
type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	history       *History
	terminalWidth int
}

func NewInput(placeholder string) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 1024
	ti.Prompt = ""
	ti.Focus()

	return &Input{
		textInput:   ti,
		sendingMode: SendingModeASCII,
		history:     NewHistory(),
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	i.textInput.Width = max(width-inputChrome, 20)
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModeASCII {
		i.sendingMode = SendingModeHex
	} else {
		i.sendingMode = SendingModeASCII
	}
	i.textInput.Placeholder = i.sendingMode.placeholder()
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

// PayloadSize estimates the bytes the current value will send: the text
// plus newline in ASCII mode, the digit pairs in hex mode. Odd or invalid
// hex reports -1.
func (i *Input) PayloadSize() int {
	value := i.textInput.Value()
	if i.sendingMode == SendingModeASCII {
		if value == "" {
			return 0
		}
		return len(value) + 1
	}

	digits := 0
	for _, field := range strings.Fields(value) {
		field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
		for _, r := range field {
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return -1
			}
			digits++
		}
	}
	if digits%2 != 0 {
		return -1
	}
	return digits / 2
}

func (i *Input) sizeHint() string {
	n := i.PayloadSize()
	style := lipgloss.NewStyle().Foreground(colors.Overlay0)
	switch {
	case n < 0:
		return style.Foreground(colors.TXFailed).Render("invalid")
	case n == 0:
		return ""
	default:
		return style.Render(fmt.Sprintf("%dB", n))
	}
}

func (i *Input) View() string {
	sendModeIndicator := lipgloss.NewStyle().
		Foreground(colors.Overlay0).
		Render(fmt.Sprintf("[%s] ", i.sendingMode))

	return lipgloss.JoinHorizontal(lipgloss.Left, sendModeIndicator, styles.InputStyle.Render(i.textInput.View()))
}

// ViewWithMode renders the bordered field. In normal mode it shows a hint
// instead of the text input; in insert mode it appends the payload size.
func (i *Input) ViewWithMode(inputMode string, isInsertMode bool) string {
	promptSymbol, promptColor := ">", colors.Green
	if i.sendingMode == SendingModeHex {
		promptSymbol, promptColor = "#", colors.Yellow
	}
	styledPrompt := lipgloss.NewStyle().Foreground(promptColor).Bold(true).Render(promptSymbol)

	var inputContent string
	if isInsertMode {
		inputContent = lipgloss.JoinHorizontal(lipgloss.Left, styledPrompt, " ", i.textInput.View(), " ", i.sizeHint())
	} else {
		instruction := lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Render("Press 'i' to enter insert mode")
		inputContent = lipgloss.JoinHorizontal(lipgloss.Left, styledPrompt, " ", instruction)
	}

	// RoundedBorder and the 0,1 padding take 4 columns
	inputStyle := styles.InputStyle.
		Width(max(i.terminalWidth-4, 10)).
		AlignHorizontal(lipgloss.Left)
	if isInsertMode {
		inputStyle = inputStyle.BorderForeground(colors.Green)
	}

	return inputStyle.Render(inputContent)
}

// AddToHistory remembers a sent line
func (i *Input) AddToHistory(command string) {
	i.history.Add(command)
}

// NavigateHistoryUp moves up in command history
func (i *Input) NavigateHistoryUp() {
	if line, ok := i.history.Older(i.textInput.Value()); ok {
		i.textInput.SetValue(line)
	}
}

// NavigateHistoryDown moves down in command history
func (i *Input) NavigateHistoryDown() {
	if line, ok := i.history.Newer(); ok {
		i.textInput.SetValue(line)
	}
}
