package components

import (
	"fmt"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/tui/colors"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// PumpStateMsg reports a pump being killed or restarted
type PumpStateMsg struct {
	Read  usbserial.PumpState
	Write usbserial.PumpState
}

type ConnectionInfo struct {
	Backend   string
	Driver    string
	Format    usbserial.DeviceFormat
	Line      usbserial.LineSettings
	In        usbserial.Endpoint
	Out       usbserial.Endpoint
	ReadPump  usbserial.PumpState
	WritePump usbserial.PumpState
}

type StatusBar struct {
	title          string
	devicePath     string
	status         string
	err            error
	width          int
	connectionInfo *ConnectionInfo
}

func NewStatusBar(title, devicePath string) *StatusBar {
	return &StatusBar{
		title:      title,
		devicePath: devicePath,
		status:     "Initializing...",
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnectionInfo(info *ConnectionInfo) {
	sb.connectionInfo = info
}

func (sb *StatusBar) UpdatePumpState(msg PumpStateMsg) {
	if sb.connectionInfo != nil {
		sb.connectionInfo.ReadPump = msg.Read
		sb.connectionInfo.WritePump = msg.Write
	}
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected - listening for data..."
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
		sb.err = err
	} else {
		sb.status = "Disconnected"
		sb.err = nil
	}
}

// LineSummary renders line settings as "115200 8N1 none".
func LineSummary(line usbserial.LineSettings) string {
	return fmt.Sprintf("%d %d%s%d %s", line.BaudRate, line.DataBits, line.Parity, line.StopBits, line.FlowControl)
}

func pumpGlyph(name string, state usbserial.PumpState) string {
	if state == usbserial.PumpRunning {
		return lipgloss.NewStyle().Foreground(colors.PumpRunning).Render(name + ":●")
	}
	return lipgloss.NewStyle().Foreground(colors.PumpStopped).Render(name + ":○")
}

// ViewAsHeader renders a one line title with the connection details
func (sb *StatusBar) ViewAsHeader() string {
	title := styles.TitleStyle.Render(sb.devicePath)

	var connectionInfo string
	if sb.connectionInfo != nil {
		connectionInfo = fmt.Sprintf(" | %s via %s (%s), %s",
			sb.connectionInfo.Driver,
			sb.connectionInfo.Backend,
			sb.connectionInfo.Format,
			LineSummary(sb.connectionInfo.Line))
	}

	connInfoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Faint(true)
	connInfo := connInfoStyle.Render(connectionInfo)

	return lipgloss.JoinHorizontal(lipgloss.Left, title, connInfo)
}

// ComprehensiveStatusBar renders a comprehensive status bar with all connection info
func (sb *StatusBar) ComprehensiveStatusBar(inputMode, sendingMode string, connected bool, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: Mode indicator (like NORMAL in nvim)
	modeStyle := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1)
	modeText := "NORMAL"
	if inputMode == "INSERT" {
		modeStyle = modeStyle.Background(colors.Green)
		modeText = "INSERT"
	}
	mode := modeStyle.Render(modeText)

	// Section 2: Device path
	pathStyle := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1)
	path := pathStyle.Render(sb.devicePath)

	// Section 3: Single character connection indicator
	var connIndicator string
	var connStyle lipgloss.Style

	switch {
	case sb.err != nil:
		connStyle = lipgloss.NewStyle().Foreground(colors.Red)
		connIndicator = "✗"
	case connected:
		connStyle = lipgloss.NewStyle().Foreground(colors.Green)
		connIndicator = "●"
	case sb.status == "Connecting...":
		connStyle = lipgloss.NewStyle().Foreground(colors.Yellow)
		connIndicator = "○"
	default:
		connStyle = lipgloss.NewStyle().Foreground(colors.Red)
		connIndicator = "○"
	}
	connectionIndicator := connStyle.Render(connIndicator)

	// Section 4: Connection info and pump states
	connInfo := "⚡ usb"
	pumps := ""
	if sb.connectionInfo != nil {
		connInfo = fmt.Sprintf("⚡ %s %s", sb.connectionInfo.Driver, LineSummary(sb.connectionInfo.Line))
		pumps = lipgloss.JoinHorizontal(lipgloss.Left,
			pumpGlyph("RX", sb.connectionInfo.ReadPump), " ",
			pumpGlyph("TX", sb.connectionInfo.WritePump))
	}
	connInfoStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1)
	connectionDetails := connInfoStyle.Render(connInfo)

	// Section 5: Timestamp (like position)
	timeStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1)
	clock := timeStyle.Render(timestamp)

	dividerStyle := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1)
	divider := dividerStyle.Render("│")

	// Sending mode indicator with Tab hint, only in INSERT mode
	var sendingModeInfo string
	if inputMode == "INSERT" {
		sendingModeStyle := lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1)
		sendingModeInfo = sendingModeStyle.Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode))
	}

	var leftSide string
	if sendingModeInfo != "" {
		leftSide = lipgloss.JoinHorizontal(lipgloss.Left, mode, path, connectionIndicator, sendingModeInfo, divider)
	} else {
		leftSide = lipgloss.JoinHorizontal(lipgloss.Left, mode, path, connectionIndicator, divider)
	}

	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, pumps, connectionDetails, divider, clock)

	spacerWidth := max(terminalWidth-lipgloss.Width(leftSide)-lipgloss.Width(rightSide), 1)
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide)
	return statusBarStyle.Render(content)
}
