/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/tui/components"
	"github.com/allbin/go-usbserial/internal/tui/keys"
	"github.com/allbin/go-usbserial/internal/tui/models"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const statsInterval = 200 * time.Millisecond

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <device>",
	Short: "Connect to a USB serial device with bidirectional communication",
	Long: `Connect to a USB serial device with an interactive terminal interface.

The device is opened with both pumps running. Received data is streamed with
timestamps, and every line sent from the input field is tracked until the
write pump reports it as written, superseded by a newer payload, or failed.

Features include:
- ASCII and hex display and send modes
- Kill and restart of the read and write pumps (r / w)
- Live pump state in the status bar
- Transfer counters on demand (s)

Example usage:
  usbserial connect /dev/bus/usb/001/004
  usbserial connect /dev/bus/usb/001/004 --baud 9600
  usbserial connect /dev/ttyUSB0 --backend tty --driver generic
  usbserial connect loop --backend loopback`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConnectTUI(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

// statsTickMsg carries a periodic snapshot of the device counters
type statsTickMsg struct {
	stats usbserial.Stats
	pumps components.PumpStateMsg
}

// mailboxSize bounds the device messages waiting for the event loop
const mailboxSize = 256

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*models.DeviceModel
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ConnectKeys
	mailbox   *models.Mailbox
	dropped   int64
}

func newConnectModel(path string, connInfo *components.ConnectionInfo) *connectModel {
	deviceModel := models.NewDeviceModel(path)
	m := &connectModel{
		DeviceModel: deviceModel,
		terminal:    components.NewTerminal(0, 0),
		statusBar:   components.NewStatusBar("USB Serial Connect", deviceModel.GetDevicePath()),
		input:       components.NewInput("Type message and press Enter to send..."),
		help:        help.New(),
		keys:        keys.NewConnectKeys(),
		mailbox:     models.NewMailbox(mailboxSize),
	}
	m.statusBar.SetConnecting()
	m.statusBar.SetConnectionInfo(connInfo)
	return m
}

// readCallback hands chunks to the mailbox. It runs on the read pump, which
// Update may be waiting on in KillReadPump or Close, so it must not block.
func (m *connectModel) readCallback(data []byte) {
	m.mailbox.Post(components.DataReceivedMsg{
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (m *connectModel) errorHandler(err error) {
	m.mailbox.Post(models.DeviceErrorMsg{Error: err})
}

func runConnectTUI(path string) error {
	driverName := strings.ToLower(viper.GetString("driver"))
	driver, err := usbserial.LookupDriver(driverName)
	if err != nil {
		return err
	}
	opts, err := deviceOptions()
	if err != nil {
		return err
	}
	config, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	m := newConnectModel(path, &components.ConnectionInfo{
		Backend: viper.GetString("backend"),
		Driver:  driverName,
		Format:  driver.Format(),
		Line:    config.Line,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	go m.mailbox.Run(m.GetContext(), p.Send)

	go func() {
		dev, err := openDevice(m.GetContext(), path, usbserial.WithErrorHandler(m.errorHandler))
		if err != nil {
			p.Send(models.ConnectionStatusMsg{Connected: false, Error: err})
			return
		}
		m.SetDevice(dev)

		err = dev.Read(m.readCallback)
		p.Send(models.ConnectionStatusMsg{Connected: err == nil, Error: err})
	}()

	_, err = p.Run()

	m.Cleanup()
	return err
}

func statsTick(dev usbserial.Device) tea.Cmd {
	return tea.Tick(statsInterval, func(time.Time) tea.Msg {
		return statsTickMsg{
			stats: dev.Stats(),
			pumps: components.PumpStateMsg{
				Read:  dev.ReadPumpState(),
				Write: dev.WritePumpState(),
			},
		}
	})
}

func (m *connectModel) Init() tea.Cmd {
	return nil
}

// notice adds a local, non-device line to the terminal
func (m *connectModel) notice(format string, args ...any) {
	m.terminal.AddFormattedMessage(styles.MutedStyle.Render(fmt.Sprintf(format, args...)))
}

func (m *connectModel) send() {
	dev := m.GetDevice()
	inputStr := m.input.Value()
	if inputStr == "" || dev == nil {
		return
	}

	var payload []byte
	switch m.input.GetSendingMode() {
	case components.SendingModeHex:
		parsed, err := parseHexInput(inputStr)
		if err != nil {
			m.notice("Invalid hex input: %v", err)
			return
		}
		payload = parsed
	default:
		payload = []byte(inputStr + "\n")
	}

	txData := components.DataReceivedMsg{
		Timestamp: time.Now(),
		Data:      payload,
		IsTX:      true,
		Status:    components.TXQueued,
		Seq:       m.NextSeq(),
	}
	if err := dev.Write(payload); err != nil {
		txData.Status = components.TXError
	} else {
		m.TrackTX(txData.Seq)
	}
	m.AddRawData(txData)
	m.terminal.AddMessage(txData)

	m.input.AddToHistory(inputStr)
	m.input.SetValue("")
}

// toggleInput flips between normal and insert mode and moves focus with it
func (m *connectModel) toggleInput() {
	if m.ToggleInputMode() == models.InputModeInsert {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *connectModel) togglePump(read bool) {
	dev := m.GetDevice()
	if dev == nil {
		return
	}

	name, state := "write", dev.WritePumpState()
	kill, restart := dev.KillWritePump, dev.RestartWritePump
	if read {
		name, state = "read", dev.ReadPumpState()
		kill, restart = dev.KillReadPump, dev.RestartReadPump
	}

	if state == usbserial.PumpRunning {
		kill()
		m.notice("%s pump stopped", name)
	} else if err := restart(); err != nil {
		m.notice("%s pump restart failed: %v", name, err)
	} else {
		m.notice("%s pump restarted", name)
	}
	m.statusBar.UpdatePumpState(components.PumpStateMsg{
		Read:  dev.ReadPumpState(),
		Write: dev.WritePumpState(),
	})
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input area height (includes border) plus the single line status bar
		verticalMarginHeight := 3 + 1

		m.terminal.SetSize(msg.Width, msg.Height-verticalMarginHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.SetReady(true)

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		if msg.Error != nil {
			m.SetError(msg.Error)
			m.statusBar.SetDisconnected(msg.Error)
			break
		}
		m.statusBar.SetConnected()
		if dev := m.GetDevice(); dev != nil {
			in, out := dev.Endpoints()
			m.statusBar.SetConnectionInfo(&components.ConnectionInfo{
				Backend:   viper.GetString("backend"),
				Driver:    viper.GetString("driver"),
				Format:    dev.Format(),
				Line:      dev.Line(),
				In:        in,
				Out:       out,
				ReadPump:  dev.ReadPumpState(),
				WritePump: dev.WritePumpState(),
			})
			cmds = append(cmds, statsTick(dev))
		}
		m.input.Focus()

	case models.DeviceErrorMsg:
		m.SetError(msg.Error)
		if m.IsReady() {
			m.terminal.AddFormattedMessage(styles.ErrorStyle.Render(fmt.Sprintf("%s %v", styles.StatusError.Symbol(), msg.Error)))
		}

	case statsTickMsg:
		m.statusBar.UpdatePumpState(msg.pumps)
		if m.ApplyStats(msg.stats) {
			m.terminal.RefreshDisplayWithRawData(m.GetRawData())
		}
		if dropped := m.mailbox.Dropped(); dropped > m.dropped {
			m.notice("display fell behind, %d device messages dropped", dropped-m.dropped)
			m.dropped = dropped
		}
		if dev := m.GetDevice(); dev != nil {
			cmds = append(cmds, statsTick(dev))
		}

	case components.DataReceivedMsg:
		if m.IsReady() {
			m.AddRawData(msg)
			m.terminal.AddMessage(msg)
		}

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.toggleInput()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				m.send()
				return m, nil
			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, nil
			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, nil
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.Cleanup()
				return m, tea.Quit

			case key.Matches(msg, m.keys.InsertMode):
				m.toggleInput()
				return m, nil

			case key.Matches(msg, m.keys.Clear):
				m.ClearData()
				m.terminal.Clear()

			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll

			case key.Matches(msg, m.keys.ToggleHex):
				m.terminal.ToggleHex()
				m.terminal.RefreshDisplayWithRawData(m.GetRawData())

			case key.Matches(msg, m.keys.ToggleASCII):
				m.terminal.ToggleASCII()
				m.terminal.RefreshDisplayWithRawData(m.GetRawData())

			case key.Matches(msg, m.keys.ToggleTimestamps):
				m.terminal.ToggleTimestamps()
				m.terminal.RefreshDisplayWithRawData(m.GetRawData())

			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()

			case key.Matches(msg, m.keys.Up):
				m.terminal.ScrollUp(1)

			case key.Matches(msg, m.keys.Down):
				m.terminal.ScrollDown(1)

			case key.Matches(msg, m.keys.GotoTop):
				m.terminal.GotoTop()

			case key.Matches(msg, m.keys.GotoBottom):
				m.terminal.GotoBottom()

			case key.Matches(msg, m.keys.ToggleReadPump):
				m.togglePump(true)

			case key.Matches(msg, m.keys.ToggleWritePump):
				m.togglePump(false)

			case key.Matches(msg, m.keys.Stats):
				if dev := m.GetDevice(); dev != nil {
					m.terminal.AddFormattedMessage(components.StatsTable(dev.Stats()))
				}
			}
		}
	}

	// Only the input consumes keys in insert mode
	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	if _, ok := msg.(tea.WindowSizeMsg); ok {
		_, cmd = m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *connectModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}

	inputMode := m.GetInputMode().String()
	input := m.input.ViewWithMode(inputMode, m.IsInInsertMode())

	sendingMode := m.input.GetSendingMode().String()
	timestamp := time.Now().Format("15:04:05")
	statusBar := m.statusBar.ComprehensiveStatusBar(inputMode, sendingMode, m.IsConnected(), timestamp)

	views := []string{
		styles.ContentBorderStyle.Render(content),
		input,
		statusBar,
	}
	if m.help.ShowAll {
		views = append(views, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, views...)
}
