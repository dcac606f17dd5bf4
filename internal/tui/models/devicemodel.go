package models

import (
	"context"
	"sync"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/tui/components"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeNormal:
		return "NORMAL"
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

// DeviceErrorMsg carries an error reported by the device pumps
type DeviceErrorMsg struct {
	Error error
}

// DeviceModel holds the state shared by the device TUI commands.
type DeviceModel struct {
	device     usbserial.Device
	devicePath string

	connected bool
	rawData   []components.DataReceivedMsg
	err       error
	ready     bool
	nextSeq   int

	// TX entries not yet resolved, oldest first
	pendingTX []int
	lastStats usbserial.Stats

	inputMode InputMode

	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

// maxRawData bounds the scrollback kept for redraws.
const maxRawData = 5000

func NewDeviceModel(devicePath string) *DeviceModel {
	ctx, cancel := context.WithCancel(context.Background())

	return &DeviceModel{
		devicePath: devicePath,
		rawData:    make([]components.DataReceivedMsg, 0),
		inputMode:  InputModeNormal,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *DeviceModel) GetDevice() usbserial.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.device
}

func (m *DeviceModel) SetDevice(device usbserial.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = device
}

func (m *DeviceModel) GetDevicePath() string {
	return m.devicePath
}

func (m *DeviceModel) IsConnected() bool {
	return m.connected
}

func (m *DeviceModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *DeviceModel) SetError(err error) {
	m.err = err
}

func (m *DeviceModel) IsReady() bool {
	return m.ready
}

func (m *DeviceModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *DeviceModel) GetRawData() []components.DataReceivedMsg {
	return m.rawData
}

func (m *DeviceModel) AddRawData(msg components.DataReceivedMsg) {
	m.rawData = append(m.rawData, msg)
	if len(m.rawData) > maxRawData {
		m.rawData = m.rawData[len(m.rawData)-maxRawData:]
	}
}

// NextSeq returns a sequence number for a new TX entry.
func (m *DeviceModel) NextSeq() int {
	m.nextSeq++
	return m.nextSeq
}

// UpdateTXStatus sets the status of the TX entry seq. Earlier entries still
// queued when a later one is written were superseded by it.
func (m *DeviceModel) UpdateTXStatus(seq int, status string) bool {
	found := false
	for i := range m.rawData {
		d := &m.rawData[i]
		if !d.IsTX {
			continue
		}
		if d.Seq == seq {
			d.Status = status
			found = true
		} else if d.Seq < seq && d.Status == components.TXQueued && status == components.TXWritten {
			d.Status = components.TXSuperseded
		}
	}
	return found
}

// TrackTX registers seq as handed to Device.Write.
func (m *DeviceModel) TrackTX(seq int) {
	m.pendingTX = append(m.pendingTX, seq)
}

// PendingTX returns how many TX entries wait for a status.
func (m *DeviceModel) PendingTX() int {
	return len(m.pendingTX)
}

// ApplyStats resolves pending TX entries from the counter deltas since the
// previous call. Both write modes drop the oldest pending payload, so
// superseded writes resolve from the front of the list before written ones.
// Write failures mark the most recent written entries as errors; inbound
// failures never touch TX entries.
func (m *DeviceModel) ApplyStats(stats usbserial.Stats) bool {
	superseded := int(stats.SupersededWrites - m.lastStats.SupersededWrites)
	written := int(stats.PayloadsOut - m.lastStats.PayloadsOut)
	failed := int(stats.WriteFailures - m.lastStats.WriteFailures)
	m.lastStats = stats

	changed := false
	for ; superseded > 0 && len(m.pendingTX) > 0; superseded-- {
		changed = m.UpdateTXStatus(m.pendingTX[0], components.TXSuperseded) || changed
		m.pendingTX = m.pendingTX[1:]
	}

	written = min(written, len(m.pendingTX))
	for i := 0; i < written; i++ {
		status := components.TXWritten
		if i >= written-failed {
			status = components.TXError
		}
		changed = m.UpdateTXStatus(m.pendingTX[i], status) || changed
	}
	m.pendingTX = m.pendingTX[written:]
	return changed
}

func (m *DeviceModel) ClearData() {
	m.rawData = make([]components.DataReceivedMsg, 0)
}

func (m *DeviceModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *DeviceModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *DeviceModel) ToggleInputMode() InputMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.inputMode {
	case InputModeNormal:
		m.inputMode = InputModeInsert
	case InputModeInsert:
		m.inputMode = InputModeNormal
	}
	return m.inputMode
}

func (m *DeviceModel) IsInInsertMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode == InputModeInsert
}

func (m *DeviceModel) GetContext() context.Context {
	return m.ctx
}

func (m *DeviceModel) Cancel() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *DeviceModel) Cleanup() {
	// Cancel context to stop goroutines
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	if m.device != nil {
		m.device.Close()
		m.device = nil
	}
	m.mu.Unlock()
}
