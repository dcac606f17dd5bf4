package usbserial

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrInvalidBaudRate = errors.New("invalid baud rate")
	ErrInvalidConfig   = errors.New("invalid serial configuration")

	// Lifecycle misuse
	ErrDeviceNotOpen = errors.New("usb serial device is not open")
	ErrDeviceClosed  = errors.New("usb serial device is closed")
	ErrAlreadyOpen   = errors.New("usb serial device already open")
	ErrPumpBusy      = errors.New("pump is still draining its current loop")

	// Transfer and pipeline errors
	ErrTransferFailed      = errors.New("usb transfer failed")
	ErrDecodeInvariant     = errors.New("decoded length does not match framing")
	ErrCallbackUnavailable = errors.New("data received with no read callback registered")
	ErrNilCallback         = errors.New("read callback is nil")
	ErrNoEndpoint          = errors.New("no suitable bulk endpoint")
	ErrNotSupported        = errors.New("operation not supported by connection")
	ErrUnknownDriver       = errors.New("unknown device driver")
	ErrDisconnected        = errors.New("usb device disconnected")
)

// TransferError describes a failed bulk transfer on one endpoint.
// It matches ErrTransferFailed with errors.Is.
type TransferError struct {
	Op       string // "in" or "out"
	Endpoint Endpoint
	N        int // bytes moved before the failure
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("bulk %s transfer on endpoint 0x%02x failed after %d bytes: %v", e.Op, e.Endpoint.Address, e.N, e.Err)
}

func (e *TransferError) Unwrap() []error {
	return []error{ErrTransferFailed, e.Err}
}
