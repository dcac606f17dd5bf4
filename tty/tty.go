// Package tty implements usbserial.Connection on top of a kernel serial
// device (ttyUSB, ttyACM, COM ports) through go.bug.st/serial. The kernel
// driver already strips any vendor framing, so devices opened here pair
// with usbserial.GenericDriver.
package tty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/atomic"

	"github.com/allbin/go-usbserial"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("tty connection closed")

// Synthetic endpoints reported for a tty. The kernel hides the real ones.
var (
	EndpointIn  = usbserial.BulkIn(1, 512)
	EndpointOut = usbserial.BulkOut(2, 512)
)

// Conn is a usbserial.Connection backed by a serial port.
type Conn struct {
	port serial.Port
	path string
	log  *slog.Logger

	mu     sync.Mutex // serializes SetMode against Close
	closed atomic.Bool

	completions chan usbserial.Completion
	done        chan struct{}
	readers     sync.WaitGroup
	writeMu     sync.Mutex
}

var (
	_ usbserial.Connection     = (*Conn)(nil)
	_ usbserial.LineConfigurer = (*Conn)(nil)
	_ usbserial.EndpointLister = (*Conn)(nil)
)

// Open opens the serial port at path with the given line settings.
func Open(path string, line usbserial.LineSettings, opts ...Option) (*Conn, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	mode, err := modeFor(line)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(cfg.pollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	c := &Conn{
		port:        port,
		path:        path,
		log:         usbserial.ComponentLogger(cfg.logger, usbserial.ComponentTTY).With("path", path),
		completions: make(chan usbserial.Completion, 16),
		done:        make(chan struct{}),
	}
	c.log.Debug("port open", "baud", line.BaudRate, "format", formatLine(line))
	return c, nil
}

// Endpoints implements usbserial.EndpointLister.
func (c *Conn) Endpoints() []usbserial.Endpoint {
	return []usbserial.Endpoint{EndpointIn, EndpointOut}
}

// QueueIn starts one read into buf. The read returns as soon as any bytes
// arrive, like a bulk IN transfer ending on a short packet.
func (c *Conn) QueueIn(ep usbserial.Endpoint, buf []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !ep.IsIn() {
		return fmt.Errorf("%w: %s is not an IN endpoint", usbserial.ErrInvalidConfig, ep)
	}

	c.readers.Add(1)
	go func() {
		defer c.readers.Done()
		for {
			n, err := c.port.Read(buf)
			if n == 0 && err == nil {
				// Read timeout, nothing arrived yet.
				select {
				case <-c.done:
					return
				default:
					continue
				}
			}
			if c.closed.Load() {
				return
			}
			select {
			case c.completions <- usbserial.Completion{Endpoint: ep, N: n, Err: err}:
			case <-c.done:
			}
			return
		}
	}()
	return nil
}

// WaitIn implements usbserial.Connection.
func (c *Conn) WaitIn(ctx context.Context) (usbserial.Completion, error) {
	select {
	case comp := <-c.completions:
		return comp, nil
	case <-ctx.Done():
		return usbserial.Completion{}, ctx.Err()
	case <-c.done:
		return usbserial.Completion{}, ErrClosed
	}
}

// BulkOut writes data and drains the output buffer, giving up after
// timeout. A timed out write keeps running in the background until the
// port is closed.
func (c *Conn) BulkOut(ep usbserial.Endpoint, data []byte, timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		n, err := c.port.Write(data)
		if err == nil {
			err = c.port.Drain()
		}
		resultCh <- writeResult{n: n, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-timer.C:
		return 0, fmt.Errorf("write to %s timed out after %v", ep, timeout)
	case <-c.done:
		return 0, ErrClosed
	}
}

// SetLine implements usbserial.LineConfigurer.
func (c *Conn) SetLine(line usbserial.LineSettings) error {
	mode, err := modeFor(line)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.port.SetMode(mode); err != nil {
		return fmt.Errorf("failed to set line %s: %w", formatLine(line), err)
	}
	c.log.Debug("line settings applied", "baud", line.BaudRate, "format", formatLine(line))
	return nil
}

// Close closes the port and waits for outstanding reads to return.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(c.done)
	err := c.port.Close()
	c.readers.Wait()
	c.log.Debug("port closed")
	return err
}

// modeFor converts line settings to a serial.Mode. Flow control is not
// expressible through go.bug.st/serial and is ignored.
func modeFor(line usbserial.LineSettings) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: line.BaudRate,
		DataBits: line.DataBits,
	}

	switch line.Parity {
	case usbserial.ParityNone:
		mode.Parity = serial.NoParity
	case usbserial.ParityOdd:
		mode.Parity = serial.OddParity
	case usbserial.ParityEven:
		mode.Parity = serial.EvenParity
	case usbserial.ParityMark:
		mode.Parity = serial.MarkParity
	case usbserial.ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %v", usbserial.ErrInvalidConfig, line.Parity)
	}

	switch line.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: %d stop bits", usbserial.ErrInvalidConfig, line.StopBits)
	}

	return mode, nil
}

func formatLine(line usbserial.LineSettings) string {
	return fmt.Sprintf("%d%s%d", line.DataBits, line.Parity, line.StopBits)
}
