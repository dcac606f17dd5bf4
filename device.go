package usbserial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ReadCallback receives one decoded chunk per inbound completion. It runs
// on the read pump goroutine and must not block for long.
type ReadCallback func(data []byte)

// Device represents a USB serial device with asynchronous read and write
// pumps.
type Device interface {
	Open(ctx context.Context) error
	Close() error
	Write(data []byte) error
	Read(cb ReadCallback) error

	SetBaudRate(rate int) error
	SetDataBits(bits int) error
	SetStopBits(bits int) error
	SetParity(parity Parity) error
	SetFlowControl(fc FlowControl) error
	Line() LineSettings

	KillReadPump()
	RestartReadPump() error
	KillWritePump()
	RestartWritePump() error
	ReadPumpState() PumpState
	WritePumpState() PumpState

	Format() DeviceFormat
	Endpoints() (in, out Endpoint)
	Stats() Stats
}

// Stats is a snapshot of the device counters.
type Stats struct {
	ChunksIn         int64 // inbound completions delivered to the callback
	BytesIn          int64 // decoded bytes delivered
	RawBytesIn       int64 // bytes before framing removal
	PayloadsOut      int64 // payloads handed to BulkOut
	BytesOut         int64 // bytes confirmed by BulkOut
	SupersededWrites int64 // pending payloads replaced before transmission
	ReadFailures     int64 // failed bulk IN transfers
	WriteFailures    int64 // failed or short bulk OUT transfers
	DecodeFailures   int64
	Undelivered      int64 // chunks that arrived with no callback
}

type lifecycle int

const (
	stateNew lifecycle = iota
	stateOpen
	stateClosed
)

// readSubscriber boxes the callback for atomic replacement.
type readSubscriber struct {
	fn ReadCallback
}

type counters struct {
	chunksIn, bytesIn, rawBytesIn     atomic.Int64
	payloadsOut, bytesOut, superseded atomic.Int64
	readFailures, writeFailures       atomic.Int64
	decodeFailures                    atomic.Int64
	undelivered                       atomic.Int64
}

// device is the concrete implementation of the Device interface
type device struct {
	mu     sync.RWMutex
	conn   Connection
	driver Driver
	format DeviceFormat
	config Config
	state  lifecycle
	in     Endpoint
	out    Endpoint

	buf      *transferBuffer
	callback   atomic.Pointer[readSubscriber]
	armed      atomic.Bool // an inbound request is outstanding
	delivering atomic.Bool // the read callback is running

	ctx    context.Context
	cancel context.CancelFunc
	reader *pump
	writer *pump

	log   *slog.Logger
	rlog  *slog.Logger
	wlog  *slog.Logger
	stats counters
}

// Ensure device implements Device interface at compile time
var _ Device = (*device)(nil)

// New creates a device over conn specialized by driver. The device is not
// open; call Open to select endpoints and start the pumps.
func New(conn Connection, driver Driver, opts ...Option) (Device, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrInvalidConfig)
	}
	if driver == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidConfig)
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	depth := 1
	if config.WriteMode == WriteModeQueued {
		depth = config.WriteQueueDepth
	}

	d := &device{
		conn:   conn,
		driver: driver,
		format: driver.Format(),
		config: config,
		buf:    newTransferBuffer(config.ReadBufferSize, depth),
		log:    ComponentLogger(config.Logger, ComponentDevice),
		rlog:   ComponentLogger(config.Logger, ComponentReadPump),
		wlog:   ComponentLogger(config.Logger, ComponentWritePump),
	}
	d.buf.dropped = func() { d.stats.superseded.Inc() }
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.reader = newPump(ComponentReadPump, d.readLoop)
	d.writer = newPump(ComponentWritePump, d.writeLoop)
	return d, nil
}

// Open creates a device and opens it in one step.
func Open(ctx context.Context, conn Connection, driver Driver, opts ...Option) (Device, error) {
	d, err := New(conn, driver, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Open(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Open selects the endpoints, applies the stored line settings and starts
// both pumps.
func (d *device) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateOpen:
		return ErrAlreadyOpen
	case stateClosed:
		return ErrDeviceClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	in, out, err := d.driver.Setup(d.conn)
	if err != nil {
		return fmt.Errorf("%s setup: %w", d.driver.Name(), err)
	}
	if err := d.driver.ApplyLine(d.conn, d.config.Line); err != nil {
		return err
	}

	d.in, d.out = in, out
	d.state = stateOpen
	d.reader.start(d.ctx, false)
	d.writer.start(d.ctx, false)

	d.log.Info("device open",
		"driver", d.driver.Name(),
		"format", d.format,
		"in", in,
		"out", out,
		"baud", d.config.Line.BaudRate)
	return nil
}

// Close stops both pumps, waits for them to exit and releases the
// connection. It is safe after a failed Open. Called from the read
// callback it does not wait for the read pump, which exits once the
// callback returns.
func (d *device) Close() error {
	d.mu.Lock()
	if d.state == stateClosed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	d.state = stateClosed
	d.mu.Unlock()

	d.reader.stop(!d.delivering.Load())
	d.writer.stop(true)
	d.cancel()
	d.buf.resetWrite()

	err := d.conn.Close()
	d.log.Info("device closed", "stats", d.Stats())
	return err
}

func (d *device) checkOpen() error {
	switch d.state {
	case stateNew:
		return ErrDeviceNotOpen
	case stateClosed:
		return ErrDeviceClosed
	}
	return nil
}

// Write queues data for the write pump and returns immediately.
func (d *device) Write(data []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	d.buf.enqueueWrite(data)
	return nil
}

// Read registers cb and arms the first inbound transfer. Calling Read again
// replaces the callback; an already outstanding request is not re-queued.
func (d *device) Read(cb ReadCallback) error {
	if cb == nil {
		return ErrNilCallback
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	d.callback.Store(&readSubscriber{fn: cb})
	return d.arm()
}

// arm queues the scratch buffer unless a request is already outstanding.
func (d *device) arm() error {
	if !d.armed.CompareAndSwap(false, true) {
		return nil
	}
	scratch, _ := d.buf.takeReadScratch()
	if err := d.conn.QueueIn(d.in, scratch); err != nil {
		d.armed.Store(false)
		return &TransferError{Op: "in", Endpoint: d.in, Err: err}
	}
	return nil
}

func (d *device) readLoop(ctx context.Context) {
	d.rlog.Debug("read pump started")
	defer d.rlog.Debug("read pump stopped")

	for {
		c, err := d.conn.WaitIn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.readFailed(&TransferError{Op: "in", Endpoint: d.in, Err: err})
			if errors.Is(err, ErrDisconnected) {
				d.rlog.Warn("device gone, read pump exiting")
				return
			}
			if !sleepCtx(ctx, waitRetryDelay) {
				return
			}
			continue
		}
		if !c.Endpoint.IsBulkIn() {
			continue
		}

		d.buf.markReceived(c.N)
		if c.Err != nil {
			d.readFailed(&TransferError{Op: "in", Endpoint: c.Endpoint, N: c.N, Err: c.Err})
		} else {
			d.deliver(c.N)
		}
		d.buf.clearReadScratch()
		d.armed.Store(false)

		// the callback may have stopped the pump or closed the device
		if ctx.Err() != nil {
			return
		}
		if d.callback.Load() == nil {
			continue
		}
		if err := d.arm(); err != nil {
			d.readFailed(err)
		}
	}
}

// waitRetryDelay keeps a failing WaitIn from spinning.
const waitRetryDelay = 10 * time.Millisecond

// deliver decodes the received bytes and hands them to the callback.
func (d *device) deliver(n int) {
	var (
		data []byte
		err  error
	)
	if d.format == FormatRaw {
		data = d.buf.snapshotReceived()
	} else {
		raw := d.buf.receivedView()
		data, err = DecodeInto(make([]byte, 0, max(0, PayloadLen(n, d.format))), raw, d.format)
	}
	if err != nil {
		d.stats.decodeFailures.Inc()
		d.rlog.Error("dropping chunk", "bytes", n, "format", d.format, "error", err)
		d.report(err)
		return
	}

	sub := d.callback.Load()
	if sub == nil {
		d.stats.undelivered.Inc()
		err := fmt.Errorf("%w: %d bytes on %s", ErrCallbackUnavailable, len(data), d.in)
		d.rlog.Error("dropping chunk", "error", err)
		d.report(err)
		return
	}

	d.stats.chunksIn.Inc()
	d.stats.rawBytesIn.Add(int64(n))
	d.stats.bytesIn.Add(int64(len(data)))
	d.delivering.Store(true)
	defer d.delivering.Store(false)
	sub.fn(data)
}

func (d *device) writeLoop(ctx context.Context) {
	d.wlog.Debug("write pump started")
	defer d.wlog.Debug("write pump stopped")

	for {
		payload, err := d.buf.dequeueWrite(ctx)
		if err != nil {
			return
		}

		d.stats.payloadsOut.Inc()
		n, err := d.conn.BulkOut(d.out, payload, d.config.WriteTimeout)
		if n > 0 {
			d.stats.bytesOut.Add(int64(n))
		}
		if err == nil && n != len(payload) {
			err = fmt.Errorf("short write of %d/%d bytes", n, len(payload))
		}
		if err != nil {
			d.stats.writeFailures.Inc()
			d.transferFailed(d.wlog, &TransferError{Op: "out", Endpoint: d.out, N: n, Err: err})
		}
	}
}

func (d *device) readFailed(err error) {
	d.stats.readFailures.Inc()
	d.transferFailed(d.rlog, err)
}

// transferFailed reports a transfer error. Transfer errors are not retried.
func (d *device) transferFailed(log *slog.Logger, err error) {
	log.Debug("transfer failed", "error", err)
	d.report(err)
}

func (d *device) report(err error) {
	if d.config.ErrorHandler != nil {
		d.config.ErrorHandler(err)
	}
}

// KillReadPump stops the read pump and waits for it to exit. From inside
// the read callback it returns at once and the pump exits after the
// callback.
func (d *device) KillReadPump() {
	d.reader.stop(!d.delivering.Load())
}

// RestartReadPump starts the read pump if it is stopped, re-arming the
// inbound request when a callback is registered. After a kill from inside
// the read callback, a restart from that same callback returns ErrPumpBusy.
func (d *device) RestartReadPump() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	started, err := d.reader.start(d.ctx, d.delivering.Load())
	if err != nil || !started {
		return err
	}
	if d.callback.Load() == nil {
		return nil
	}
	return d.arm()
}

// KillWritePump stops the write pump and discards the pending payload.
func (d *device) KillWritePump() {
	if d.writer.stop(true) {
		d.buf.resetWrite()
	}
}

// RestartWritePump starts the write pump if it is stopped.
func (d *device) RestartWritePump() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	_, err := d.writer.start(d.ctx, false)
	return err
}

func (d *device) ReadPumpState() PumpState  { return d.reader.State() }
func (d *device) WritePumpState() PumpState { return d.writer.State() }

func (d *device) Format() DeviceFormat { return d.format }

func (d *device) Endpoints() (Endpoint, Endpoint) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.in, d.out
}

func (d *device) Line() LineSettings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config.Line
}

// SetBaudRate sets the baud rate
func (d *device) SetBaudRate(rate int) error {
	return d.setLine(func(l *LineSettings) error {
		if err := validateBaudRate(rate); err != nil {
			return err
		}
		l.BaudRate = rate
		return nil
	})
}

// SetDataBits sets the number of data bits
func (d *device) SetDataBits(bits int) error {
	return d.setLine(func(l *LineSettings) error {
		if err := validateDataBits(bits); err != nil {
			return err
		}
		l.DataBits = bits
		return nil
	})
}

// SetStopBits sets the number of stop bits
func (d *device) SetStopBits(bits int) error {
	return d.setLine(func(l *LineSettings) error {
		if err := validateStopBits(bits); err != nil {
			return err
		}
		l.StopBits = bits
		return nil
	})
}

// SetParity sets the parity mode
func (d *device) SetParity(parity Parity) error {
	return d.setLine(func(l *LineSettings) error {
		l.Parity = parity
		return nil
	})
}

// SetFlowControl sets the flow control mode
func (d *device) SetFlowControl(fc FlowControl) error {
	return d.setLine(func(l *LineSettings) error {
		l.FlowControl = fc
		return nil
	})
}

// setLine updates the line settings and applies them through the driver
// when the device is open. Before Open they are only stored.
func (d *device) setLine(update func(*LineSettings) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateClosed {
		return ErrDeviceClosed
	}

	line := d.config.Line
	if err := update(&line); err != nil {
		return err
	}
	if err := line.validate(); err != nil {
		return err
	}

	if d.state == stateOpen {
		if err := d.driver.ApplyLine(d.conn, line); err != nil {
			return err
		}
	}
	d.config.Line = line
	return nil
}

// Stats returns a snapshot of the device counters.
func (d *device) Stats() Stats {
	return Stats{
		ChunksIn:         d.stats.chunksIn.Load(),
		BytesIn:          d.stats.bytesIn.Load(),
		RawBytesIn:       d.stats.rawBytesIn.Load(),
		PayloadsOut:      d.stats.payloadsOut.Load(),
		BytesOut:         d.stats.bytesOut.Load(),
		SupersededWrites: d.stats.superseded.Load(),
		ReadFailures:     d.stats.readFailures.Load(),
		WriteFailures:    d.stats.writeFailures.Load(),
		DecodeFailures:   d.stats.decodeFailures.Load(),
		Undelivered:      d.stats.undelivered.Load(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsLifecycleError reports whether err comes from using a device outside
// its open lifetime.
func IsLifecycleError(err error) bool {
	return errors.Is(err, ErrDeviceNotOpen) || errors.Is(err, ErrDeviceClosed) || errors.Is(err, ErrAlreadyOpen)
}
