package usbserial_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/loopback"
)

const waitTimeout = 2 * time.Second

func quiet() usbserial.Option {
	return usbserial.WithLogger(slog.New(slog.DiscardHandler))
}

func openDevice(t *testing.T, conn *loopback.Conn, driver usbserial.Driver, opts ...usbserial.Option) usbserial.Device {
	t.Helper()
	dev, err := usbserial.Open(context.Background(), conn, driver, append([]usbserial.Option{quiet()}, opts...)...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		var zero T
		t.Fatal("timed out waiting")
		return zero
	}
}

func expectNothing[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v", v)
	case <-time.After(d):
	}
}

func collect(ch chan []byte) usbserial.ReadCallback {
	return func(data []byte) { ch <- data }
}

func TestDeviceLifecycle(t *testing.T) {
	conn := loopback.New()
	dev, err := usbserial.New(conn, &usbserial.GenericDriver{}, quiet())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := dev.Write([]byte("x")); !errors.Is(err, usbserial.ErrDeviceNotOpen) {
		t.Errorf("Write before Open = %v, want ErrDeviceNotOpen", err)
	}
	if err := dev.Read(func([]byte) {}); !errors.Is(err, usbserial.ErrDeviceNotOpen) {
		t.Errorf("Read before Open = %v, want ErrDeviceNotOpen", err)
	}
	if dev.ReadPumpState() != usbserial.PumpStopped || dev.WritePumpState() != usbserial.PumpStopped {
		t.Error("pumps must not run before Open")
	}

	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := dev.Open(context.Background()); !errors.Is(err, usbserial.ErrAlreadyOpen) {
		t.Errorf("second Open() = %v, want ErrAlreadyOpen", err)
	}
	if dev.ReadPumpState() != usbserial.PumpRunning || dev.WritePumpState() != usbserial.PumpRunning {
		t.Error("pumps must run after Open")
	}

	in, out := dev.Endpoints()
	if in != usbserial.BulkIn(1, 64) || out != usbserial.BulkOut(2, 64) {
		t.Errorf("Endpoints() = %v, %v", in, out)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.Closed() {
		t.Error("Close must release the connection")
	}
	if dev.ReadPumpState() != usbserial.PumpStopped || dev.WritePumpState() != usbserial.PumpStopped {
		t.Error("pumps must be stopped after Close")
	}

	if err := dev.Write([]byte("x")); !errors.Is(err, usbserial.ErrDeviceClosed) {
		t.Errorf("Write after Close = %v, want ErrDeviceClosed", err)
	}
	if err := dev.Read(func([]byte) {}); !errors.Is(err, usbserial.ErrDeviceClosed) {
		t.Errorf("Read after Close = %v, want ErrDeviceClosed", err)
	}
	if err := dev.Close(); !errors.Is(err, usbserial.ErrDeviceClosed) {
		t.Errorf("second Close() = %v, want ErrDeviceClosed", err)
	}
	if err := dev.Open(context.Background()); !errors.Is(err, usbserial.ErrDeviceClosed) {
		t.Errorf("Open after Close = %v, want ErrDeviceClosed", err)
	}
	if err := dev.RestartReadPump(); !usbserial.IsLifecycleError(err) {
		t.Errorf("RestartReadPump after Close = %v, want lifecycle error", err)
	}
}

func TestOpenFailureClosesConnection(t *testing.T) {
	conn := loopback.New(loopback.WithEndpoints(usbserial.Endpoint{}, usbserial.Endpoint{}))
	_, err := usbserial.Open(context.Background(), conn, &usbserial.GenericDriver{}, quiet())
	if !errors.Is(err, usbserial.ErrNoEndpoint) {
		t.Errorf("Open() error = %v, want ErrNoEndpoint", err)
	}
	if !conn.Closed() {
		t.Error("failed Open must close the connection")
	}
}

func TestOpenCancelledContext(t *testing.T) {
	dev, err := usbserial.New(loopback.New(), &usbserial.GenericDriver{}, quiet())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := dev.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := usbserial.New(nil, &usbserial.GenericDriver{}); !errors.Is(err, usbserial.ErrInvalidConfig) {
		t.Errorf("New(nil conn) = %v, want ErrInvalidConfig", err)
	}
	if _, err := usbserial.New(loopback.New(), nil); !errors.Is(err, usbserial.ErrInvalidConfig) {
		t.Errorf("New(nil driver) = %v, want ErrInvalidConfig", err)
	}
	if _, err := usbserial.New(loopback.New(), &usbserial.GenericDriver{}, usbserial.WithBaudRate(1)); !errors.Is(err, usbserial.ErrInvalidBaudRate) {
		t.Errorf("New(baud 1) = %v, want ErrInvalidBaudRate", err)
	}
}

func TestReadRawPreservesOrder(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	got := make(chan []byte, 16)
	if err := dev.Read(collect(got)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	chunks := []string{"abc", "defgh", "i", "jklmnop"}
	for _, c := range chunks {
		if err := conn.Feed([]byte(c)); err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
	}
	for _, want := range chunks {
		if data := recv(t, got); string(data) != want {
			t.Errorf("chunk = %q, want %q", data, want)
		}
	}

	stats := dev.Stats()
	if stats.ChunksIn != 4 || stats.BytesIn != 16 || stats.RawBytesIn != 16 {
		t.Errorf("Stats() = %+v, want 4 chunks and 16 bytes", stats)
	}
}

func TestReadFTDIStripsStatus(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.FTDIDriver{})
	if dev.Format() != usbserial.FormatFTDI {
		t.Fatalf("Format() = %v, want ftdi", dev.Format())
	}

	got := make(chan []byte, 16)
	if err := dev.Read(collect(got)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	payload := bytes.Repeat([]byte("0123456789"), 15)
	chunk := loopback.FrameFTDI(payload, [2]byte{0x01, 0x60})
	if len(chunk) != 156 {
		t.Fatalf("framed chunk = %d bytes, want 156", len(chunk))
	}
	conn.Feed(chunk)
	conn.Feed(loopback.FrameFTDI(nil, [2]byte{0x01, 0x60}))

	if data := recv(t, got); !bytes.Equal(data, payload) {
		t.Errorf("decoded %d bytes, want %d", len(data), len(payload))
	}
	if data := recv(t, got); len(data) != 0 {
		t.Errorf("status-only chunk decoded to %q, want empty", data)
	}

	stats := dev.Stats()
	if stats.RawBytesIn != 158 || stats.BytesIn != 150 {
		t.Errorf("Stats() raw=%d decoded=%d, want 158/150", stats.RawBytesIn, stats.BytesIn)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	conn := loopback.New(loopback.WithEcho(true))
	dev := openDevice(t, conn, &usbserial.FTDIDriver{})

	got := make(chan []byte, 16)
	dev.Read(collect(got))

	if err := dev.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if data := recv(t, got); string(data) != "hello" {
		t.Errorf("echo = %q, want %q", data, "hello")
	}
}

func TestReadReplacesCallbackWithoutRequeue(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	first := make(chan []byte, 4)
	second := make(chan []byte, 4)
	dev.Read(collect(first))
	dev.Read(collect(second))

	if n := conn.QueueCount(); n != 1 {
		t.Errorf("QueueIn called %d times, want 1", n)
	}

	conn.Feed([]byte("x"))
	if data := recv(t, second); string(data) != "x" {
		t.Errorf("second callback got %q, want %q", data, "x")
	}
	expectNothing(t, first, 20*time.Millisecond)
}

func TestReadNilCallback(t *testing.T) {
	dev := openDevice(t, loopback.New(), &usbserial.GenericDriver{})
	if err := dev.Read(nil); !errors.Is(err, usbserial.ErrNilCallback) {
		t.Errorf("Read(nil) = %v, want ErrNilCallback", err)
	}
}

func TestReadIgnoresNonBulkInCompletions(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	got := make(chan []byte, 4)
	dev.Read(collect(got))

	conn.Inject(usbserial.Completion{Endpoint: usbserial.BulkOut(2, 64), N: 3})
	conn.Inject(usbserial.Completion{
		Endpoint: usbserial.Endpoint{Address: 0x83, Type: usbserial.TransferInterrupt},
		N:        2,
	})
	conn.Feed([]byte("ok"))

	if data := recv(t, got); string(data) != "ok" {
		t.Errorf("chunk = %q, want %q", data, "ok")
	}
	expectNothing(t, got, 20*time.Millisecond)
}

func TestUndeliveredWithoutCallback(t *testing.T) {
	conn := loopback.New()
	errs := make(chan error, 4)
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithErrorHandler(func(err error) { errs <- err }))

	conn.Inject(usbserial.Completion{Endpoint: usbserial.BulkIn(1, 64), N: 4})

	if err := recv(t, errs); !errors.Is(err, usbserial.ErrCallbackUnavailable) {
		t.Errorf("error = %v, want ErrCallbackUnavailable", err)
	}
	if n := dev.Stats().Undelivered; n != 1 {
		t.Errorf("Undelivered = %d, want 1", n)
	}
}

func TestInboundTransferFailureReArms(t *testing.T) {
	conn := loopback.New()
	errs := make(chan error, 4)
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithErrorHandler(func(err error) { errs <- err }))

	got := make(chan []byte, 4)
	dev.Read(collect(got))

	conn.Inject(usbserial.Completion{Endpoint: usbserial.BulkIn(1, 64), Err: errors.New("babble")})

	err := recv(t, errs)
	var te *usbserial.TransferError
	if !errors.As(err, &te) || te.Op != "in" {
		t.Fatalf("error = %v, want inbound TransferError", err)
	}
	if !errors.Is(err, usbserial.ErrTransferFailed) {
		t.Errorf("error = %v, want ErrTransferFailed", err)
	}

	conn.Feed([]byte("still alive"))
	if data := recv(t, got); string(data) != "still alive" {
		t.Errorf("chunk = %q, want %q", data, "still alive")
	}
	if stats := dev.Stats(); stats.ReadFailures != 1 || stats.WriteFailures != 0 {
		t.Errorf("ReadFailures/WriteFailures = %d/%d, want 1/0", stats.ReadFailures, stats.WriteFailures)
	}
}

func TestDecodeFailureDropsChunk(t *testing.T) {
	conn := loopback.New()
	errs := make(chan error, 4)
	dev := openDevice(t, conn, &usbserial.FTDIDriver{}, usbserial.WithErrorHandler(func(err error) { errs <- err }))

	got := make(chan []byte, 4)
	dev.Read(collect(got))

	conn.Feed([]byte{0x01})
	if err := recv(t, errs); !errors.Is(err, usbserial.ErrDecodeInvariant) {
		t.Errorf("error = %v, want ErrDecodeInvariant", err)
	}

	conn.Feed(loopback.FrameFTDI([]byte("next"), [2]byte{0x01, 0x60}))
	if data := recv(t, got); string(data) != "next" {
		t.Errorf("chunk = %q, want %q", data, "next")
	}
	if n := dev.Stats().DecodeFailures; n != 1 {
		t.Errorf("DecodeFailures = %d, want 1", n)
	}
}

func TestWriteLatestWins(t *testing.T) {
	release := make(chan struct{})
	conn := loopback.New(loopback.WithOutHook(func(p []byte) (int, error) {
		if string(p) == "1" {
			<-release
		}
		return len(p), nil
	}))
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	dev.Write([]byte("1"))
	if p := recv(t, conn.Written()); string(p) != "1" {
		t.Fatalf("first payload = %q, want %q", p, "1")
	}

	// The pump is busy with "1"; only the newest of these survives.
	dev.Write([]byte("2"))
	dev.Write([]byte("3"))
	dev.Write([]byte("4"))
	close(release)

	if p := recv(t, conn.Written()); string(p) != "4" {
		t.Errorf("second payload = %q, want %q", p, "4")
	}
	expectNothing(t, conn.Written(), 30*time.Millisecond)

	if n := dev.Stats().SupersededWrites; n != 2 {
		t.Errorf("SupersededWrites = %d, want 2", n)
	}
}

func TestWriteQueuedKeepsOrder(t *testing.T) {
	release := make(chan struct{})
	conn := loopback.New(loopback.WithOutHook(func(p []byte) (int, error) {
		<-release
		return len(p), nil
	}))
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithWriteQueueDepth(8))

	want := []string{"a", "b", "c", "d", "e"}
	for _, s := range want {
		dev.Write([]byte(s))
	}
	close(release)

	for _, w := range want {
		if p := recv(t, conn.Written()); string(p) != w {
			t.Errorf("payload = %q, want %q", p, w)
		}
	}
	if n := dev.Stats().SupersededWrites; n != 0 {
		t.Errorf("SupersededWrites = %d, want 0", n)
	}
}

func TestWritePayloadsNeverInterleave(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithWriteQueueDepth(64))

	payloads := [][]byte{
		bytes.Repeat([]byte{'A'}, 100),
		bytes.Repeat([]byte{'B'}, 100),
		bytes.Repeat([]byte{'C'}, 100),
	}
	done := make(chan struct{})
	for _, p := range payloads {
		go func(p []byte) {
			defer func() { done <- struct{}{} }()
			dev.Write(p)
		}(p)
	}
	for range payloads {
		recv(t, done)
	}

	for range payloads {
		p := recv(t, conn.Written())
		if !bytes.Equal(p, bytes.Repeat(p[:1], 100)) {
			t.Errorf("payload mixes writes: %q", p)
		}
	}
}

func TestWriteFailureReported(t *testing.T) {
	stall := errors.New("endpoint stalled")
	conn := loopback.New(loopback.WithOutHook(func([]byte) (int, error) { return 0, stall }))
	errs := make(chan error, 4)
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithErrorHandler(func(err error) { errs <- err }))

	dev.Write([]byte("data"))

	err := recv(t, errs)
	var te *usbserial.TransferError
	if !errors.As(err, &te) || te.Op != "out" {
		t.Fatalf("error = %v, want outbound TransferError", err)
	}
	if !errors.Is(err, stall) || !errors.Is(err, usbserial.ErrTransferFailed) {
		t.Errorf("error = %v, want both stall and ErrTransferFailed", err)
	}

	// the pump keeps going after a failure
	dev.Write([]byte("more"))
	recv(t, errs)
	if stats := dev.Stats(); stats.WriteFailures != 2 || stats.ReadFailures != 0 {
		t.Errorf("WriteFailures/ReadFailures = %d/%d, want 2/0", stats.WriteFailures, stats.ReadFailures)
	}
}

func TestShortWriteReported(t *testing.T) {
	conn := loopback.New(loopback.WithOutHook(func(p []byte) (int, error) { return len(p) - 1, nil }))
	errs := make(chan error, 4)
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithErrorHandler(func(err error) { errs <- err }))

	dev.Write([]byte("abcd"))
	if err := recv(t, errs); !errors.Is(err, usbserial.ErrTransferFailed) {
		t.Errorf("error = %v, want ErrTransferFailed", err)
	}
	if n := dev.Stats().BytesOut; n != 3 {
		t.Errorf("BytesOut = %d, want 3", n)
	}
}

func TestKillRestartReadPump(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	got := make(chan []byte, 4)
	dev.Read(collect(got))

	dev.KillReadPump()
	dev.KillReadPump()
	if dev.ReadPumpState() != usbserial.PumpStopped {
		t.Fatalf("ReadPumpState() = %v, want stopped", dev.ReadPumpState())
	}

	conn.Feed([]byte("while stopped"))
	expectNothing(t, got, 30*time.Millisecond)

	if err := dev.RestartReadPump(); err != nil {
		t.Fatalf("RestartReadPump() error = %v", err)
	}
	if err := dev.RestartReadPump(); err != nil {
		t.Fatalf("second RestartReadPump() error = %v", err)
	}
	if dev.ReadPumpState() != usbserial.PumpRunning {
		t.Fatalf("ReadPumpState() = %v, want running", dev.ReadPumpState())
	}

	if data := recv(t, got); string(data) != "while stopped" {
		t.Errorf("chunk = %q, want %q", data, "while stopped")
	}
	expectNothing(t, got, 30*time.Millisecond)

	// Exactly one outstanding request after the restart.
	if n := conn.Pending(); n != 1 {
		t.Errorf("Pending() = %d, want 1", n)
	}
}

func TestKillRestartWritePump(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	dev.KillWritePump()
	dev.KillWritePump()
	if dev.WritePumpState() != usbserial.PumpStopped {
		t.Fatalf("WritePumpState() = %v, want stopped", dev.WritePumpState())
	}

	dev.Write([]byte("held"))
	expectNothing(t, conn.Written(), 30*time.Millisecond)

	dev.RestartWritePump()
	dev.RestartWritePump()
	if p := recv(t, conn.Written()); string(p) != "held" {
		t.Errorf("payload = %q, want %q", p, "held")
	}
	expectNothing(t, conn.Written(), 30*time.Millisecond)
}

func TestLineSettings(t *testing.T) {
	conn := loopback.New()
	dev, err := usbserial.New(conn, &usbserial.GenericDriver{}, quiet())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := dev.SetBaudRate(9600); err != nil {
		t.Fatalf("SetBaudRate() before Open error = %v", err)
	}
	if _, n := conn.Line(); n != 0 {
		t.Errorf("SetLine called %d times before Open, want 0", n)
	}

	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	line, n := conn.Line()
	if n != 1 || line.BaudRate != 9600 {
		t.Errorf("after Open line = %+v (%d calls), want baud 9600 once", line, n)
	}

	if err := dev.SetParity(usbserial.ParityEven); err != nil {
		t.Errorf("SetParity() error = %v", err)
	}
	if err := dev.SetDataBits(7); err != nil {
		t.Errorf("SetDataBits() error = %v", err)
	}
	if err := dev.SetStopBits(2); err != nil {
		t.Errorf("SetStopBits() error = %v", err)
	}
	if err := dev.SetFlowControl(usbserial.FlowControlRTSCTS); err != nil {
		t.Errorf("SetFlowControl() error = %v", err)
	}
	line, n = conn.Line()
	want := usbserial.LineSettings{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: usbserial.ParityEven, FlowControl: usbserial.FlowControlRTSCTS}
	if line != want || n != 5 {
		t.Errorf("line = %+v (%d calls), want %+v (5 calls)", line, n, want)
	}

	if err := dev.SetBaudRate(1); !errors.Is(err, usbserial.ErrInvalidBaudRate) {
		t.Errorf("SetBaudRate(1) = %v, want ErrInvalidBaudRate", err)
	}
	if err := dev.SetParity(usbserial.Parity(99)); !errors.Is(err, usbserial.ErrInvalidConfig) {
		t.Errorf("SetParity(99) = %v, want ErrInvalidConfig", err)
	}
	if dev.Line() != want {
		t.Errorf("Line() = %+v after rejected settings, want %+v", dev.Line(), want)
	}

	dev.Close()
	if err := dev.SetBaudRate(19200); !errors.Is(err, usbserial.ErrDeviceClosed) {
		t.Errorf("SetBaudRate after Close = %v, want ErrDeviceClosed", err)
	}
}

func TestCloseFromReadCallback(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	closed := make(chan error, 1)
	dev.Read(func(data []byte) {
		if string(data) == "bye" {
			closed <- dev.Close()
		}
	})
	conn.Feed([]byte("bye"))

	if err := recv(t, closed); err != nil {
		t.Fatalf("Close() from the read callback = %v, want nil", err)
	}
	if !conn.Closed() {
		t.Error("connection not closed")
	}
	deadline := time.Now().Add(waitTimeout)
	for dev.ReadPumpState() != usbserial.PumpStopped {
		if time.Now().After(deadline) {
			t.Fatal("read pump still running after the callback returned")
		}
		time.Sleep(time.Millisecond)
	}
	if err := dev.Write([]byte("x")); !errors.Is(err, usbserial.ErrDeviceClosed) {
		t.Errorf("Write() after Close = %v, want ErrDeviceClosed", err)
	}
}

func TestKillReadPumpFromCallback(t *testing.T) {
	conn := loopback.New()
	dev := openDevice(t, conn, &usbserial.GenericDriver{})

	got := make(chan []byte, 4)
	restartErr := make(chan error, 1)
	dev.Read(func(data []byte) {
		if string(data) == "stop" {
			dev.KillReadPump()
			restartErr <- dev.RestartReadPump()
			return
		}
		got <- data
	})
	conn.Feed([]byte("stop"))

	if err := recv(t, restartErr); !errors.Is(err, usbserial.ErrPumpBusy) {
		t.Fatalf("RestartReadPump() from the callback = %v, want ErrPumpBusy", err)
	}

	deadline := time.Now().Add(waitTimeout)
	for dev.ReadPumpState() != usbserial.PumpStopped {
		if time.Now().After(deadline) {
			t.Fatal("read pump still running after the callback returned")
		}
		time.Sleep(time.Millisecond)
	}

	if err := dev.RestartReadPump(); err != nil {
		t.Fatalf("RestartReadPump() error = %v", err)
	}
	if dev.ReadPumpState() != usbserial.PumpRunning {
		t.Errorf("ReadPumpState() = %v, want running", dev.ReadPumpState())
	}
	conn.Feed([]byte("again"))
	if data := recv(t, got); string(data) != "again" {
		t.Errorf("chunk = %q, want %q", data, "again")
	}
}

func TestDisconnectStopsReadPump(t *testing.T) {
	conn := loopback.New()
	errs := make(chan error, 4)
	dev := openDevice(t, conn, &usbserial.GenericDriver{}, usbserial.WithErrorHandler(func(err error) { errs <- err }))
	dev.Read(func([]byte) {})

	conn.Unplug()

	if err := recv(t, errs); !errors.Is(err, usbserial.ErrDisconnected) {
		t.Fatalf("error = %v, want ErrDisconnected", err)
	}
	deadline := time.Now().Add(waitTimeout)
	for dev.ReadPumpState() != usbserial.PumpStopped {
		if time.Now().After(deadline) {
			t.Fatal("read pump still running after disconnect")
		}
		time.Sleep(time.Millisecond)
	}
	expectNothing(t, errs, 50*time.Millisecond)
	if n := dev.Stats().ReadFailures; n != 1 {
		t.Errorf("ReadFailures = %d, want 1", n)
	}
}
