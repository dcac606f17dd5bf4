package usbserial

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Line.BaudRate != 115200 {
		t.Errorf("Expected BaudRate 115200, got %d", config.Line.BaudRate)
	}

	if config.Line.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.Line.DataBits)
	}

	if config.Line.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", config.Line.StopBits)
	}

	if config.Line.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Line.Parity)
	}

	if config.Line.FlowControl != FlowControlNone {
		t.Errorf("Expected FlowControl None, got %v", config.Line.FlowControl)
	}

	if config.WriteTimeout != 5000*time.Millisecond {
		t.Errorf("Expected WriteTimeout 5000ms, got %v", config.WriteTimeout)
	}

	if config.WriteMode != WriteModeLatest {
		t.Errorf("Expected WriteMode latest, got %v", config.WriteMode)
	}

	if config.ReadBufferSize != DefaultReadBufferSize {
		t.Errorf("Expected ReadBufferSize %d, got %d", DefaultReadBufferSize, config.ReadBufferSize)
	}
}

func TestFunctionalOptions(t *testing.T) {
	config := DefaultConfig()

	// Test WithBaudRate
	err := WithBaudRate(9600)(&config)
	if err != nil {
		t.Errorf("WithBaudRate failed: %v", err)
	}
	if config.Line.BaudRate != 9600 {
		t.Errorf("Expected BaudRate 9600, got %d", config.Line.BaudRate)
	}

	// Test WithDataBits
	err = WithDataBits(7)(&config)
	if err != nil {
		t.Errorf("WithDataBits failed: %v", err)
	}
	if config.Line.DataBits != 7 {
		t.Errorf("Expected DataBits 7, got %d", config.Line.DataBits)
	}

	// Test WithStopBits
	err = WithStopBits(2)(&config)
	if err != nil {
		t.Errorf("WithStopBits failed: %v", err)
	}
	if config.Line.StopBits != 2 {
		t.Errorf("Expected StopBits 2, got %d", config.Line.StopBits)
	}

	// Test WithParity
	err = WithParity(ParityEven)(&config)
	if err != nil {
		t.Errorf("WithParity failed: %v", err)
	}
	if config.Line.Parity != ParityEven {
		t.Errorf("Expected Parity Even, got %v", config.Line.Parity)
	}

	// Test WithFlowControl
	err = WithFlowControl(FlowControlRTSCTS)(&config)
	if err != nil {
		t.Errorf("WithFlowControl failed: %v", err)
	}
	if config.Line.FlowControl != FlowControlRTSCTS {
		t.Errorf("Expected FlowControl RTSCTS, got %v", config.Line.FlowControl)
	}

	// Test WithWriteQueueDepth switches to queued mode
	err = WithWriteQueueDepth(4)(&config)
	if err != nil {
		t.Errorf("WithWriteQueueDepth failed: %v", err)
	}
	if config.WriteMode != WriteModeQueued || config.WriteQueueDepth != 4 {
		t.Errorf("Expected queued mode with depth 4, got %v/%d", config.WriteMode, config.WriteQueueDepth)
	}

	// Test WithReadBufferSize accepts whole packets
	err = WithReadBufferSize(2 * FTDIPacketSize)(&config)
	if err != nil {
		t.Errorf("WithReadBufferSize failed: %v", err)
	}
	if config.ReadBufferSize != 128 {
		t.Errorf("Expected ReadBufferSize 128, got %d", config.ReadBufferSize)
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr error
	}{
		{"baud rate too low", WithBaudRate(10), ErrInvalidBaudRate},
		{"baud rate too high", WithBaudRate(20000000), ErrInvalidBaudRate},
		{"9 data bits", WithDataBits(9), ErrInvalidConfig},
		{"4 data bits", WithDataBits(4), ErrInvalidConfig},
		{"3 stop bits", WithStopBits(3), ErrInvalidConfig},
		{"unknown parity", WithParity(Parity(9)), ErrInvalidConfig},
		{"unknown flow control", WithFlowControl(FlowControl(9)), ErrInvalidConfig},
		{"read buffer below one packet", WithReadBufferSize(63), ErrInvalidConfig},
		{"read buffer not a packet multiple", WithReadBufferSize(100), ErrInvalidConfig},
		{"zero write timeout", WithWriteTimeout(0), ErrInvalidConfig},
		{"unknown write mode", WithWriteMode(WriteMode(7)), ErrInvalidConfig},
		{"zero queue depth", WithWriteQueueDepth(0), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			if err := tt.opt(&config); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLineSettingsValidate(t *testing.T) {
	line := DefaultConfig().Line
	if err := line.validate(); err != nil {
		t.Errorf("default line settings invalid: %v", err)
	}

	line.BaudRate = 0
	if err := line.validate(); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("validate() = %v, want ErrInvalidBaudRate", err)
	}
}

func TestStringers(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{ParityNone.String(), "N"},
		{ParityOdd.String(), "O"},
		{ParityEven.String(), "E"},
		{ParityMark.String(), "M"},
		{ParitySpace.String(), "S"},
		{FlowControlXONXOFF.String(), "xonxoff"},
		{WriteModeQueued.String(), "queued"},
		{PumpRunning.String(), "running"},
		{PumpStopped.String(), "stopped"},
		{FormatFTDI.String(), "ftdi"},
		{FormatRaw.String(), "raw"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
