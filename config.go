package usbserial

import (
	"log/slog"
	"time"
)

const (
	// DefaultReadBufferSize is the capacity of the inbound scratch buffer.
	DefaultReadBufferSize = 16 * 1024
	// DefaultWriteTimeout bounds every outbound bulk transfer.
	DefaultWriteTimeout = 5000 * time.Millisecond
	// DefaultWriteQueueDepth is used by WriteModeQueued.
	DefaultWriteQueueDepth = 16

	minBaudRate = 50
	maxBaudRate = 12000000
)

// WriteMode controls what happens to a pending payload when a new write
// arrives before the write pump has picked it up.
type WriteMode int

const (
	WriteModeLatest WriteMode = iota // Default: newest payload replaces an un-dequeued one
	WriteModeQueued                  // Bounded FIFO, oldest payload dropped when full
)

func (m WriteMode) String() string {
	switch m {
	case WriteModeLatest:
		return "latest"
	case WriteModeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// FlowControl represents the flow control mode. The core only passes it
// through to the connection.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
	FlowControlDTRDSR
	FlowControlXONXOFF
)

func (fc FlowControl) String() string {
	switch fc {
	case FlowControlNone:
		return "none"
	case FlowControlRTSCTS:
		return "rtscts"
	case FlowControlDTRDSR:
		return "dtrdsr"
	case FlowControlXONXOFF:
		return "xonxoff"
	default:
		return "unknown"
	}
}

// LineSettings is the serial line configuration handed to drivers.
type LineSettings struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
}

func (l LineSettings) validate() error {
	if err := validateBaudRate(l.BaudRate); err != nil {
		return err
	}
	if err := validateDataBits(l.DataBits); err != nil {
		return err
	}
	if err := validateStopBits(l.StopBits); err != nil {
		return err
	}
	if l.Parity < ParityNone || l.Parity > ParitySpace {
		return ErrInvalidConfig
	}
	if l.FlowControl < FlowControlNone || l.FlowControl > FlowControlXONXOFF {
		return ErrInvalidConfig
	}
	return nil
}

// Config holds the configuration for a USB serial device
type Config struct {
	Line            LineSettings
	ReadBufferSize  int           // capacity of the inbound scratch buffer
	WriteTimeout    time.Duration // bound for every bulk OUT transfer
	WriteMode       WriteMode
	WriteQueueDepth int // only used by WriteModeQueued
	Logger          *slog.Logger
	ErrorHandler    func(error) // optional, called from the pump goroutines
}

// Option is a functional option for configuring a device
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Line: LineSettings{
			BaudRate:    115200,
			DataBits:    8,
			StopBits:    1,
			Parity:      ParityNone,
			FlowControl: FlowControlNone,
		},
		ReadBufferSize:  DefaultReadBufferSize,
		WriteTimeout:    DefaultWriteTimeout,
		WriteMode:       WriteModeLatest,
		WriteQueueDepth: DefaultWriteQueueDepth,
	}
}

func validateBaudRate(rate int) error {
	if rate < minBaudRate || rate > maxBaudRate {
		return ErrInvalidBaudRate
	}
	return nil
}

func validateDataBits(bits int) error {
	if bits < 5 || bits > 8 {
		return ErrInvalidConfig
	}
	return nil
}

func validateStopBits(bits int) error {
	if bits != 1 && bits != 2 {
		return ErrInvalidConfig
	}
	return nil
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if err := validateBaudRate(rate); err != nil {
			return err
		}
		c.Line.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if err := validateDataBits(bits); err != nil {
			return err
		}
		c.Line.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if err := validateStopBits(bits); err != nil {
			return err
		}
		c.Line.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParitySpace {
			return ErrInvalidConfig
		}
		c.Line.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if fc < FlowControlNone || fc > FlowControlXONXOFF {
			return ErrInvalidConfig
		}
		c.Line.FlowControl = fc
		return nil
	}
}

// WithReadBufferSize sets the capacity of the inbound scratch buffer. The
// size must be a whole number of FTDI packets, so that every packet of a
// transfer starts with its status header.
func WithReadBufferSize(size int) Option {
	return func(c *Config) error {
		if size < FTDIPacketSize || size%FTDIPacketSize != 0 {
			return ErrInvalidConfig
		}
		c.ReadBufferSize = size
		return nil
	}
}

// WithWriteTimeout sets the timeout of each bulk OUT transfer
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.WriteTimeout = timeout
		return nil
	}
}

// WithWriteMode sets the pending-write policy
func WithWriteMode(mode WriteMode) Option {
	return func(c *Config) error {
		if mode != WriteModeLatest && mode != WriteModeQueued {
			return ErrInvalidConfig
		}
		c.WriteMode = mode
		return nil
	}
}

// WithWriteQueueDepth enables WriteModeQueued with the given depth
func WithWriteQueueDepth(depth int) Option {
	return func(c *Config) error {
		if depth < 1 {
			return ErrInvalidConfig
		}
		c.WriteMode = WriteModeQueued
		c.WriteQueueDepth = depth
		return nil
	}
}

// WithLogger sets the structured logger used by the pumps
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithErrorHandler registers a hook that receives transfer failures,
// decode invariant violations and deliveries without a callback. The
// default is silent continuation.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Config) error {
		c.ErrorHandler = fn
		return nil
	}
}
