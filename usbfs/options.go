package usbfs

import (
	"log/slog"
	"time"

	"github.com/allbin/go-usbserial"
)

type config struct {
	iface        uint32
	in, out      usbserial.Endpoint
	detach       bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		detach:       true,
		pollInterval: 100 * time.Millisecond,
	}
}

// Option is a functional option for Open.
type Option func(*config) error

// WithInterface selects the interface number to claim.
func WithInterface(n int) Option {
	return func(c *config) error {
		if n < 0 || n > 255 {
			return usbserial.ErrInvalidConfig
		}
		c.iface = uint32(n)
		return nil
	}
}

// WithEndpoints reports the bulk endpoint pair of the claimed interface.
// Without it drivers fall back to their family defaults.
func WithEndpoints(in, out usbserial.Endpoint) Option {
	return func(c *config) error {
		if !in.IsBulkIn() || !out.IsBulkOut() {
			return usbserial.ErrInvalidConfig
		}
		c.in, c.out = in, out
		return nil
	}
}

// WithKernelDriverDetach controls whether a bound kernel driver (ftdi_sio,
// cdc_acm) is detached before claiming. Enabled by default.
func WithKernelDriverDetach(detach bool) Option {
	return func(c *config) error {
		c.detach = detach
		return nil
	}
}

// WithPollInterval sets how often the reaper checks for shutdown.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return usbserial.ErrInvalidConfig
		}
		c.pollInterval = d
		return nil
	}
}

// WithLogger sets the logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
