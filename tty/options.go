package tty

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/allbin/go-usbserial"
)

type config struct {
	pollInterval time.Duration
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{pollInterval: 100 * time.Millisecond}
}

// Option configures Open.
type Option func(*config) error

// WithPollInterval sets the read timeout used to notice Close while a read
// is outstanding.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("%w: poll interval must be positive", usbserial.ErrInvalidConfig)
		}
		c.pollInterval = d
		return nil
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
