//go:build !linux

package usbfs

import (
	"context"
	"time"

	"github.com/allbin/go-usbserial"
)

// Conn is unavailable outside Linux.
type Conn struct{}

// Open always fails: usbfs exists only on Linux.
func Open(path string, opts ...Option) (*Conn, error) {
	return nil, usbserial.ErrNotSupported
}

func (c *Conn) QueueIn(usbserial.Endpoint, []byte) error { return usbserial.ErrNotSupported }

func (c *Conn) WaitIn(context.Context) (usbserial.Completion, error) {
	return usbserial.Completion{}, usbserial.ErrNotSupported
}

func (c *Conn) BulkOut(usbserial.Endpoint, []byte, time.Duration) (int, error) {
	return 0, usbserial.ErrNotSupported
}

func (c *Conn) Endpoints() []usbserial.Endpoint { return nil }

func (c *Conn) Close() error { return usbserial.ErrNotSupported }
