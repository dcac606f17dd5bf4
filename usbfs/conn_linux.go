//go:build linux

// Package usbfs talks to a USB device through Linux usbfs
// (/dev/bus/usb/BBB/DDD). Inbound requests are submitted as asynchronous
// URBs and reaped by a poll loop; outbound transfers use the synchronous
// bulk ioctl.
package usbfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/allbin/go-usbserial"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("usbfs connection closed")

type inflight struct {
	urb *urb
	ep  usbserial.Endpoint
	buf []byte
}

// Conn is a usbserial.Connection over one claimed usbfs interface.
type Conn struct {
	fd     int
	path   string
	config config
	log    *slog.Logger

	mu      sync.Mutex
	pending map[uintptr]*inflight

	completions chan usbserial.Completion
	done        chan struct{}
	gone        chan struct{}
	goneOnce    sync.Once
	reaper      sync.WaitGroup
	closed      atomic.Bool
}

var (
	_ usbserial.Connection     = (*Conn)(nil)
	_ usbserial.EndpointLister = (*Conn)(nil)
)

// Open opens the usbfs node at path, optionally detaches the kernel driver
// and claims the configured interface.
func Open(path string, opts ...Option) (*Conn, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	c := &Conn{
		fd:          fd,
		path:        path,
		config:      cfg,
		log:         usbserial.ComponentLogger(cfg.logger, usbserial.ComponentUSBFS).With("path", path),
		pending:     make(map[uintptr]*inflight),
		completions: make(chan usbserial.Completion, 16),
		done:        make(chan struct{}),
		gone:        make(chan struct{}),
	}

	if cfg.detach {
		if err := c.detachKernelDriver(); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	ifno := int(cfg.iface)
	if err := unix.IoctlSetPointerInt(fd, uint(ioctlClaimInterface), ifno); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to claim interface %d: %w", ifno, err)
	}

	c.reaper.Add(1)
	go c.reap()

	c.log.Debug("interface claimed", "interface", ifno)
	return c, nil
}

func (c *Conn) detachKernelDriver() error {
	req := usbIoctl{Ifno: int32(c.config.iface), Code: int32(ioctlDisconnect)}
	_, err := ioctl(c.fd, ioctlIoctl, unsafe.Pointer(&req))
	if err == nil || errors.Is(err, unix.ENODATA) {
		return nil
	}
	return fmt.Errorf("failed to detach kernel driver: %w", err)
}

// Endpoints implements usbserial.EndpointLister with the configured pair.
func (c *Conn) Endpoints() []usbserial.Endpoint {
	var eps []usbserial.Endpoint
	if c.config.in != (usbserial.Endpoint{}) {
		eps = append(eps, c.config.in)
	}
	if c.config.out != (usbserial.Endpoint{}) {
		eps = append(eps, c.config.out)
	}
	return eps
}

// QueueIn submits an asynchronous bulk URB that fills buf.
func (c *Conn) QueueIn(ep usbserial.Endpoint, buf []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.isGone() {
		return c.disconnected()
	}
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty inbound buffer", usbserial.ErrInvalidConfig)
	}

	u := &urb{
		Type:         urbTypeBulk,
		Endpoint:     ep.Address,
		Buffer:       unsafe.Pointer(&buf[0]),
		BufferLength: int32(len(buf)),
	}
	key := uintptr(unsafe.Pointer(u))

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := ioctl(c.fd, ioctlSubmitURB, unsafe.Pointer(u)); err != nil {
		return fmt.Errorf("submit urb on %s: %w", ep, err)
	}
	c.pending[key] = &inflight{urb: u, ep: ep, buf: buf}
	return nil
}

// WaitIn returns the next reaped inbound completion.
func (c *Conn) WaitIn(ctx context.Context) (usbserial.Completion, error) {
	select {
	case comp := <-c.completions:
		return comp, nil
	case <-ctx.Done():
		return usbserial.Completion{}, ctx.Err()
	case <-c.done:
		return usbserial.Completion{}, ErrClosed
	case <-c.gone:
		return usbserial.Completion{}, c.disconnected()
	}
}

// markGone records that the node stopped answering; every later WaitIn
// and QueueIn fails with usbserial.ErrDisconnected.
func (c *Conn) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

func (c *Conn) isGone() bool {
	select {
	case <-c.gone:
		return true
	default:
		return false
	}
}

func (c *Conn) disconnected() error {
	return fmt.Errorf("%s: %w", c.path, usbserial.ErrDisconnected)
}

// reap polls the usbfs node and reaps completed URBs until Close.
func (c *Conn) reap() {
	defer c.reaper.Done()

	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
	timeout := int(c.config.pollInterval / time.Millisecond)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			c.log.Error("poll failed", "error", err)
			c.markGone()
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			c.log.Warn("device disconnected")
			c.markGone()
			return
		}
		c.reapReady()
	}
}

// reapReady drains every completed URB without blocking.
func (c *Conn) reapReady() {
	for {
		var ptr uintptr
		_, err := ioctl(c.fd, ioctlReapURBNDelay, unsafe.Pointer(&ptr))
		if err != nil {
			if !errors.Is(err, unix.EAGAIN) {
				c.log.Debug("reap failed", "error", err)
			}
			return
		}

		c.mu.Lock()
		req, ok := c.pending[ptr]
		delete(c.pending, ptr)
		c.mu.Unlock()
		if !ok {
			continue
		}

		comp := usbserial.Completion{Endpoint: req.ep, N: int(req.urb.ActualLength)}
		if req.urb.Status != 0 {
			comp.Err = unix.Errno(-req.urb.Status)
		}
		runtime.KeepAlive(req.buf)

		select {
		case c.completions <- comp:
		case <-c.done:
			return
		}
	}
}

// BulkOut performs a synchronous bulk transfer on ep.
func (c *Conn) BulkOut(ep usbserial.Endpoint, data []byte, timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	bt := bulkTransfer{
		Endpoint: uint32(ep.Address),
		Length:   uint32(len(data)),
		Timeout:  uint32(timeout / time.Millisecond),
		Data:     unsafe.Pointer(&data[0]),
	}
	n, err := ioctl(c.fd, ioctlBulk, unsafe.Pointer(&bt))
	runtime.KeepAlive(data)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close discards outstanding URBs, stops the reaper, releases the
// interface and closes the node.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	c.mu.Lock()
	for _, req := range c.pending {
		ioctl(c.fd, ioctlDiscardURB, unsafe.Pointer(req.urb))
	}
	c.mu.Unlock()

	close(c.done)
	c.reaper.Wait()

	// Discarded URBs still have to be reaped before their memory is released.
	deadline := time.Now().Add(c.config.pollInterval)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		left := len(c.pending)
		c.mu.Unlock()
		if left == 0 {
			break
		}
		c.drainDiscarded()
		time.Sleep(time.Millisecond)
	}

	ifno := int(c.config.iface)
	if err := unix.IoctlSetPointerInt(c.fd, uint(ioctlReleaseInterface), ifno); err != nil {
		c.log.Debug("release interface failed", "error", err)
	}
	return unix.Close(c.fd)
}

func (c *Conn) drainDiscarded() {
	for {
		var ptr uintptr
		if _, err := ioctl(c.fd, ioctlReapURBNDelay, unsafe.Pointer(&ptr)); err != nil {
			return
		}
		c.mu.Lock()
		delete(c.pending, ptr)
		c.mu.Unlock()
	}
}
