// Package loopback provides an in-memory usbserial.Connection. Tests feed
// inbound chunks and inspect outbound payloads; with echo enabled every
// outbound payload comes back as inbound data, optionally FTDI framed.
package loopback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/allbin/go-usbserial"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("loopback connection closed")

type request struct {
	ep  usbserial.Endpoint
	buf []byte
}

// Conn is an in-memory connection with one bulk IN and one bulk OUT
// endpoint.
type Conn struct {
	in, out usbserial.Endpoint

	mu       sync.Mutex
	queued   []request
	backlog  [][]byte
	writes   [][]byte
	line     usbserial.LineSettings
	lineSets int
	queues   int
	closed   bool

	completions chan usbserial.Completion
	written     chan []byte
	done        chan struct{}
	gone        chan struct{}
	unplug      sync.Once

	echo     bool
	echoFTDI bool
	outHook  func(data []byte) (int, error)
	outDelay time.Duration
}

// Option configures a Conn.
type Option func(*Conn)

// WithEcho feeds every outbound payload back as an inbound chunk. When
// ftdi is true the payload is framed into 64-byte packets first.
func WithEcho(ftdi bool) Option {
	return func(c *Conn) {
		c.echo = true
		c.echoFTDI = ftdi
	}
}

// WithOutHook replaces the result of every BulkOut call.
func WithOutHook(fn func(data []byte) (int, error)) Option {
	return func(c *Conn) { c.outHook = fn }
}

// WithOutDelay makes every BulkOut take d.
func WithOutDelay(d time.Duration) Option {
	return func(c *Conn) { c.outDelay = d }
}

// WithEndpoints overrides the default endpoint pair 0x81/0x02.
func WithEndpoints(in, out usbserial.Endpoint) Option {
	return func(c *Conn) {
		c.in = in
		c.out = out
	}
}

// New returns an open loopback connection.
func New(opts ...Option) *Conn {
	c := &Conn{
		in:          usbserial.BulkIn(1, usbserial.FTDIPacketSize),
		out:         usbserial.BulkOut(2, usbserial.FTDIPacketSize),
		completions: make(chan usbserial.Completion, 64),
		written:     make(chan []byte, 1024),
		done:        make(chan struct{}),
		gone:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints implements usbserial.EndpointLister.
func (c *Conn) Endpoints() []usbserial.Endpoint {
	return []usbserial.Endpoint{c.in, c.out}
}

// QueueIn implements usbserial.Connection. A chunk already waiting in the
// backlog completes the request immediately.
func (c *Conn) QueueIn(ep usbserial.Endpoint, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.queues++
	if len(c.backlog) > 0 {
		chunk := c.backlog[0]
		c.backlog = c.backlog[1:]
		c.complete(request{ep: ep, buf: buf}, chunk)
		return nil
	}
	c.queued = append(c.queued, request{ep: ep, buf: buf})
	return nil
}

// complete copies chunk into the request buffer and posts the completion.
// Called with mu held.
func (c *Conn) complete(r request, chunk []byte) {
	n := copy(r.buf, chunk)
	c.completions <- usbserial.Completion{Endpoint: r.ep, N: n}
}

// Feed delivers one inbound chunk, as if one bulk IN transfer completed.
func (c *Conn) Feed(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(c.queued) == 0 {
		c.backlog = append(c.backlog, append([]byte(nil), chunk...))
		return nil
	}
	r := c.queued[0]
	c.queued = c.queued[1:]
	c.complete(r, chunk)
	return nil
}

// Inject posts a completion without a matching request, for example one
// on a different endpoint.
func (c *Conn) Inject(comp usbserial.Completion) {
	c.completions <- comp
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
	case <-c.gone:
		return usbserial.Completion{}, usbserial.ErrDisconnected
	}
}

// Unplug makes every later WaitIn fail with usbserial.ErrDisconnected, the
// way a removed device behaves.
func (c *Conn) Unplug() {
	c.unplug.Do(func() { close(c.gone) })
}

// BulkOut implements usbserial.Connection.
func (c *Conn) BulkOut(ep usbserial.Endpoint, data []byte, timeout time.Duration) (int, error) {
	if c.outDelay > 0 {
		select {
		case <-time.After(min(c.outDelay, timeout)):
		case <-c.done:
			return 0, ErrClosed
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	p := append([]byte(nil), data...)
	c.writes = append(c.writes, p)
	c.mu.Unlock()

	select {
	case c.written <- p:
	default:
	}

	if c.outHook != nil {
		return c.outHook(p)
	}
	if c.echo {
		chunk := p
		if c.echoFTDI {
			chunk = FrameFTDI(p, [2]byte{0x01, 0x60})
		}
		if err := c.Feed(chunk); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// SetLine implements usbserial.LineConfigurer.
func (c *Conn) SetLine(line usbserial.LineSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.line = line
	c.lineSets++
	return nil
}

// Close implements usbserial.Connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	close(c.done)
	return nil
}

// Written receives a copy of every outbound payload.
func (c *Conn) Written() <-chan []byte {
	return c.written
}

// Writes returns every outbound payload seen so far.
func (c *Conn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// Pending returns the number of queued inbound requests.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}

// QueueCount returns how many times QueueIn was called.
func (c *Conn) QueueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queues
}

// Line returns the last applied line settings and how often SetLine ran.
func (c *Conn) Line() (usbserial.LineSettings, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line, c.lineSets
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FrameFTDI splits payload into 62-byte slices, each prefixed with the
// two status bytes, the way an FTDI chip fills its bulk IN packets.
func FrameFTDI(payload []byte, status [2]byte) []byte {
	per := usbserial.FTDIPacketSize - usbserial.FTDIStatusLen
	out := make([]byte, 0, len(payload)+usbserial.FTDIStatusLen*(len(payload)/per+1))
	for off := 0; off < len(payload) || off == 0; off += per {
		end := min(off+per, len(payload))
		out = append(out, status[:]...)
		out = append(out, payload[off:end]...)
		if end == len(payload) {
			break
		}
	}
	return out
}
