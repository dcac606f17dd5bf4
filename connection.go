package usbserial

import (
	"context"
	"fmt"
	"time"
)

// TransferType is the USB transfer type of an endpoint.
type TransferType int

const (
	TransferControl TransferType = iota
	TransferIsochronous
	TransferBulk
	TransferInterrupt
)

func (t TransferType) String() string {
	switch t {
	case TransferControl:
		return "control"
	case TransferIsochronous:
		return "isochronous"
	case TransferBulk:
		return "bulk"
	case TransferInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Direction bit of an endpoint address.
const EndpointDirIn = 0x80

// Endpoint describes one USB endpoint used by the pumps.
type Endpoint struct {
	Address       uint8 // bEndpointAddress, bit 7 set for IN
	Type          TransferType
	MaxPacketSize int
}

// IsIn reports whether data flows device to host.
func (e Endpoint) IsIn() bool { return e.Address&EndpointDirIn != 0 }

// IsBulkIn reports whether e is a bulk IN endpoint.
func (e Endpoint) IsBulkIn() bool { return e.Type == TransferBulk && e.IsIn() }

// IsBulkOut reports whether e is a bulk OUT endpoint.
func (e Endpoint) IsBulkOut() bool { return e.Type == TransferBulk && !e.IsIn() }

func (e Endpoint) String() string {
	dir := "out"
	if e.IsIn() {
		dir = "in"
	}
	return fmt.Sprintf("%s-%s@0x%02x", e.Type, dir, e.Address)
}

// BulkIn returns a bulk IN endpoint descriptor for the endpoint number n.
func BulkIn(n uint8, maxPacket int) Endpoint {
	return Endpoint{Address: n | EndpointDirIn, Type: TransferBulk, MaxPacketSize: maxPacket}
}

// BulkOut returns a bulk OUT endpoint descriptor for the endpoint number n.
func BulkOut(n uint8, maxPacket int) Endpoint {
	return Endpoint{Address: n &^ EndpointDirIn, Type: TransferBulk, MaxPacketSize: maxPacket}
}

// Completion is the result of one queued inbound request.
type Completion struct {
	Endpoint Endpoint
	N        int   // bytes written into the queued buffer
	Err      error // transfer status, nil on success
}

// Connection is the USB transport a Device drives. Implementations live
// outside the core: see the usbfs and tty packages.
type Connection interface {
	// QueueIn submits an inbound request that fills buf. The buffer is
	// owned by the connection until the matching Completion is returned
	// from WaitIn.
	QueueIn(ep Endpoint, buf []byte) error

	// WaitIn blocks until a queued request completes or ctx is done.
	WaitIn(ctx context.Context) (Completion, error)

	// BulkOut performs a blocking outbound transfer bounded by timeout.
	BulkOut(ep Endpoint, data []byte, timeout time.Duration) (int, error)

	// Close releases the underlying handle. Pending requests are abandoned.
	Close() error
}

// LineConfigurer is implemented by connections whose transport can apply
// line settings itself (kernel tty drivers, for example).
type LineConfigurer interface {
	SetLine(cfg LineSettings) error
}

// EndpointLister is implemented by connections that can report the bulk
// endpoints of the claimed interface.
type EndpointLister interface {
	Endpoints() []Endpoint
}
