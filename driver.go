package usbserial

import (
	"fmt"
	"log/slog"
	"sort"
)

// Driver specializes a Device for one chip family. It owns endpoint
// selection, line configuration and the inbound framing tag; the pumps are
// shared by every family.
type Driver interface {
	Name() string
	Format() DeviceFormat
	// Setup picks the bulk IN and OUT endpoints used by the pumps.
	Setup(conn Connection) (in, out Endpoint, err error)
	// ApplyLine hands line settings to the connection.
	ApplyLine(conn Connection, line LineSettings) error
}

// GenericDriver serves chips that deliver unframed payloads (CDC-ACM,
// CP210x, CH34x). Zero-valued endpoints are discovered from the
// connection when it implements EndpointLister.
type GenericDriver struct {
	In, Out Endpoint
}

var _ Driver = (*GenericDriver)(nil)

func (d *GenericDriver) Name() string         { return "generic" }
func (d *GenericDriver) Format() DeviceFormat { return FormatRaw }

func (d *GenericDriver) Setup(conn Connection) (Endpoint, Endpoint, error) {
	return selectEndpoints(conn, d.In, d.Out, Endpoint{}, Endpoint{})
}

func (d *GenericDriver) ApplyLine(conn Connection, line LineSettings) error {
	return passLine(conn, line)
}

// FTDIDriver serves FTDI FT232/FT2232 style chips whose bulk IN data
// carries two status bytes per 64-byte packet.
type FTDIDriver struct {
	In, Out Endpoint
	Logger  *slog.Logger
}

var _ Driver = (*FTDIDriver)(nil)

// Interface A of single and multi port FTDI chips.
var (
	ftdiDefaultIn  = BulkIn(1, FTDIPacketSize)
	ftdiDefaultOut = BulkOut(2, FTDIPacketSize)
)

func (d *FTDIDriver) Name() string         { return "ftdi" }
func (d *FTDIDriver) Format() DeviceFormat { return FormatFTDI }

func (d *FTDIDriver) Setup(conn Connection) (Endpoint, Endpoint, error) {
	return selectEndpoints(conn, d.In, d.Out, ftdiDefaultIn, ftdiDefaultOut)
}

func (d *FTDIDriver) ApplyLine(conn Connection, line LineSettings) error {
	if _, ok := conn.(LineConfigurer); !ok {
		ComponentLogger(d.Logger, ComponentDevice).Debug("line settings kept, connection cannot apply them",
			"driver", d.Name(), "baud", line.BaudRate)
		return nil
	}
	return passLine(conn, line)
}

func passLine(conn Connection, line LineSettings) error {
	lc, ok := conn.(LineConfigurer)
	if !ok {
		return nil
	}
	if err := lc.SetLine(line); err != nil {
		return fmt.Errorf("apply line settings: %w", err)
	}
	return nil
}

// selectEndpoints keeps explicitly configured endpoints, fills the rest
// from the connection's endpoint list and finally from the family defaults.
func selectEndpoints(conn Connection, in, out, defIn, defOut Endpoint) (Endpoint, Endpoint, error) {
	if lister, ok := conn.(EndpointLister); ok {
		for _, ep := range lister.Endpoints() {
			if in == (Endpoint{}) && ep.IsBulkIn() {
				in = ep
			}
			if out == (Endpoint{}) && ep.IsBulkOut() {
				out = ep
			}
		}
	}
	if in == (Endpoint{}) {
		in = defIn
	}
	if out == (Endpoint{}) {
		out = defOut
	}
	if !in.IsBulkIn() {
		return in, out, fmt.Errorf("%w: no bulk IN endpoint", ErrNoEndpoint)
	}
	if !out.IsBulkOut() {
		return in, out, fmt.Errorf("%w: no bulk OUT endpoint", ErrNoEndpoint)
	}
	return in, out, nil
}

var drivers = map[string]func() Driver{
	"generic": func() Driver { return &GenericDriver{} },
	"ftdi":    func() Driver { return &FTDIDriver{} },
}

// LookupDriver returns a fresh driver registered under name.
func LookupDriver(name string) (Driver, error) {
	newDriver, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return newDriver(), nil
}

// DriverNames lists the registered driver names in sorted order.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
