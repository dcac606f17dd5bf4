package usbserial

// DeviceFormat identifies how inbound bulk data is framed by a chip family.
// It is fixed for the lifetime of a device.
type DeviceFormat int

const (
	FormatRaw  DeviceFormat = iota // payload only, delivered unchanged
	FormatFTDI                     // 2 status bytes at the start of every 64-byte packet
)

func (f DeviceFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatFTDI:
		return "ftdi"
	default:
		return "unknown"
	}
}

// ParseDeviceFormat maps a format name back to its tag.
func ParseDeviceFormat(name string) (DeviceFormat, error) {
	switch name {
	case "raw", "":
		return FormatRaw, nil
	case "ftdi":
		return FormatFTDI, nil
	default:
		return FormatRaw, ErrInvalidConfig
	}
}
