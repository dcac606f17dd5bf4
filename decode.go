package usbserial

import "fmt"

const (
	// FTDIPacketSize is the bulk-IN max packet size of full-speed FTDI chips.
	FTDIPacketSize = 64
	// FTDIStatusLen is the number of modem/line status bytes at the start
	// of every FTDI packet.
	FTDIStatusLen = 2
)

// Decode returns the application payload carried by one raw inbound chunk.
// For FormatRaw the chunk is returned unchanged. For FormatFTDI the two
// status bytes leading every 64-byte packet are removed.
func Decode(chunk []byte, format DeviceFormat) ([]byte, error) {
	if format == FormatRaw {
		return chunk, nil
	}
	return DecodeInto(nil, chunk, format)
}

// DecodeInto appends the payload of chunk to dst and returns the extended
// slice. For FormatRaw the chunk is appended as is.
func DecodeInto(dst, chunk []byte, format DeviceFormat) ([]byte, error) {
	switch format {
	case FormatRaw:
		return append(dst, chunk...), nil
	case FormatFTDI:
		return decodeFTDI(dst, chunk)
	default:
		return dst, fmt.Errorf("%w: format %d", ErrInvalidConfig, format)
	}
}

// PacketCount returns the number of FTDI packets in a chunk of length n.
// An exact multiple of the packet size is n/64 packets, never a trailing
// empty one.
func PacketCount(n int) int {
	return (n + FTDIPacketSize - 1) / FTDIPacketSize
}

// PayloadLen returns the decoded length of an n byte chunk.
func PayloadLen(n int, format DeviceFormat) int {
	if format == FormatRaw {
		return n
	}
	return n - FTDIStatusLen*PacketCount(n)
}

func decodeFTDI(dst, chunk []byte) ([]byte, error) {
	n := len(chunk)
	if n == 0 {
		return dst, nil
	}

	want := PayloadLen(n, FormatFTDI)
	if n <= FTDIPacketSize {
		if want < 0 {
			return dst, fmt.Errorf("%w: %d byte chunk is shorter than the status header", ErrDecodeInvariant, n)
		}
		return append(dst, chunk[FTDIStatusLen:]...), nil
	}

	start := len(dst)
	for off := 0; off < n; off += FTDIPacketSize {
		end := min(off+FTDIPacketSize, n)
		hdr := min(off+FTDIStatusLen, end)
		dst = append(dst, chunk[hdr:end]...)
	}

	if got := len(dst) - start; got != want {
		return dst[:start], fmt.Errorf("%w: %d byte chunk in %d packets decoded to %d bytes, want %d",
			ErrDecodeInvariant, n, PacketCount(n), got, want)
	}
	return dst, nil
}
