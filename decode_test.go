package usbserial

import (
	"bytes"
	"errors"
	"testing"
)

// framed builds an FTDI chunk of n bytes where every packet starts with the
// status bytes 0x01 0x60 and payload bytes count up from 0.
func framed(n int) (chunk, payload []byte) {
	var b byte
	for i := range n {
		if i%FTDIPacketSize < FTDIStatusLen {
			chunk = append(chunk, 0x01+byte(i%FTDIPacketSize)*0x5f)
			continue
		}
		chunk = append(chunk, b)
		payload = append(payload, b)
		b++
	}
	return chunk, payload
}

func TestDecodeRaw(t *testing.T) {
	for _, n := range []int{0, 1, 2, 63, 64, 65, 190, 512} {
		chunk := bytes.Repeat([]byte{0xA5}, n)
		got, err := Decode(chunk, FormatRaw)
		if err != nil {
			t.Errorf("Decode(%d bytes, raw) error = %v", n, err)
		}
		if !bytes.Equal(got, chunk) {
			t.Errorf("Decode(%d bytes, raw) = %d bytes, want identity", n, len(got))
		}
	}
}

func TestDecodeFTDI(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantLen int
	}{
		{"empty chunk", 0, 0},
		{"status only", 2, 0},
		{"short packet", 10, 8},
		{"single full packet", 64, 62},
		{"two full packets", 128, 124},
		{"three full packets", 192, 186},
		{"two packets and a short tail", 190, 184},
		{"tail with one payload byte", 131, 125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, want := framed(tt.n)
			got, err := Decode(chunk, FormatFTDI)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Decode() = %v, want %v", got, want)
			}
			if PayloadLen(tt.n, FormatFTDI) != tt.wantLen {
				t.Errorf("PayloadLen(%d) = %d, want %d", tt.n, PayloadLen(tt.n, FormatFTDI), tt.wantLen)
			}
		})
	}
}

func TestDecodeFTDIStatusBytesNeverLeak(t *testing.T) {
	chunk, _ := framed(190)
	got, err := Decode(chunk, FormatFTDI)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("byte %d = %#x, want %#x", i, b, byte(i))
		}
	}
}

func TestDecodeFTDIInvariantViolation(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"one byte chunk", 1},
		{"tail of one byte", 65},
		{"tail of one byte after two packets", 129},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, _ := framed(tt.n)
			dst := []byte("keep")
			got, err := DecodeInto(dst, chunk, FormatFTDI)
			if !errors.Is(err, ErrDecodeInvariant) {
				t.Fatalf("DecodeInto() error = %v, want ErrDecodeInvariant", err)
			}
			if string(got) != "keep" {
				t.Errorf("DecodeInto() = %q, want dst unchanged", got)
			}
		})
	}
}

func TestDecodeIntoAppends(t *testing.T) {
	chunk, payload := framed(70)
	got, err := DecodeInto([]byte{0xFF}, chunk, FormatFTDI)
	if err != nil {
		t.Fatalf("DecodeInto() error = %v", err)
	}
	want := append([]byte{0xFF}, payload...)
	if !bytes.Equal(got, want) {
		t.Errorf("DecodeInto() = %v, want %v", got, want)
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}, DeviceFormat(5)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Decode() error = %v, want ErrInvalidConfig", err)
	}
}

func TestPacketCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{64, 1},
		{65, 2},
		{128, 2},
		{190, 3},
		{192, 3},
	}

	for _, tt := range tests {
		if got := PacketCount(tt.n); got != tt.want {
			t.Errorf("PacketCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestParseDeviceFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    DeviceFormat
		wantErr bool
	}{
		{"raw", FormatRaw, false},
		{"", FormatRaw, false},
		{"ftdi", FormatFTDI, false},
		{"cp210x", FormatRaw, true},
	}

	for _, tt := range tests {
		got, err := ParseDeviceFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDeviceFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDeviceFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
