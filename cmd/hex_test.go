package cmd

import (
	"bytes"
	"testing"
)

func TestParseHexInput(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr bool
	}{
		{"48656C6C6F", []byte("Hello"), false},
		{"48 65 6c 6c 6f", []byte("Hello"), false},
		{"0x01 0x03", []byte{0x01, 0x03}, false},
		{"", nil, true},
		{"ABC", nil, true},
		{"GG", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseHexInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHexInput(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("parseHexInput(%q) = % X, want % X", tt.input, got, tt.want)
			}
		})
	}
}

func TestAppendCRC16(t *testing.T) {
	// Modbus "read holding registers" request with its well-known CRC.
	frame := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A}
	got := appendCRC16(frame)
	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}
	if !bytes.Equal(got, want) {
		t.Errorf("appendCRC16() = % X, want % X", got, want)
	}
}

func TestPrintable(t *testing.T) {
	if got := printable([]byte("ab\x00c"), 0); got != "ab·c" {
		t.Errorf("printable() = %q, want %q", got, "ab·c")
	}
	if got := printable([]byte("abcdef"), 3); got != "abc..." {
		t.Errorf("printable() = %q, want %q", got, "abc...")
	}
}

func TestParseParity(t *testing.T) {
	for _, s := range []string{"N", "o", "EVEN", "m", "space"} {
		if _, err := parseParity(s); err != nil {
			t.Errorf("parseParity(%q) error = %v", s, err)
		}
	}
	if _, err := parseParity("X"); err == nil {
		t.Error("Expected error for invalid parity")
	}
	if _, err := parseFlowControl("cts"); err == nil {
		t.Error("Expected error for invalid flow control")
	}
}
