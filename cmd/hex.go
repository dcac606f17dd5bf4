/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sigurn/crc16"
)

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// parseHexInput converts hex strings to bytes. Supports both:
// - Space-separated: "48 65 6C 6C 6F"
// - Continuous: "48656C6C6F"
// - With 0x prefixes: "0x48 0x65"
func parseHexInput(hexStr string) ([]byte, error) {
	cleanHex := strings.NewReplacer(" ", "", "0x", "", "0X", "").Replace(strings.TrimSpace(hexStr))
	if len(cleanHex) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	// Check if it's valid hex characters
	for _, char := range cleanHex {
		if !((char >= '0' && char <= '9') || (char >= 'A' && char <= 'F') || (char >= 'a' && char <= 'f')) {
			return nil, fmt.Errorf("invalid hex character '%c'", char)
		}
	}

	// Must be even number of hex digits to form complete bytes
	if len(cleanHex)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(cleanHex))
	}

	bytes := make([]byte, 0, len(cleanHex)/2)
	for i := 0; i < len(cleanHex); i += 2 {
		hexByte := cleanHex[i : i+2]
		b, err := strconv.ParseUint(hexByte, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		bytes = append(bytes, byte(b))
	}
	return bytes, nil
}

// appendCRC16 appends the CRC-16/MODBUS of data, low byte first.
func appendCRC16(data []byte) []byte {
	crc := crc16.Checksum(data, modbusTable)
	return append(data, byte(crc), byte(crc>>8))
}

// printable replaces non-printable bytes for single line display.
func printable(data []byte, limit int) string {
	preview := data
	suffix := ""
	if limit > 0 && len(preview) > limit {
		preview = preview[:limit]
		suffix = "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, string(preview)) + suffix
}
