package components

import (
	"fmt"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
)

const (
	columnKeyPacket  = "packet"
	columnKeyOffset  = "offset"
	columnKeyStatus  = "status"
	columnKeyPayload = "payload"
	columnKeyHex     = "hex"
	columnKeyASCII   = "ascii"

	columnKeyCounter = "counter"
	columnKeyValue   = "value"
)

// PacketRow describes one 64-byte FTDI packet of a raw chunk.
type PacketRow struct {
	Index   int
	Offset  int
	Status  []byte // leading status bytes, shorter than 2 for a truncated tail
	Payload []byte
}

// SplitPackets breaks a raw FTDI chunk into its packets.
func SplitPackets(chunk []byte) []PacketRow {
	rows := make([]PacketRow, 0, usbserial.PacketCount(len(chunk)))
	for off := 0; off < len(chunk); off += usbserial.FTDIPacketSize {
		end := min(off+usbserial.FTDIPacketSize, len(chunk))
		hdr := min(off+usbserial.FTDIStatusLen, end)
		rows = append(rows, PacketRow{
			Index:   len(rows),
			Offset:  off,
			Status:  chunk[off:hdr],
			Payload: chunk[hdr:end],
		})
	}
	return rows
}

func baseTable(columns []table.Column, rows []table.Row) table.Model {
	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		WithBaseStyle(lipgloss.NewStyle().
			BorderForeground(colors.Surface2).
			Foreground(colors.Text).
			Align(lipgloss.Left)).
		HeaderStyle(lipgloss.NewStyle().Foreground(colors.Mauve).Bold(true)).
		WithFooterVisibility(false)
}

// PacketTable renders the per-packet breakdown of a raw FTDI chunk.
func PacketTable(chunk []byte, hexWidth int) string {
	if hexWidth < 16 {
		hexWidth = 16
	}

	columns := []table.Column{
		table.NewColumn(columnKeyPacket, "#", 4),
		table.NewColumn(columnKeyOffset, "Offset", 8),
		table.NewColumn(columnKeyStatus, "Status", 8),
		table.NewColumn(columnKeyPayload, "Payload", 8),
		table.NewColumn(columnKeyHex, "Hex", hexWidth),
		table.NewColumn(columnKeyASCII, "ASCII", hexWidth/3),
	}

	packets := SplitPackets(chunk)
	rows := make([]table.Row, 0, len(packets))
	for _, p := range packets {
		status := table.NewStyledCell(fmt.Sprintf("% X", p.Status), lipgloss.NewStyle().Foreground(colors.FTDIStatus))
		if len(p.Status) < usbserial.FTDIStatusLen {
			// truncated tail, the chunk fails to decode
			status = table.NewStyledCell(fmt.Sprintf("% X !", p.Status), lipgloss.NewStyle().Foreground(colors.TXFailed))
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPacket:  p.Index,
			columnKeyOffset:  fmt.Sprintf("0x%04X", p.Offset),
			columnKeyStatus:  status,
			columnKeyPayload: len(p.Payload),
			columnKeyHex:     fmt.Sprintf("% X", p.Payload),
			columnKeyASCII:   ASCII(p.Payload),
		}))
	}

	return baseTable(columns, rows).View()
}

// StatsTable renders a device counter snapshot.
func StatsTable(stats usbserial.Stats) string {
	columns := []table.Column{
		table.NewColumn(columnKeyCounter, "Counter", 20),
		table.NewColumn(columnKeyValue, "Value", 12),
	}

	counters := []struct {
		name  string
		value int64
	}{
		{"Chunks in", stats.ChunksIn},
		{"Bytes in", stats.BytesIn},
		{"Raw bytes in", stats.RawBytesIn},
		{"Payloads out", stats.PayloadsOut},
		{"Bytes out", stats.BytesOut},
		{"Superseded writes", stats.SupersededWrites},
		{"Read failures", stats.ReadFailures},
		{"Write failures", stats.WriteFailures},
		{"Decode failures", stats.DecodeFailures},
		{"Undelivered", stats.Undelivered},
	}

	rows := make([]table.Row, 0, len(counters))
	for _, c := range counters {
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyCounter: c.name,
			columnKeyValue:   c.value,
		}))
	}

	return baseTable(columns, rows).View()
}
