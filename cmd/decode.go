/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/tui/components"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <chunk-file>",
	Short: "Strip FTDI status bytes from a captured bulk IN chunk",
	Long: `Decode one raw bulk IN chunk offline, exactly as the read pump would.

The file (or stdin when the argument is "-") holds the bytes of a single
completed transfer, for example copied from a USB sniffer. The payload is
written to stdout. With --table the per-packet breakdown is printed instead,
showing the status bytes and payload of every 64-byte packet.

Example usage:
  usbserial decode chunk.bin > payload.bin
  usbserial decode chunk.bin --table
  usbserial decode chunk.bin --format raw`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		showTable, _ := cmd.Flags().GetBool("table")
		hexWidth, _ := cmd.Flags().GetInt("hex-width")

		format, err := usbserial.ParseDeviceFormat(formatName)
		if err != nil {
			return fmt.Errorf("unknown format %q (want raw or ftdi)", formatName)
		}

		chunk, err := readChunk(args[0])
		if err != nil {
			return err
		}

		if showTable {
			fmt.Println(components.PacketTable(chunk, hexWidth))
		}

		payload, err := usbserial.Decode(chunk, format)
		if err != nil {
			return err
		}

		if showTable {
			fmt.Printf("%s %d raw bytes in %d packets, %d payload bytes\n",
				styles.StatusConnected.Symbol(), len(chunk), usbserial.PacketCount(len(chunk)), len(payload))
			return nil
		}
		_, err = os.Stdout.Write(payload)
		return err
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().String("format", "ftdi", "Framing format: ftdi, raw")
	decodeCmd.Flags().Bool("table", false, "Print the per-packet breakdown")
	decodeCmd.Flags().Int("hex-width", 48, "Width of the hex column in --table output")
}

func readChunk(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	return data, nil
}
