/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <device>",
	Short: "Send data to a USB serial device",
	Long: `Send one payload to a USB serial device.

Data can be provided as:
- Command line argument: send "Hello World" /dev/bus/usb/001/004
- From stdin (pipe): echo "test data" | usbserial send /dev/bus/usb/001/004
- Interactive mode: usbserial send /dev/bus/usb/001/004 (prompts for input)

Features include:
- Automatic line endings (--newline flag)
- Hex input support (--hex flag)
- CRC-16/MODBUS trailer (--crc16 flag)
- Waits until the write pump has handed the payload to the device

Example usage:
  usbserial send "Hello World" /dev/bus/usb/001/004
  usbserial send "AT+GMR" /dev/bus/usb/001/004 --newline
  usbserial send "01 03 00 00 00 0A" /dev/bus/usb/001/004 --hex --crc16
  echo "test" | usbserial send /dev/ttyUSB0 --backend tty --driver generic`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		var path string

		// Parse arguments: either "send data device" or "send device"
		if len(args) == 1 {
			path = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				// No pipe input, use interactive mode
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("error reading from stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			path = args[1]
		}

		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		withCRC, _ := cmd.Flags().GetBool("crc16")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		payload := []byte(data)
		if hexMode {
			parsed, err := parseHexInput(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			payload = parsed
		}
		if addNewline && !hexMode {
			payload = append(payload, '\n')
		}
		if withCRC {
			payload = appendCRC16(payload)
		}

		return sendData(path, payload, timeout)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().Bool("crc16", false, "Append a CRC-16/MODBUS trailer, low byte first")
	sendCmd.Flags().DurationP("timeout", "t", 10*time.Second, "Time to wait for the payload to be written")
}

func promptForData() string {
	fmt.Print(styles.InfoStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

var errSendTimeout = errors.New("timed out waiting for the write pump")

// waitWritten polls the device counters until the payload was either
// confirmed or failed.
func waitWritten(ctx context.Context, dev usbserial.Device, size int) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		stats := dev.Stats()
		if stats.WriteFailures > 0 {
			return fmt.Errorf("transfer failed after %d of %d bytes", stats.BytesOut, size)
		}
		if stats.BytesOut >= int64(size) && stats.PayloadsOut > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return errSendTimeout
		case <-ticker.C:
		}
	}
}

func sendData(path string, payload []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("%s Opening %s...\n", styles.StatusConnecting.Symbol(), path)

	transferErr := make(chan error, 1)
	dev, err := openDevice(ctx, path, usbserial.WithErrorHandler(func(err error) {
		select {
		case transferErr <- err:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("%s %w", styles.StatusError.Symbol(), err)
	}
	defer dev.Close()

	fmt.Printf("%s Connected (%s)\n", styles.StatusConnected.Symbol(), dev.Format())
	fmt.Printf("%s Sending %d bytes...\n", styles.InfoStyle.Render("📤"), len(payload))

	if err := dev.Write(payload); err != nil {
		return fmt.Errorf("%s failed to queue data: %w", styles.StatusError.Symbol(), err)
	}
	if err := waitWritten(ctx, dev, len(payload)); err != nil {
		select {
		case te := <-transferErr:
			err = te
		default:
		}
		return fmt.Errorf("%s failed to send data: %w", styles.StatusError.Symbol(), err)
	}

	fmt.Printf("%s Successfully sent %d bytes\n", styles.StatusConnected.Symbol(), dev.Stats().BytesOut)
	fmt.Printf("%s Data: %s\n", styles.InfoStyle.Render("📋"), printable(payload, 50))
	return nil
}
