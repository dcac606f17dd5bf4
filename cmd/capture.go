/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allbin/go-usbserial"
	"github.com/spf13/cobra"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <device> <output-file>",
	Short: "Capture decoded device data to a file",
	Long: `Capture incoming data to a file for later parsing.

Every decoded chunk is appended to the output file as it arrives. Runs
continuously until interrupted (Ctrl+C).

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  usbserial capture /dev/bus/usb/001/004 data.log
  usbserial capture /dev/bus/usb/001/004 output.txt --baud 9600
  usbserial capture /dev/bus/usb/001/004 capture.log --console`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showConsole, _ := cmd.Flags().GetBool("console")
		bufferSize, _ := cmd.Flags().GetInt("buffer")

		return runCapture(args[0], args[1], bufferSize, showConsole)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Int("buffer", usbserial.DefaultReadBufferSize, "Inbound transfer buffer size, a multiple of 64")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

func runCapture(path, outputPath string, bufferSize int, showConsole bool) error {
	// Open output file in append mode
	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	// Setup signal handling for clean shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, shutting down...\n")
			cancel()
		case <-ctx.Done():
		}
	}()

	writeErr := make(chan error, 1)
	dev, err := openDevice(ctx, path, usbserial.WithReadBufferSize(bufferSize))
	if err != nil {
		return err
	}
	defer dev.Close()

	var bytesWritten int64
	err = dev.Read(func(data []byte) {
		n, err := file.Write(data)
		bytesWritten += int64(n)
		if err != nil {
			select {
			case writeErr <- err:
			default:
			}
			return
		}
		if showConsole {
			os.Stdout.Write(data)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", path, outputPath)
	if showConsole {
		fmt.Fprintf(os.Stderr, "Console display enabled\n")
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	startTime := time.Now()
	select {
	case <-ctx.Done():
	case err := <-writeErr:
		return fmt.Errorf("write error: %w", err)
	}

	// Stop the read pump before reading the counter it updates
	dev.KillReadPump()
	duration := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n", bytesWritten, duration.Round(time.Millisecond))
	return nil
}
