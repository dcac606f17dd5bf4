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
	"github.com/allbin/go-usbserial/internal/tui/components"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <device>",
	Short: "Print decoded data from a USB serial device",
	Long: `Listen for incoming data and print every decoded chunk as it arrives.

Each line shows one completed bulk IN transfer after framing removal, so an
FTDI chip never shows its two status bytes. Runs until Ctrl+C, then prints
the device counters.

Example usage:
  usbserial listen /dev/bus/usb/001/004
  usbserial listen /dev/bus/usb/001/004 --baud 9600 --hex
  usbserial listen /dev/ttyUSB0 --backend tty --driver generic --raw`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hexOnly, _ := cmd.Flags().GetBool("hex")
		asciiOnly, _ := cmd.Flags().GetBool("ascii")
		noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")
		rawMode, _ := cmd.Flags().GetBool("raw")

		formatter := components.NewDataFormatter(!asciiOnly, !hexOnly)
		formatter.SetHideTimestamps(noTimestamps)

		return runListen(args[0], formatter, rawMode)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().Bool("hex", false, "Show only the hex column")
	listenCmd.Flags().Bool("ascii", false, "Show only the ASCII column")
	listenCmd.Flags().Bool("no-timestamps", false, "Hide timestamps from output")
	listenCmd.Flags().Bool("raw", false, "Write decoded bytes to stdout unformatted")
}

func runListen(path string, formatter *components.DataFormatter, rawMode bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	dev, err := openDevice(ctx, path, usbserial.WithErrorHandler(func(err error) {
		logger.Warn("device error", "error", err)
	}))
	if err != nil {
		return err
	}
	defer dev.Close()

	in, out := dev.Endpoints()
	header := components.NewStatusBar("listen", path)
	header.SetConnectionInfo(&components.ConnectionInfo{
		Backend: viper.GetString("backend"),
		Driver:  viper.GetString("driver"),
		Format:  dev.Format(),
		Line:    dev.Line(),
		In:      in,
		Out:     out,
	})
	fmt.Fprintf(os.Stderr, "%s %s\n", styles.StatusConnected.Symbol(), header.ViewAsHeader())
	fmt.Fprintf(os.Stderr, "%s\n\n", styles.MutedStyle.Render("Press Ctrl+C to stop"))

	chunks := make(chan []byte, 256)
	err = dev.Read(func(data []byte) {
		select {
		case chunks <- data:
		default:
			logger.Warn("display cannot keep up, chunk dropped", "bytes", len(data))
		}
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-sigChan:
			dev.KillReadPump()
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, components.StatsTable(dev.Stats()))
			return nil
		case data := <-chunks:
			if rawMode {
				os.Stdout.Write(data)
				continue
			}
			fmt.Println(formatter.FormatMessage(components.DataReceivedMsg{
				Timestamp: time.Now(),
				Data:      data,
			}))
		}
	}
}
