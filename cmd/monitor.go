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
	"github.com/spf13/cobra"
)

var monitorInterval time.Duration

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <device>",
	Short: "Monitor transfer counters and pump errors",
	Long: `Keep a device open with a discarding read callback and report throughput,
failures and superseded writes at a fixed interval. Every error reported by
the pumps is printed as it happens. Press Ctrl+C to stop.

Examples:
  usbserial monitor /dev/bus/usb/001/004
  usbserial monitor /dev/bus/usb/001/004 --interval 5s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		dev, err := openDevice(ctx, path, usbserial.WithErrorHandler(func(err error) {
			fmt.Printf("[%s] %v\n", time.Now().Format("15:04:05"), err)
		}))
		if err != nil {
			return err
		}
		defer dev.Close()

		if err := dev.Read(func([]byte) {}); err != nil {
			return err
		}

		fmt.Printf("Monitoring %s every %v\n", path, monitorInterval)
		fmt.Println("Press Ctrl+C to stop")

		ticker := time.NewTicker(monitorInterval)
		defer ticker.Stop()

		last := dev.Stats()
		for {
			select {
			case <-sigChan:
				fmt.Println("\nStopping monitor...")
				fmt.Println(components.StatsTable(dev.Stats()))
				return nil
			case <-ticker.C:
				now := dev.Stats()
				printStatsDelta(last, now, monitorInterval)
				last = now
			}
		}
	},
}

func printStatsDelta(prev, cur usbserial.Stats, interval time.Duration) {
	secs := interval.Seconds()
	fmt.Printf("[%s] RX %d chunks %.0f B/s | TX %d payloads %.0f B/s | failures in %d out %d decode %d superseded %d\n",
		time.Now().Format("15:04:05"),
		cur.ChunksIn-prev.ChunksIn,
		float64(cur.BytesIn-prev.BytesIn)/secs,
		cur.PayloadsOut-prev.PayloadsOut,
		float64(cur.BytesOut-prev.BytesOut)/secs,
		cur.ReadFailures-prev.ReadFailures,
		cur.WriteFailures-prev.WriteFailures,
		cur.DecodeFailures-prev.DecodeFailures,
		cur.SupersededWrites-prev.SupersededWrites)
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Second, "Reporting interval")
}
