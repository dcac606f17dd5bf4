/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/allbin/go-usbserial/internal/tui/components"
	"github.com/allbin/go-usbserial/internal/tui/styles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Open a device and show the endpoints and settings in use",
	Long: `Open a device with the configured backend and driver, then print the
selected bulk endpoints, the framing format and the applied line settings.

Examples:
  usbserial info /dev/bus/usb/001/004
  usbserial info /dev/ttyUSB0 --backend tty --driver generic`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		dev, err := openDevice(context.Background(), path)
		if err != nil {
			return err
		}
		defer dev.Close()

		in, out := dev.Endpoints()
		fmt.Printf("Device Information: %s\n\n", styles.TitleStyle.Render(path))
		fmt.Printf("  Backend:     %s\n", viper.GetString("backend"))
		fmt.Printf("  Driver:      %s\n", viper.GetString("driver"))
		fmt.Printf("  Format:      %s\n", dev.Format())
		fmt.Printf("  Line:        %s\n", components.LineSummary(dev.Line()))

		fmt.Println("\nEndpoints:")
		fmt.Printf("  IN:          %s (max packet %d)\n", in, in.MaxPacketSize)
		fmt.Printf("  OUT:         %s (max packet %d)\n", out, out.MaxPacketSize)

		fmt.Println("\nPumps:")
		fmt.Printf("  Read:        %s\n", dev.ReadPumpState())
		fmt.Printf("  Write:       %s\n", dev.WritePumpState())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
