/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/allbin/go-usbserial"
	"github.com/allbin/go-usbserial/internal/loopback"
	"github.com/allbin/go-usbserial/tty"
	"github.com/allbin/go-usbserial/usbfs"
	"github.com/spf13/viper"
)

// deviceOptions builds the core options from the bound flags.
func deviceOptions() ([]usbserial.Option, error) {
	parity, err := parseParity(viper.GetString("parity"))
	if err != nil {
		return nil, err
	}
	flowControl, err := parseFlowControl(viper.GetString("flow-control"))
	if err != nil {
		return nil, err
	}

	opts := []usbserial.Option{
		usbserial.WithBaudRate(viper.GetInt("baud")),
		usbserial.WithDataBits(viper.GetInt("data-bits")),
		usbserial.WithStopBits(viper.GetInt("stop-bits")),
		usbserial.WithParity(parity),
		usbserial.WithFlowControl(flowControl),
		usbserial.WithWriteTimeout(viper.GetDuration("write-timeout")),
		usbserial.WithLogger(logger),
	}
	if depth := viper.GetInt("write-queue"); depth > 0 {
		opts = append(opts, usbserial.WithWriteQueueDepth(depth))
	}
	return opts, nil
}

// resolveConfig applies opts to a default config, for display.
func resolveConfig(opts []usbserial.Option) (usbserial.Config, error) {
	config := usbserial.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return config, err
		}
	}
	return config, nil
}

// openConnection opens path with the backend selected by --backend.
func openConnection(path string, line usbserial.LineSettings, driver usbserial.Driver) (usbserial.Connection, error) {
	backend := strings.ToLower(viper.GetString("backend"))
	switch backend {
	case "usbfs":
		conn, err := usbfs.Open(path,
			usbfs.WithInterface(viper.GetInt("interface")),
			usbfs.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "tty":
		conn, err := tty.Open(path, line, tty.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "loopback":
		return loopback.New(loopback.WithEcho(driver.Format() == usbserial.FormatFTDI)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want usbfs, tty or loopback)", backend)
	}
}

// openDevice opens path and returns a running device. extra options are
// applied after the flag derived ones.
func openDevice(ctx context.Context, path string, extra ...usbserial.Option) (usbserial.Device, error) {
	driver, err := usbserial.LookupDriver(strings.ToLower(viper.GetString("driver")))
	if err != nil {
		return nil, err
	}
	opts, err := deviceOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)
	config, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	conn, err := openConnection(path, config.Line, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return usbserial.Open(ctx, conn, driver, opts...)
}

func parseParity(s string) (usbserial.Parity, error) {
	switch strings.ToUpper(s) {
	case "N", "NONE":
		return usbserial.ParityNone, nil
	case "O", "ODD":
		return usbserial.ParityOdd, nil
	case "E", "EVEN":
		return usbserial.ParityEven, nil
	case "M", "MARK":
		return usbserial.ParityMark, nil
	case "S", "SPACE":
		return usbserial.ParitySpace, nil
	default:
		return usbserial.ParityNone, fmt.Errorf("invalid parity %q", s)
	}
}

func parseFlowControl(s string) (usbserial.FlowControl, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return usbserial.FlowControlNone, nil
	case "rtscts":
		return usbserial.FlowControlRTSCTS, nil
	case "dtrdsr":
		return usbserial.FlowControlDTRDSR, nil
	case "xonxoff":
		return usbserial.FlowControlXONXOFF, nil
	default:
		return usbserial.FlowControlNone, fmt.Errorf("invalid flow control %q", s)
	}
}
