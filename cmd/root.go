/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/allbin/go-usbserial"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// logger is configured from --log-level and --log-format before any
// command runs.
var logger *slog.Logger

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "usbserial",
	Short: "Talk to USB serial adapters over raw bulk endpoints",
	Long: `usbserial opens USB serial adapters either through Linux usbfs
(raw bulk endpoints, FTDI status bytes stripped in user space) or through
the kernel tty driver, and streams data in both directions.

Settings can come from flags, from USBSERIAL_* environment variables or
from a YAML config file ($HOME/.usbserial.yaml by default):

  backend: usbfs
  driver: ftdi
  baud: 9600`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(viper.GetString("log-level"), viper.GetString("log-format"))
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.usbserial.yaml)")
	pf.String("backend", "usbfs", "Connection backend: usbfs, tty, loopback")
	pf.StringP("driver", "d", "ftdi", "Device driver: "+strings.Join(usbserial.DriverNames(), ", "))
	pf.Int("interface", 0, "USB interface number (usbfs backend)")
	pf.IntP("baud", "b", 115200, "Baud rate")
	pf.Int("data-bits", 8, "Data bits (5-8)")
	pf.Int("stop-bits", 1, "Stop bits (1 or 2)")
	pf.String("parity", "N", "Parity: N, O, E, M, S")
	pf.StringP("flow-control", "f", "none", "Flow control: none, rtscts, dtrdsr, xonxoff")
	pf.Int("write-queue", 0, "Queue up to N pending writes instead of keeping only the newest")
	pf.Duration("write-timeout", usbserial.DefaultWriteTimeout, "Timeout of each bulk OUT transfer")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")

	for _, name := range []string{
		"backend", "driver", "interface", "baud", "data-bits", "stop-bits",
		"parity", "flow-control", "write-queue", "write-timeout", "log-level", "log-format",
	} {
		cobra.CheckErr(viper.BindPFlag(name, pf.Lookup(name)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".usbserial")
	}

	viper.SetEnvPrefix("USBSERIAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var f usbserial.LogFormat
	switch strings.ToLower(format) {
	case "text", "":
		f = usbserial.LogFormatText
	case "json":
		f = usbserial.LogFormatJSON
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	usbserial.SetLogLevel(lvl)
	return usbserial.NewLogger(os.Stderr, f, lvl), nil
}
