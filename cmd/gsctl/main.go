// Command gsctl configures and supervises a Gainspan Serial2WiFi module
// attached to a serial port.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/arloliu/go-gswifi/gsmodule"
	"github.com/arloliu/go-gswifi/gsserial"
	"github.com/arloliu/go-gswifi/logger"
	"github.com/spf13/cobra"
)

var (
	portName       string
	baudRate       int
	logLevel       string
	commandTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "gsctl",
	Short: "Control a Gainspan Serial2WiFi module",
	Long: `gsctl sends AT commands to a Gainspan Serial2WiFi module over a serial
port. Each subcommand opens the port, runs one operation and exits, except
"run", which configures the module from a device file and keeps the network
connection manager running.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "/dev/ttyUSB0", "Serial port of the module")
	rootCmd.PersistentFlags().IntVar(&baudRate, "baud", gsserial.DefaultBaudRate, "Baud rate")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&commandTimeout, "timeout", gsmodule.DefaultCommandTimeout, "Reply timeout of configuration commands")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(ncmCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openModule opens the serial port given by the global flags and creates a
// Module on it. The returned close function releases the port.
func openModule(opts ...gsmodule.ModuleOption) (*gsmodule.Module, func(), error) {
	return openModuleOn(portName, baudRate, opts...)
}

func openModuleOn(port string, baud int, opts ...gsmodule.ModuleOption) (*gsmodule.Module, func(), error) {
	serialCfg, err := gsserial.NewConfig(port, gsserial.WithBaudRate(baud))
	if err != nil {
		return nil, nil, err
	}

	tr, err := gsserial.Open(serialCfg)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := gsmodule.NewModuleConfig(append([]gsmodule.ModuleOption{gsmodule.WithCommandTimeout(commandTimeout)}, opts...)...)
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}

	m, err := gsmodule.NewModule(tr, cfg)
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}

	return m, func() { _ = tr.Close() }, nil
}
