package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/arloliu/go-gswifi/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	runDeviceFile  string
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Configure the module from a device file and keep it connected",
	Long: `Loads a YAML device file, applies its configuration to the module,
enables the network connection manager and runs it until interrupted.
Counters are served in Prometheus format when a metrics address is set.`,
	Args: cobra.NoArgs,
	RunE: runDevice,
}

func init() {
	runCmd.Flags().StringVarP(&runDeviceFile, "device", "d", "device.yaml", "Device file")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve metrics on this address, e.g. :9100")
}

func runDevice(cmd *cobra.Command, _ []string) error {
	dev, err := loadDevice(runDeviceFile)
	if err != nil {
		return err
	}

	if dev.LogLevel != "" && !cmd.Flags().Changed("log-level") {
		level, err := logger.ParseLevel(dev.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}

	baud := dev.Baud
	if baud == 0 || cmd.Flags().Changed("baud") {
		baud = baudRate
	}

	m, closeFn, err := openModuleOn(dev.Port, baud, dev.moduleOptions()...)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := dev.apply(m); err != nil {
		return err
	}

	if err := m.NCM().Enable(dev.ncmOptions()); err != nil {
		return err
	}
	logger.Info("module configured", "port", dev.Port, "driver", dev.ncmOptions().Driver)

	metricsAddr := runMetricsAddr
	if metricsAddr == "" {
		metricsAddr = dev.MetricsAddr
	}

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		if err := registerMetrics(reg, m); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.NCM().Run(gctx)
	})

	if reg != nil {
		g.Go(func() error {
			return serveMetrics(gctx, metricsAddr, reg)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
