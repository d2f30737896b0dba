package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arloliu/go-gswifi/gsmodule"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "gswifi"

// registerMetrics exports the counters of m on reg.
func registerMetrics(reg prometheus.Registerer, m *gsmodule.Module) error {
	metrics := m.Metrics()

	counter := func(name, help string, fn func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}

	gauge := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, fn)
	}

	collectors := []prometheus.Collector{
		counter("commands_total", "Commands sent to the module.", metrics.CommandCount.Load),
		counter("command_errors_total", "Commands the module did not confirm.", metrics.CommandErrCount.Load),
		counter("connections_opened_total", "Connections registered.", metrics.ConnOpenCount.Load),
		counter("connections_closed_total", "Connections released.", metrics.ConnCloseCount.Load),
		counter("tls_handshakes_total", "Successful TLS handshakes.", metrics.TLSHandshakeCount.Load),
		counter("tls_handshake_errors_total", "Failed TLS handshakes.", metrics.TLSHandshakeErrCount.Load),
		counter("data_frames_total", "Data frames written.", metrics.DataWriteCount.Load),
		counter("data_bytes_total", "Payload bytes written.", metrics.DataWriteBytes.Load),
		counter("events_total", "Unsolicited events handled.", metrics.EventCount.Load),
		counter("ncm_associate_attempts_total", "Association attempts of the connection manager.", metrics.NCMAssociateAttempts.Load),
		counter("ncm_connect_attempts_total", "Connection attempts of the connection manager.", metrics.NCMConnectAttempts.Load),
		gauge("connections_active", "Connections currently open.", func() float64 {
			return float64(metrics.ActiveConnGauge.Load())
		}),
		gauge("ncm_state", "State of the connection manager (0 disabled .. 5 associate-only idle).", func() float64 {
			return float64(m.NCM().State())
		}),
		gauge("ncm_halted", "1 when the connection manager used up its retries.", func() float64 {
			if m.NCM().Halted() {
				return 1
			}
			return 0
		}),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// serveMetrics serves reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}
