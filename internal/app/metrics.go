package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/molsync/internal/logging"
)

// metricsServer serves the Prometheus registry over HTTP.
type metricsServer struct {
	server   *http.Server
	listener net.Listener
	log      *logging.Logger
	done     chan struct{}
}

// newRegistry returns a registry carrying the process and Go collectors
// next to the synchronization metrics.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// startMetrics listens on addr and serves /metrics and /healthz.
func startMetrics(addr string, gatherer prometheus.Gatherer, log *logging.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	m := &metricsServer{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		listener: ln,
		log:      log.WithComponent("metrics"),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(m.done)
		m.log.Info("serving metrics on %s", ln.Addr())
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("metrics server: %v", err)
		}
	}()
	return m, nil
}

// Addr returns the bound address.
func (m *metricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (m *metricsServer) Shutdown(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	<-m.done
	if err != nil {
		return &ComponentError{Component: "metrics", Action: "shutdown", Err: err}
	}
	return nil
}
