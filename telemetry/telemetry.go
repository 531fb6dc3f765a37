package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	serviceName = "checkpointer"

	inmemInterval  = 10 * time.Second
	inmemRetention = time.Minute

	// PrometheusPath serves the prometheus exposition format
	PrometheusPath = "/metrics"
	// SummaryPath serves the json summary of the in memory sink
	SummaryPath = "/v1/metrics"
)

// Telemetry owns the metric sinks of the process and the optional http endpoint exposing them
type Telemetry struct {
	logger   hclog.Logger
	inmem    *metrics.InmemSink
	registry *prometheus.Registry
	server   *fasthttp.Server
	done     chan error
}

// Setup installs the global metrics sink: an in memory sink (dumped on SIGUSR1)
// fanned out with a prometheus sink
func Setup(logger hclog.Logger) (*Telemetry, error) {
	inm := metrics.NewInmemSink(inmemInterval, inmemRetention)
	metrics.DefaultInmemSignal(inm)

	registry := prometheus.NewRegistry()

	promSink, err := metricsprom.NewPrometheusSinkFrom(metricsprom.PrometheusOpts{
		Name:       serviceName + "_prometheus_sink",
		Expiration: 0,
		Registerer: registry,
	})
	if err != nil {
		return nil, err
	}

	metricsConf := metrics.DefaultConfig(serviceName)
	metricsConf.EnableHostname = false

	if _, err := metrics.NewGlobal(metricsConf, metrics.FanoutSink{inm, promSink}); err != nil {
		return nil, err
	}

	return &Telemetry{
		logger:   logger.Named("telemetry"),
		inmem:    inm,
		registry: registry,
	}, nil
}

func (t *Telemetry) handler() fasthttp.RequestHandler {
	prom := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))

	summary := fasthttpadaptor.NewFastHTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := t.inmem.DisplayMetrics(w, r)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case PrometheusPath:
			prom(ctx)
		case SummaryPath:
			summary(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

// Serve exposes the metrics on addr until Close is called
func (t *Telemetry) Serve(addr string) (net.Addr, error) {
	if t.server != nil {
		return nil, errors.New("metrics endpoint already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	t.server = &fasthttp.Server{
		Handler:     t.handler(),
		ReadTimeout: 10 * time.Second,
	}
	t.done = make(chan error, 1)

	go func() {
		t.done <- t.server.Serve(ln)
	}()

	t.logger.Info("metrics endpoint started", "addr", ln.Addr().String())

	return ln.Addr(), nil
}

// Close stops the metrics endpoint
func (t *Telemetry) Close() error {
	if t.server == nil {
		return nil
	}

	if err := t.server.Shutdown(); err != nil {
		return err
	}

	return <-t.done
}
