// Package metrics exposes pass outcomes as Prometheus metrics.
//
// One-shot runs write the registry to a node_exporter textfile; daemon
// mode serves it over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderbot/internal/pipeline"
	logx "orderbot/pkg/logx"
)

const namespace = "orderbot"

// Recorder implements pipeline.Recorder on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	passes      *prometheus.CounterVec
	records     *prometheus.CounterVec
	lastPass    prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
	ledgerSize  prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}
	r.passes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "passes_total",
		Help:      "Delivery passes by result (ok, noop, failed)",
	}, []string{"result"})
	r.records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "Records handled by outcome",
	}, []string{"outcome"})
	r.lastPass = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix timestamp of the last finished pass",
	})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last pass that fetched the batch",
	})
	r.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Wall time of a pass",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	r.ledgerSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_size",
		Help:      "Identities in the delivery ledger after the last pass",
	})
	r.reg.MustRegister(r.passes, r.records, r.lastPass, r.lastSuccess, r.duration, r.ledgerSize)

	// Pre-create the series so textfiles always carry every label.
	for _, res := range []pipeline.Result{pipeline.ResultOK, pipeline.ResultNoop, pipeline.ResultFailed} {
		r.passes.WithLabelValues(string(res))
	}
	return r
}

// ObservePass records a finished pass.
func (r *Recorder) ObservePass(rep pipeline.Report) {
	end := rep.Started.Add(rep.Duration)
	if rep.Started.IsZero() {
		end = time.Now()
	}
	r.passes.WithLabelValues(string(rep.Result)).Inc()
	r.duration.Observe(rep.Duration.Seconds())
	r.lastPass.Set(float64(end.Unix()))
	if rep.Result == pipeline.ResultFailed {
		return
	}
	r.lastSuccess.Set(float64(end.Unix()))

	for outcome, n := range map[string]int{
		"delivered":       rep.Delivered,
		"delivery_failed": rep.DeliveryFailed,
		"known":           rep.Known,
		"no_identity":     rep.NoIdentity,
		"persist_failed":  rep.PersistFailed,
		"unmarked":        rep.Unmarked,
	} {
		if n > 0 {
			r.records.WithLabelValues(outcome).Add(float64(n))
		}
	}
	if rep.Fetched > 0 {
		r.ledgerSize.Set(float64(rep.LedgerSize))
	}
}

// Registry exposes the underlying registry (tests, custom exporters).
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile writes the current values in the text exposition format.
// The write is atomic (temp file + rename).
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics and /healthz on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, log logx.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics listening", logx.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
