package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fumin/tndmrg/dmrg"
)

// metrics exports the progress of a ground state search.
type metrics struct {
	reg *prometheus.Registry

	sweeps          prometheus.Counter
	matVec          prometheus.Counter
	energy          prometheus.Gauge
	maxBondDim      prometheus.Gauge
	discardedWeight prometheus.Gauge
	sweepDuration   prometheus.Histogram
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &metrics{
		reg: reg,
		sweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "dmrg_sweeps_total",
			Help: "Number of finished sweeps",
		}),
		matVec: factory.NewCounter(prometheus.CounterOpts{
			Name: "dmrg_matvec_total",
			Help: "Number of effective Hamiltonian applications",
		}),
		energy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dmrg_energy",
			Help: "Energy of the last sweep",
		}),
		maxBondDim: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dmrg_max_bond_dim",
			Help: "Largest bond dimension after the last sweep",
		}),
		discardedWeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dmrg_discarded_weight",
			Help: "Discarded weight of the last sweep",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmrg_sweep_duration_seconds",
			Help:    "Sweep duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	return m
}

func (m *metrics) observe(s dmrg.SweepStats) {
	m.sweeps.Inc()
	m.matVec.Add(float64(s.MatVec))
	m.energy.Set(s.Energy)
	m.maxBondDim.Set(float64(s.MaxBondDim))
	m.discardedWeight.Set(s.DiscardedWeight)
	m.sweepDuration.Observe(s.Duration.Seconds())
}

// serve serves the metrics on addr in the background.
func (m *metrics) serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics", "err", err)
		}
	}()
	return srv
}
