// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/diffpressure/internal/d6fph"
)

// pollMetrics counts poll outcomes and holds the last published values.
type pollMetrics struct {
	polls       *prometheus.CounterVec
	duration    prometheus.Histogram
	temperature prometheus.Gauge
	pressure    prometheus.Gauge
}

func newPollMetrics(reg prometheus.Registerer) *pollMetrics {
	m := &pollMetrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "d6fph_polls_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "d6fph_poll_duration_seconds",
			Help:    "Time spent in one poll, including the measurement delay.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "d6fph_temperature_celsius",
			Help: "Last published sensor temperature.",
		}),
		pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "d6fph_pressure_pascals",
			Help: "Last published differential pressure.",
		}),
	}
	reg.MustRegister(m.polls, m.duration, m.temperature, m.pressure)
	return m
}

// resultLabel maps a poll error to its metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, d6fph.ErrCommunication):
		return "communication_error"
	case errors.Is(err, d6fph.ErrRange):
		return "range_error"
	case errors.Is(err, d6fph.ErrConfiguration):
		return "configuration_error"
	default:
		return "publish_error"
	}
}

func (m *pollMetrics) observe(err error, took time.Duration) {
	m.polls.WithLabelValues(resultLabel(err)).Inc()
	m.duration.Observe(took.Seconds())
}

// serveMetrics exposes the default registry until the process exits.
func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("producer: metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("producer: metrics server: %v", err)
	}
}
