// Package metrics records valuation and market-data fetch metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder exposes valuation metrics through Prometheus.
type Recorder struct {
	valuations   *prometheus.CounterVec
	sharePrice   *prometheus.GaugeVec
	discountRate *prometheus.GaugeVec
	fetches      *prometheus.HistogramVec
	fetchErrors  *prometheus.CounterVec
}

// New registers the recorder's collectors with reg
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		valuations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcf_valuations_total",
				Help: "Total number of DCF valuations by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		sharePrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dcf_intrinsic_share_price",
				Help: "Last intrinsic share price computed for a ticker",
			},
			[]string{"ticker", "strategy"},
		),
		discountRate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dcf_discount_rate",
				Help: "Last discount rate (WACC) estimated for a ticker",
			},
			[]string{"ticker"},
		),
		fetches: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dcf_market_fetch_duration_seconds",
				Help:    "Duration of market-data fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dcf_market_fetch_errors_total",
				Help: "Total number of failed market-data fetches",
			},
			[]string{"operation"},
		),
	}
}

// RecordValuation counts a finished valuation; price is recorded on success
func (r *Recorder) RecordValuation(ticker, strategy string, price float64, err error) {
	if err != nil {
		r.valuations.WithLabelValues(strategy, OutcomeError).Inc()
		return
	}
	r.valuations.WithLabelValues(strategy, OutcomeSuccess).Inc()
	r.sharePrice.WithLabelValues(ticker, strategy).Set(price)
}

func (r *Recorder) RecordDiscountRate(ticker string, rate float64) {
	r.discountRate.WithLabelValues(ticker).Set(rate)
}

// ObserveFetch records one market-data call
func (r *Recorder) ObserveFetch(op string, seconds float64, err error) {
	r.fetches.WithLabelValues(op).Observe(seconds)
	if err != nil {
		r.fetchErrors.WithLabelValues(op).Inc()
	}
}
