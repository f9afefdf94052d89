package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Shop records upstream calls and the outcome of checkouts and publishes.
// A nil *Shop is valid and records nothing.
type Shop struct {
	upstream  *prometheus.HistogramVec
	checkouts *prometheus.CounterVec
	publishes *prometheus.CounterVec
}

// NewShop registers the shop metrics on reg.
func NewShop(reg prometheus.Registerer) *Shop {
	if reg == nil {
		return &Shop{}
	}
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopfront_upstream_call_seconds",
		Help:    "Duration of payment processor calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfront_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	publishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfront_publishes_total",
		Help: "Price mirror publish attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(upstream, checkouts, publishes)
	return &Shop{upstream: upstream, checkouts: checkouts, publishes: publishes}
}

func (s *Shop) ObserveUpstream(op string, err error, took time.Duration) {
	if s == nil || s.upstream == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.upstream.WithLabelValues(normalizeLabel(op), result).Observe(took.Seconds())
}

func (s *Shop) IncCheckout(outcome string) {
	if s == nil || s.checkouts == nil {
		return
	}
	s.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *Shop) IncPublish(outcome string) {
	if s == nil || s.publishes == nil {
		return
	}
	s.publishes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
