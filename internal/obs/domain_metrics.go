package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SquareCallTotal counts calls to the Square API by endpoint and outcome.
	SquareCallTotal *prometheus.CounterVec
	// SquareCallLatency records Square API call latency in milliseconds.
	SquareCallLatency *prometheus.HistogramVec
	// PaymentOfferTotal counts eligibility outcomes (offered, blocked, hidden).
	PaymentOfferTotal *prometheus.CounterVec
	// PaymentTransferTotal counts transfer outcomes.
	PaymentTransferTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts verify outcomes.
	PaymentVerifyTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SquareCallTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "square_api_calls_total",
			Help:      "Count of Square API calls by endpoint and result.",
		}, []string{"endpoint", "result"})
		SquareCallLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "square_api_call_duration_ms",
			Help:      "Latency of Square API calls in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"endpoint"})
		PaymentOfferTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_offer_total",
			Help:      "Count of payment option eligibility outcomes.",
		}, []string{"provider", "result"})
		PaymentTransferTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transfer_total",
			Help:      "Count of hosted checkout transfer outcomes.",
		}, []string{"provider", "result"})
		PaymentVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of payment verification outcomes.",
		}, []string{"provider", "result"})

		mustRegisterCollector(reg, SquareCallTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SquareCallTotal = v
			}
		})
		mustRegisterCollector(reg, SquareCallLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SquareCallLatency = v
			}
		})
		mustRegisterCollector(reg, PaymentOfferTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentOfferTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentTransferTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentTransferTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentVerifyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentVerifyTotal = v
			}
		})
	})
}

// IncCounter increments vec with labels when the collector is registered.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// ObserveMillis records d on vec when the collector is registered.
func ObserveMillis(vec *prometheus.HistogramVec, d time.Duration, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Observe(DurationMillis(d))
}
