package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors shared by every pipeline built from
// one factory. Collectors are labeled by logical client name.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	overloadsTotal     *prometheus.CounterVec
	throttleDelayTotal *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	inFlight           *prometheus.GaugeVec
}

// NewMetrics creates and registers the pipeline collectors. A nil registerer
// disables metrics; every method on the derived clientMetrics is nil-safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_client_requests_total",
			Help: "Requests executed through the pipeline.",
		}, []string{"client"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_client_retries_total",
			Help: "Retry attempts scheduled by the retry stage.",
		}, []string{"client"}),
		overloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_client_overload_rejections_total",
			Help: "Requests rejected because the limiter wait queue was full.",
		}, []string{"client"}),
		throttleDelayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_client_throttle_delay_seconds_total",
			Help: "Cumulative proactive throttle delay scheduled.",
		}, []string{"client"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nimbus_client_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"client"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nimbus_client_in_flight_requests",
			Help: "Requests currently holding a concurrency permit.",
		}, []string{"client"}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.retriesTotal,
		m.overloadsTotal,
		m.throttleDelayTotal,
		m.breakerState,
		m.inFlight,
	)

	return m
}

// ForClient binds the collectors to one logical client name.
func (m *Metrics) ForClient(name string) clientMetrics {
	return clientMetrics{m: m, client: name}
}

// clientMetrics is the per-client, nil-safe recording handle used throughout
// the pipeline.
type clientMetrics struct {
	m      *Metrics
	client string
}

func (c clientMetrics) RequestStarted() {
	if c.m == nil {
		return
	}

	c.m.requestsTotal.WithLabelValues(c.client).Inc()
	c.m.inFlight.WithLabelValues(c.client).Inc()
}

func (c clientMetrics) RequestFinished() {
	if c.m == nil {
		return
	}

	c.m.inFlight.WithLabelValues(c.client).Dec()
}

func (c clientMetrics) RetryScheduled() {
	if c.m == nil {
		return
	}

	c.m.retriesTotal.WithLabelValues(c.client).Inc()
}

func (c clientMetrics) OverloadRejected() {
	if c.m == nil {
		return
	}

	c.m.overloadsTotal.WithLabelValues(c.client).Inc()
}

func (c clientMetrics) ThrottleScheduled(delay time.Duration) {
	if c.m == nil {
		return
	}

	c.m.throttleDelayTotal.WithLabelValues(c.client).Add(delay.Seconds())
}

func (c clientMetrics) BreakerState(state CircuitState) {
	if c.m == nil {
		return
	}

	c.m.breakerState.WithLabelValues(c.client).Set(float64(state))
}
