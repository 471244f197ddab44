package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/gauges/histograms for call relay flows.
type CallMetrics struct {
	callsInitiated   *prometheus.CounterVec
	offersDelivered  prometheus.Counter
	offersFailed     prometheus.Counter
	stateTransitions *prometheus.CounterVec
	reconcileTotal   *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
	connectedDoctors prometheus.Gauge
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "router",
			Name:      "calls_initiated_total",
			Help:      "Total initiate-call requests",
		}, []string{"outcome"}),
		offersDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "registry",
			Name:      "offers_delivered_total",
			Help:      "Call offers successfully delivered to doctor endpoints",
		}),
		offersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "registry",
			Name:      "offers_failed_total",
			Help:      "Call offer deliveries that failed",
		}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Call session state transitions",
		}, []string{"from", "to"}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome",
		}, []string{"outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callrelay",
			Subsystem: "store",
			Name:      "request_seconds",
			Help:      "Latency of appointment store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		connectedDoctors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callrelay",
			Subsystem: "registry",
			Name:      "connected_doctors",
			Help:      "Currently reachable doctor endpoints",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.callsInitiated,
		m.offersDelivered,
		m.offersFailed,
		m.stateTransitions,
		m.reconcileTotal,
		m.storeLatency,
		m.connectedDoctors,
	)
	return m
}

func (m *CallMetrics) ObserveInitiate(outcome string) {
	if m == nil {
		return
	}
	m.callsInitiated.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveOfferDelivery(delivered, failed int) {
	if m == nil {
		return
	}
	m.offersDelivered.Add(float64(delivered))
	m.offersFailed.Add(float64(failed))
}

func (m *CallMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}

func (m *CallMetrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveStoreLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *CallMetrics) SetConnectedDoctors(n int) {
	if m == nil {
		return
	}
	m.connectedDoctors.Set(float64(n))
}
