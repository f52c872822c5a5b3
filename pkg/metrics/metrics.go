package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amoylab/hublink/internal/common/config"
)

// Emit outcomes.
const (
	EmitSent     = "sent"
	EmitDropped  = "dropped"
	EmitDeferred = "deferred"
	EmitFailed   = "failed"
)

// Metrics records realtime session activity. A nil *Metrics is valid and
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	registry     *prometheus.Registry
	connState    prometheus.Gauge
	connects     prometheus.Counter
	disconnects  *prometheus.CounterVec
	connErrors   prometheus.Counter
	emits        *prometheus.CounterVec
	inbound      *prometheus.CounterVec
	listeners    *prometheus.GaugeVec
	httpReqCnt   *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the realtime collectors on a fresh registry
func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	connState := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "connection_state", Help: "0 disconnected, 1 connecting, 2 connected"})
	connects := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "connects_total"})
	disconnects := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "disconnects_total"}, []string{"reason"})
	connErrors := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "connect_errors_total"})
	r.MustRegister(connState, connects, disconnects, connErrors)

	emits := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "emits_total"}, []string{"channel", "outcome"})
	inbound := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "inbound_events_total"}, []string{"channel"})
	listeners := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "listeners"}, []string{"channel"})
	r.MustRegister(emits, inbound, listeners)

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds"}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDuration)

	return &Metrics{
		registry:     r,
		connState:    connState,
		connects:     connects,
		disconnects:  disconnects,
		connErrors:   connErrors,
		emits:        emits,
		inbound:      inbound,
		listeners:    listeners,
		httpReqCnt:   httpReqCnt,
		httpDuration: httpDuration,
	}
}

// SetConnectionState records the session state (0 disconnected, 1 connecting, 2 connected)
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connState.Set(float64(state))
}

// Connected counts a completed connect
func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

// Disconnected counts a disconnect by reason
func (m *Metrics) Disconnected(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

// ConnectError counts a failed connection attempt
func (m *Metrics) ConnectError() {
	if m == nil {
		return
	}
	m.connErrors.Inc()
}

// Emit counts an outbound event by channel and outcome
func (m *Metrics) Emit(channel, outcome string) {
	if m == nil {
		return
	}
	m.emits.WithLabelValues(channel, outcome).Inc()
}

// Inbound counts an inbound event by channel
func (m *Metrics) Inbound(channel string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(channel).Inc()
}

// ListenerAdded increments the registered listener gauge of channel
func (m *Metrics) ListenerAdded(channel string) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(channel).Inc()
}

// ListenerRemoved decrements the registered listener gauge of channel
func (m *Metrics) ListenerRemoved(channel string) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(channel).Dec()
}

// Middleware counts requests served by the metrics/health router
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
