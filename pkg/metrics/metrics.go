package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	flowCnt     *prometheus.CounterVec
	upstreamCnt *prometheus.CounterVec
	upstreamDur *prometheus.HistogramVec
	pendingCnt  *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	flowCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "flow_transitions_total"}, []string{"grant", "status"})
	upstreamCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "upstream_requests_total"}, []string{"endpoint", "status"})
	upstreamDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "upstream_request_duration_seconds", Buckets: cfg.Buckets}, []string{"endpoint", "status"})
	r.MustRegister(flowCnt, upstreamCnt, upstreamDur)

	pendingCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "pending_requests_total"}, []string{"op", "result"})
	r.MustRegister(pendingCnt)

	return &Metrics{
		registry:    r,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		flowCnt:     flowCnt,
		upstreamCnt: upstreamCnt,
		upstreamDur: upstreamDur,
		pendingCnt:  pendingCnt,
	}
}

// FlowTransition counts a flow entering status
func (m *Metrics) FlowTransition(grant, status string) {
	if m == nil {
		return
	}
	m.flowCnt.WithLabelValues(grant, status).Inc()
}

// UpstreamDone records a call to an authorization server or resource endpoint.
// status is the HTTP status code, or 0 for a transport failure.
func (m *Metrics) UpstreamDone(endpoint string, status int, since time.Time) {
	if m == nil {
		return
	}
	s := httpStatus(status)
	m.upstreamCnt.WithLabelValues(endpoint, s).Inc()
	m.upstreamDur.WithLabelValues(endpoint, s).Observe(time.Since(since).Seconds())
}

// PendingRequest counts correlator operations, op is create or consume
func (m *Metrics) PendingRequest(op, result string) {
	if m == nil {
		return
	}
	m.pendingCnt.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}
