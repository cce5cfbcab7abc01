package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credkit"

// Outcome labels shared by every counter.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives operation outcomes from services.
type Recorder interface {
	// RecordAuth counts an account operation such as "login" or "register".
	RecordAuth(operation, outcome string)
	// RecordOTP counts a challenge verification for purpose.
	RecordOTP(purpose, outcome string)
	// RecordOTPIssued counts an issued challenge for purpose.
	RecordOTPIssued(purpose string)
	// RecordTOTP counts a second-factor check.
	RecordTOTP(operation, outcome string)
	// RecordDocument counts a document operation such as "upload".
	RecordDocument(operation, outcome string)
	// RecordSweep counts challenges removed by the sweeper.
	RecordSweep(deleted int64)
	// ObserveHTTP records one served request.
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	auth        *prometheus.CounterVec
	otp         *prometheus.CounterVec
	otpIssued   *prometheus.CounterVec
	totp        *prometheus.CounterVec
	documents   *prometheus.CounterVec
	swept       prometheus.Counter
	httpTotal   *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Account operations by outcome.",
		}, []string{"operation", "outcome"}),
		otp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "One-time code verifications by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time code challenges issued by purpose.",
		}, []string{"purpose"}),
		totp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "totp_operations_total",
			Help:      "Second-factor operations by outcome.",
		}, []string{"operation", "outcome"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_operations_total",
			Help:      "Encrypted document operations by outcome.",
		}, []string{"operation", "outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_swept_total",
			Help:      "Expired challenges deleted by the sweeper.",
		}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.auth,
		c.otp,
		c.otpIssued,
		c.totp,
		c.documents,
		c.swept,
		c.httpTotal,
		c.httpLatency,
	)

	return c
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (c *Collector) RecordAuth(operation, outcome string) {
	c.auth.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordOTP(purpose, outcome string) {
	c.otp.WithLabelValues(purpose, outcome).Inc()
}

func (c *Collector) RecordOTPIssued(purpose string) {
	c.otpIssued.WithLabelValues(purpose).Inc()
}

func (c *Collector) RecordTOTP(operation, outcome string) {
	c.totp.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordDocument(operation, outcome string) {
	c.documents.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordSweep(deleted int64) {
	if deleted > 0 {
		c.swept.Add(float64(deleted))
	}
}

func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Noop discards every observation.
type Noop struct{}

func (Noop) RecordAuth(string, string)                      {}
func (Noop) RecordOTP(string, string)                       {}
func (Noop) RecordOTPIssued(string)                         {}
func (Noop) RecordTOTP(string, string)                      {}
func (Noop) RecordDocument(string, string)                  {}
func (Noop) RecordSweep(int64)                              {}
func (Noop) ObserveHTTP(string, string, int, time.Duration) {}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
