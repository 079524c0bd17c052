// Package metrics collects and exposes the proctoring Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services report to.  Use Nop where metrics are not
// wanted.
type Recorder interface {
	RecordViolation(violationType, severity string)
	RecordSubmission(status string)
	RecordAuthRejection(reason string)
	RecordSessionsSwept(count int64)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	violations     *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	authRejections *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_violations_total",
			Help: "Recorded violations by type and severity.",
		}, []string{"type", "severity"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_submissions_total",
			Help: "Attempts moved to a terminal state, by status.",
		}, []string{"status"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_auth_rejections_total",
			Help: "Rejected credentials by reason code.",
		}, []string{"reason"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper.",
		}),
	}

	reg.MustRegister(
		c.violations,
		c.submissions,
		c.authRejections,
		c.sessionsSwept,
	)
	return c
}

func (c *Collector) RecordViolation(violationType, severity string) {
	c.violations.WithLabelValues(violationType, severity).Inc()
}

func (c *Collector) RecordSubmission(status string) {
	c.submissions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordAuthRejection(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordViolation(string, string) {}
func (Nop) RecordSubmission(string)        {}
func (Nop) RecordAuthRejection(string)     {}
func (Nop) RecordSessionsSwept(int64)      {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
