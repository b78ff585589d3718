package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives summary pipeline events.
type Recorder interface {
	RecordSummary(state string)
	RecordSummarizerCall(duration time.Duration, err error)
	RecordStaleWrite()
	RecordLeaseBusy()
}

type Collector struct {
	summaries       *prometheus.CounterVec
	summarizerCalls *prometheus.CounterVec
	latency         prometheus.Histogram
	staleWrites     prometheus.Counter
	leaseBusy       prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readweb_summary_requests_total",
			Help: "Comment summary requests by result state.",
		}, []string{"state"}),
		summarizerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readweb_summarizer_calls_total",
			Help: "Summarizer invocations by result.",
		}, []string{"result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "readweb_summarizer_latency_seconds",
			Help:    "Summarizer call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		staleWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readweb_summary_stale_writes_total",
			Help: "Recompute results discarded because a newer summary was already stored.",
		}),
		leaseBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readweb_summary_lease_busy_total",
			Help: "Recomputes skipped because another process held the novel lease.",
		}),
	}
	reg.MustRegister(
		c.summaries,
		c.summarizerCalls,
		c.latency,
		c.staleWrites,
		c.leaseBusy,
	)
	return c
}

func (c *Collector) RecordSummary(state string) {
	c.summaries.WithLabelValues(state).Inc()
}

func (c *Collector) RecordSummarizerCall(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.summarizerCalls.WithLabelValues(result).Inc()
	c.latency.Observe(duration.Seconds())
}

func (c *Collector) RecordStaleWrite() {
	c.staleWrites.Inc()
}

func (c *Collector) RecordLeaseBusy() {
	c.leaseBusy.Inc()
}

// Nop discards every event.
type Nop struct{}

func (Nop) RecordSummary(string)                      {}
func (Nop) RecordSummarizerCall(time.Duration, error) {}
func (Nop) RecordStaleWrite()                         {}
func (Nop) RecordLeaseBusy()                          {}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
