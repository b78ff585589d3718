package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSummary("fresh")
	c.RecordSummary("fresh")
	c.RecordSummary("stale")
	c.RecordSummarizerCall(120*time.Millisecond, nil)
	c.RecordSummarizerCall(time.Second, errors.New("down"))
	c.RecordStaleWrite()
	c.RecordLeaseBusy()

	require.Equal(t, float64(2), testutil.ToFloat64(c.summaries.WithLabelValues("fresh")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.summaries.WithLabelValues("stale")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.summarizerCalls.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.summarizerCalls.WithLabelValues("error")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.staleWrites))
	require.Equal(t, float64(1), testutil.ToFloat64(c.leaseBusy))
	require.Equal(t, 2, testutil.CollectAndCount(c.summaries))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP readweb_summary_stale_writes_total Recompute results discarded because a newer summary was already stored.
# TYPE readweb_summary_stale_writes_total counter
readweb_summary_stale_writes_total 1
`), "readweb_summary_stale_writes_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "readweb_summarizer_latency_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	require.Equal(t, uint64(2), samples)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSummary("cached")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `readweb_summary_requests_total{state="cached"} 1`)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordSummary("fresh")
	r.RecordSummarizerCall(time.Second, nil)
	r.RecordStaleWrite()
	r.RecordLeaseBusy()
}
