package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestCollectorCountsSourcesAndUpserts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSourceFetch("bazaar", 12, false)
	c.RecordSourceFetch("bazaar", 3, true)
	c.RecordEndpointsUpserted(14)
	c.RecordUpsertFailures(1)

	families := gather(t, reg)

	src := families["x402index_source_endpoints_total"]
	if src == nil || src.GetMetric()[0].GetCounter().GetValue() != 15 {
		t.Fatalf("unexpected source endpoints %v", src)
	}
	if got := families["x402index_source_failures_total"].GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("source failures = %v, want 1", got)
	}
	if got := families["x402index_endpoints_upserted_total"].GetMetric()[0].GetCounter().GetValue(); got != 14 {
		t.Fatalf("upserted = %v, want 14", got)
	}
}

func TestCollectorProbesAndJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProbe(true, 120*time.Millisecond)
	c.RecordProbe(false, 5*time.Second)
	c.RecordProbe(true, 80*time.Millisecond)
	c.RecordDeactivations(2)
	c.RecordJob("healthcheck", time.Second, nil)
	c.RecordJob("healthcheck", time.Second, errors.New("boom"))

	families := gather(t, reg)

	results := map[string]float64{}
	for _, m := range families["x402index_probes_total"].GetMetric() {
		results[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	if results["success"] != 2 || results["failure"] != 1 {
		t.Fatalf("unexpected probe counts %v", results)
	}
	if got := families["x402index_probe_latency_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Fatalf("latency samples = %d, want 3", got)
	}
	if got := families["x402index_endpoint_deactivations_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("deactivations = %v, want 2", got)
	}
	if got := len(families["x402index_job_runs_total"].GetMetric()); got != 2 {
		t.Fatalf("expected ok and error series, got %d", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordDeactivations(1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := rec.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "x402index_endpoint_deactivations_total 1") {
		t.Fatalf("metric missing from body:\n%s", body)
	}
}
