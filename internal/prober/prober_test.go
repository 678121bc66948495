package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"x402index/internal/storage"
)

func target(id, url string) storage.ProbeTarget {
	return storage.ProbeTarget{ID: id, ResourceURL: url, IsActive: true}
}

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbePaymentRequiredIsSuccess(t *testing.T) {
	var method, agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		agent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	p := New(Options{}, zerolog.Nop())
	ping := p.Probe(context.Background(), target("ep-1", srv.URL+"/paid"))

	if !ping.Success {
		t.Fatalf("expected 402 to count as success")
	}
	if ping.ErrorMessage != nil {
		t.Fatalf("expected no error message, got %q", *ping.ErrorMessage)
	}
	if ping.StatusCode == nil || *ping.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %v", ping.StatusCode)
	}
	if ping.LatencyMs == nil {
		t.Fatalf("latency must always be recorded")
	}
	if ping.EndpointID != "ep-1" || ping.ID == "" {
		t.Fatalf("unexpected ids %+v", ping)
	}
	if method != http.MethodHead {
		t.Fatalf("expected HEAD, got %s", method)
	}
	if agent != DefaultUserAgent {
		t.Fatalf("unexpected user agent %q", agent)
	}
}

func TestProbeStatusClassification(t *testing.T) {
	cases := []struct {
		status  int
		success bool
		message string
	}{
		{http.StatusOK, true, ""},
		{http.StatusNoContent, true, ""},
		{http.StatusNotModified, true, ""},
		{http.StatusUnauthorized, false, "HTTP 401"},
		{http.StatusNotFound, false, "HTTP 404"},
		{http.StatusMethodNotAllowed, false, "HTTP 405"},
		{http.StatusBadGateway, false, "HTTP 502"},
	}

	p := New(Options{}, zerolog.Nop())
	for _, tc := range cases {
		srv := statusServer(t, tc.status)
		ping := p.Probe(context.Background(), target("ep", srv.URL))

		if ping.Success != tc.success {
			t.Fatalf("status %d: success = %v, want %v", tc.status, ping.Success, tc.success)
		}
		if tc.message == "" && ping.ErrorMessage != nil {
			t.Fatalf("status %d: unexpected message %q", tc.status, *ping.ErrorMessage)
		}
		if tc.message != "" && (ping.ErrorMessage == nil || *ping.ErrorMessage != tc.message) {
			t.Fatalf("status %d: message = %v, want %q", tc.status, ping.ErrorMessage, tc.message)
		}
	}
}

func TestProbeDoesNotFollowRedirects(t *testing.T) {
	var followed atomic.Bool
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		followed.Store(true)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer final.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirect.Close()

	ping := New(Options{}, zerolog.Nop()).Probe(context.Background(), target("ep", redirect.URL))

	if !ping.Success || ping.StatusCode == nil || *ping.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 success, got %+v", ping)
	}
	if followed.Load() {
		t.Fatalf("redirect must not be followed")
	}
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := New(Options{Timeout: 50 * time.Millisecond}, zerolog.Nop())
	ping := p.Probe(context.Background(), target("ep", srv.URL))

	if ping.Success {
		t.Fatalf("expected failure")
	}
	if ping.ErrorMessage == nil || *ping.ErrorMessage != "Timeout" {
		t.Fatalf("expected Timeout, got %v", ping.ErrorMessage)
	}
	if ping.StatusCode != nil {
		t.Fatalf("expected nil status on timeout")
	}
	if ping.LatencyMs == nil || *ping.LatencyMs < 40 {
		t.Fatalf("expected latency near the timeout, got %v", ping.LatencyMs)
	}
}

func TestProbeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	ping := New(Options{}, zerolog.Nop()).Probe(context.Background(), target("ep", url))

	if ping.Success {
		t.Fatalf("expected failure")
	}
	if ping.ErrorMessage == nil || *ping.ErrorMessage == "" || *ping.ErrorMessage == "Timeout" {
		t.Fatalf("expected transport error message, got %v", ping.ErrorMessage)
	}
	if ping.LatencyMs == nil {
		t.Fatalf("latency must always be recorded")
	}
}

func TestProbeBlockPrivateNetworks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Options{BlockPrivateNetworks: true}, zerolog.Nop())
	ping := p.Probe(context.Background(), target("ep", srv.URL))

	if ping.Success {
		t.Fatalf("loopback target must be refused")
	}
	if ping.ErrorMessage == nil {
		t.Fatalf("expected an error message")
	}
	if hits.Load() != 0 {
		t.Fatalf("request reached the loopback server")
	}
}

func TestProbeBatchOrderAndIsolation(t *testing.T) {
	ok := statusServer(t, http.StatusOK)
	paid := statusServer(t, http.StatusPaymentRequired)
	broken := statusServer(t, http.StatusInternalServerError)

	targets := []storage.ProbeTarget{
		target("a", ok.URL),
		target("b", "http://%zz"),
		target("c", broken.URL),
		target("d", paid.URL),
	}

	outcomes := New(Options{Concurrency: 2}, zerolog.Nop()).ProbeBatch(context.Background(), targets)

	if len(outcomes) != len(targets) {
		t.Fatalf("expected %d outcomes, got %d", len(targets), len(outcomes))
	}
	want := []bool{true, false, false, true}
	for i, o := range outcomes {
		if o.Target.ID != targets[i].ID || o.Ping.EndpointID != targets[i].ID {
			t.Fatalf("outcome %d out of order: %+v", i, o)
		}
		if o.Ping.Success != want[i] {
			t.Fatalf("outcome %d success = %v, want %v", i, o.Ping.Success, want[i])
		}
	}
}
