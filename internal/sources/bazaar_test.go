package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastClient() ClientOptions {
	return ClientOptions{
		Timeout: time.Second,
		Retry:   RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func bazaarItem(i int) map[string]any {
	return map[string]any{
		"resource":    fmt.Sprintf("https://api.example.com/r/%d", i),
		"description": fmt.Sprintf("resource %d", i),
		"accepts": []map[string]any{{
			"scheme":            "exact",
			"network":           "eip155:8453",
			"maxAmountRequired": "10000",
			"payTo":             "0x52908400098527886e0f7030069857d2e4169ee7",
		}},
	}
}

func TestBazaarPaginatesUntilTotal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items := []map[string]any{}
		for i := offset; i < offset+limit && i < 5; i++ {
			items = append(items, bazaarItem(i))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":      items,
			"pagination": map[string]int{"offset": offset, "limit": limit, "total": 5},
		})
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, PageSize: 2, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eps) != 5 {
		t.Fatalf("expected 5 endpoints, got %d", len(eps))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 page requests, got %d", got)
	}

	ep := eps[0]
	if ep.Network == nil || *ep.Network != "base" {
		t.Fatalf("network should be normalised to base: %v", ep.Network)
	}
	if ep.PriceMicroUSDC == nil || *ep.PriceMicroUSDC != 10000 {
		t.Fatalf("price should parse to 10000: %v", ep.PriceMicroUSDC)
	}
	if ep.PayToAddress == nil || *ep.PayToAddress != "0x52908400098527886E0F7030069857D2E4169EE7" {
		t.Fatalf("payee should be checksummed: %v", ep.PayToAddress)
	}
	if ep.Source != "bazaar" || len(ep.RawData) == 0 {
		t.Fatalf("provenance missing: %+v", ep)
	}
}

func TestBazaarRespectsMaxPages(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode([]map[string]any{bazaarItem(int(n) * 10), bazaarItem(int(n)*10 + 1)})
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, PageSize: 2, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eps) != 6 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 pages / 6 endpoints, got %d calls / %d endpoints", calls, len(eps))
	}
}

func TestBazaarRateLimitReturnsPartial(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{"resources": []map[string]any{bazaarItem(1), bazaarItem(2)}})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, PageSize: 2, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 5)
	if err != nil {
		t.Fatalf("rate limiting must not fail the fetch: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected the 2 endpoints of the first page, got %d", len(eps))
	}
	// one successful page plus three rate-limited attempts
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Fatalf("expected 4 requests, got %d", got)
	}
}

func TestBazaarRecoversAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{bazaarItem(1)})
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, PageSize: 2, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("expected 1 endpoint after retry, got %d", len(eps))
	}
}

func TestBazaarServerErrorKeepsPreviousPages(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_ = json.NewEncoder(w).Encode([]map[string]any{bazaarItem(1), bazaarItem(2)})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, PageSize: 2, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 5)
	if err == nil {
		t.Fatal("HTTP 500 should surface an error")
	}
	if len(eps) != 2 {
		t.Fatalf("previous pages must be kept, got %d", len(eps))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("server errors must not be retried, got %d requests", got)
	}
}

func TestBazaarUnknownShapeIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 3)
	if err != nil || len(eps) != 0 {
		t.Fatalf("unknown shape should yield empty result, got %d, %v", len(eps), err)
	}
}

func TestBazaarMissingPriceIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"url": "https://a.example.com/x", "paymentDetails": map[string]any{"maxAmountRequired": "n/a"}},
			{"url": "https://b.example.com/y"},
		})
	}))
	defer srv.Close()

	b := NewBazaar(BazaarOptions{BaseURL: srv.URL, PageSize: 10, Client: fastClient()}, zerolog.Nop())
	eps, err := b.FetchEndpoints(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ep := range eps {
		if ep.PriceMicroUSDC != nil {
			t.Fatalf("non-numeric or absent price must be nil, got %d", *ep.PriceMicroUSDC)
		}
	}
}
