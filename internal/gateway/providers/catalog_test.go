package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func catalogServer(t *testing.T, payload string, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if hits != nil {
			*hits++
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
}

const catalogPayload = `{
	"data": [
		{"id": "openai/gpt-4o", "name": "GPT-4o", "pricing": {"prompt": "0.0000025", "completion": "0.00001"}, "supported_parameters": ["tools", "temperature"]},
		{"id": "meta-llama/llama-3-8b:free", "name": "Llama 3 8B", "pricing": {"prompt": "0", "completion": "0"}, "supported_parameters": ["temperature"]}
	]
}`

func TestCatalog_FetchParsesCapabilities(t *testing.T) {
	server := catalogServer(t, catalogPayload, nil)
	defer server.Close()

	catalog := NewCatalog("test-key", server.URL, nil, time.Hour)

	models, err := catalog.Models(context.Background())
	if err != nil {
		t.Fatalf("Models returned error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}

	if !catalog.SupportsToolCalls(context.Background(), "openai/gpt-4o") {
		t.Fatal("gpt-4o should support tool calls")
	}
	if catalog.SupportsToolCalls(context.Background(), "meta-llama/llama-3-8b:free") {
		t.Fatal("llama free tier should not support tool calls")
	}
	if catalog.SupportsToolCalls(context.Background(), "unknown/model") {
		t.Fatal("unknown model must read as no tool support")
	}
}

func TestCatalog_CachesWithinTTL(t *testing.T) {
	hits := 0
	server := catalogServer(t, catalogPayload, &hits)
	defer server.Close()

	catalog := NewCatalog("test-key", server.URL, nil, time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := catalog.Models(context.Background()); err != nil {
			t.Fatalf("fetch %d failed: %v", i+1, err)
		}
	}

	if hits != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", hits)
	}
}

func TestCatalog_FetchFailureIsReturnedNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	catalog := NewCatalog("test-key", server.URL, nil, time.Hour)

	if _, err := catalog.Models(context.Background()); err == nil {
		t.Fatal("expected an error from a failing catalog endpoint")
	}

	// Capability lookup must degrade to "no support", not panic.
	if catalog.SupportsToolCalls(context.Background(), "openai/gpt-4o") {
		t.Fatal("capability must read false when the catalog is unavailable")
	}
}

func TestModelInfo_CostUSD(t *testing.T) {
	info := ModelInfo{
		Pricing: ModelPricing{Prompt: "0.000002", Completion: "0.000006"},
	}

	got := info.CostUSD(1000, 500)
	want := 1000*0.000002 + 500*0.000006
	if diff := got - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("CostUSD = %v, want %v", got, want)
	}

	unpriced := ModelInfo{}
	if unpriced.CostUSD(1000, 500) != 0 {
		t.Fatal("missing pricing should cost out at 0")
	}
}
