package providers

import (
	"context"
	"errors"
	"testing"
)

type stubCatalog struct {
	models []ModelInfo
	err    error
	calls  int
}

func (s *stubCatalog) Models(ctx context.Context) ([]ModelInfo, error) {
	s.calls++
	return s.models, s.err
}

func toolModel(id string) ModelInfo {
	return ModelInfo{ID: id, SupportedParameters: []string{"tools"}}
}

func TestResolve_PreferredModelSkipsCatalog(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("should not be called")}
	resolver := NewResolver(catalog)

	got := resolver.Resolve(context.Background(), "anthropic/claude-sonnet-4")
	if got != "anthropic/claude-sonnet-4" {
		t.Fatalf("Resolve = %q, want the explicit preference", got)
	}
	if catalog.calls != 0 {
		t.Fatalf("catalog fetched %d times for an explicit preference, want 0", catalog.calls)
	}
}

func TestResolve_CatalogFailureFallsBackToDefault(t *testing.T) {
	resolver := NewResolver(&stubCatalog{err: errors.New("connection refused")})

	if got := resolver.Resolve(context.Background(), ""); got != DefaultModel {
		t.Fatalf("Resolve = %q, want default %q", got, DefaultModel)
	}
}

func TestResolve_EmptyCatalogFallsBackToDefault(t *testing.T) {
	resolver := NewResolver(&stubCatalog{})

	if got := resolver.Resolve(context.Background(), ""); got != DefaultModel {
		t.Fatalf("Resolve = %q, want default %q", got, DefaultModel)
	}
}

func TestResolve_FiltersToToolCapableModels(t *testing.T) {
	catalog := &stubCatalog{models: []ModelInfo{
		{ID: "openai/gpt-4o", SupportedParameters: []string{"temperature"}},
		toolModel("anthropic/claude-sonnet-4"),
	}}
	resolver := NewResolver(catalog)

	for i := 0; i < 10; i++ {
		if got := resolver.Resolve(context.Background(), ""); got != "anthropic/claude-sonnet-4" {
			t.Fatalf("Resolve = %q, want the only tool-capable model", got)
		}
	}
}

func TestResolve_PrefersPaidWellKnownProviders(t *testing.T) {
	catalog := &stubCatalog{models: []ModelInfo{
		toolModel("somelab/experiment-1"),
		toolModel("meta-llama/llama-3-70b:free"),
		toolModel("openai/gpt-4o"),
		toolModel("google/gemini-2.5-pro"),
	}}
	resolver := NewResolver(catalog)
	resolver.intn = func(n int) int { return 0 }

	got := resolver.Resolve(context.Background(), "")
	if got != "openai/gpt-4o" {
		t.Fatalf("Resolve = %q, want the first well-known paid model", got)
	}
}

func TestResolve_NoToolCapableModelsFallsBackToDefault(t *testing.T) {
	catalog := &stubCatalog{models: []ModelInfo{
		{ID: "openai/gpt-4o", SupportedParameters: []string{"temperature"}},
	}}
	resolver := NewResolver(catalog)

	if got := resolver.Resolve(context.Background(), ""); got != DefaultModel {
		t.Fatalf("Resolve = %q, want default %q", got, DefaultModel)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("status code 429, rate limit exceeded"), true},
		{errors.New("monthly quota exhausted"), true},
		{errors.New("model temporarily unavailable"), true},
		{errors.New("context deadline exceeded (Client.Timeout)"), true},
		{errors.New("upstream returned status 502"), true},
		{errors.New("invalid api key"), false},
		{nil, false},
	}

	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
