package providers

import (
	"context"
	"math/rand"
	"strings"
)

const (
	// DefaultModel is returned when the catalog is unavailable or empty.
	DefaultModel = "openai/gpt-4o-mini"

	// StableFallbackModel is the fixed second model tried once when the
	// primary invocation fails with a throttle-shaped error.
	StableFallbackModel = "openai/gpt-4o"
)

// wellKnownPrefixes marks providers whose paid models throttle rarely
// enough to prefer for unpinned requests.
var wellKnownPrefixes = []string{"openai/", "anthropic/", "google/", "mistralai/"}

type catalogLister interface {
	Models(ctx context.Context) ([]ModelInfo, error)
}

// Resolver picks a model key for a request: explicit preference wins,
// then a capability-aware random choice, then a static default.
type Resolver struct {
	catalog catalogLister
	intn    func(n int) int
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(catalog catalogLister) *Resolver {
	return &Resolver{
		catalog: catalog,
		intn:    rand.Intn,
	}
}

// Resolve returns the model key to use. A non-empty preferred model is
// returned unchanged without touching the catalog.
func (r *Resolver) Resolve(ctx context.Context, preferred string) string {
	if preferred != "" {
		return preferred
	}

	models, err := r.catalog.Models(ctx)
	if err != nil || len(models) == 0 {
		return DefaultModel
	}

	var capable []ModelInfo
	for _, m := range models {
		if m.SupportsToolCalls() {
			capable = append(capable, m)
		}
	}
	if len(capable) == 0 {
		return DefaultModel
	}

	pool := capable
	var paid []ModelInfo
	for _, m := range capable {
		if isWellKnownPaid(m.ID) {
			paid = append(paid, m)
		}
	}
	if len(paid) > 0 {
		pool = paid
	}

	return pool[r.intn(len(pool))].ID
}

func isWellKnownPaid(id string) bool {
	if strings.Contains(id, ":free") {
		return false
	}
	for _, prefix := range wellKnownPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether an invocation error looks like throttling
// or a temporary provider outage, warranting one retry on the stable
// fallback model. Anything else is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "temporarily") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "status 5")
}
