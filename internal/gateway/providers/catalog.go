package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const catalogFetchTimeout = 15 * time.Second

// ModelInfo describes one catalog entry. The go-openai model listing does
// not expose OpenRouter's supported_parameters field, so the catalog talks
// to the /models endpoint directly.
type ModelInfo struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Pricing             ModelPricing `json:"pricing"`
	ContextLength       int          `json:"context_length"`
	SupportedParameters []string     `json:"supported_parameters"`
}

// ModelPricing is OpenRouter's per-token pricing, serialized as strings.
type ModelPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// SupportsToolCalls reports whether the model declares structured tool
// invocation support.
func (m ModelInfo) SupportsToolCalls() bool {
	for _, param := range m.SupportedParameters {
		if param == "tools" {
			return true
		}
	}
	return false
}

// CostUSD computes the cost of a completion from token counts, or 0 if
// the catalog carries no usable pricing for the model.
func (m ModelInfo) CostUSD(promptTokens, completionTokens int) float64 {
	promptPrice, err1 := strconv.ParseFloat(m.Pricing.Prompt, 64)
	completionPrice, err2 := strconv.ParseFloat(m.Pricing.Completion, 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	return float64(promptTokens)*promptPrice + float64(completionTokens)*completionPrice
}

// CatalogStore caches fetched catalogs outside process memory so that a
// fleet of gateways shares one fetch per TTL.
type CatalogStore interface {
	GetCatalog(ctx context.Context, baseURL string) ([]ModelInfo, bool)
	SetCatalog(ctx context.Context, baseURL string, models []ModelInfo)
}

// Catalog fetches and caches the provider's model list with each model's
// declared capabilities.
type Catalog struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      CatalogStore // optional shared cache
	ttl        time.Duration

	mu        sync.RWMutex
	models    []ModelInfo
	byID      map[string]ModelInfo
	fetchedAt time.Time
}

// NewCatalog creates a catalog for one provider base URL. store may be nil.
func NewCatalog(apiKey, baseURL string, store CatalogStore, ttl time.Duration) *Catalog {
	return &Catalog{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: catalogFetchTimeout,
		},
		store: store,
		ttl:   ttl,
	}
}

// Models returns the catalog, fetching it on first use or after the TTL
// elapses. A fetch failure is returned to the caller but never cached.
func (c *Catalog) Models(ctx context.Context) ([]ModelInfo, error) {
	c.mu.RLock()
	if c.models != nil && time.Since(c.fetchedAt) < c.ttl {
		models := c.models
		c.mu.RUnlock()
		return models, nil
	}
	c.mu.RUnlock()

	if c.store != nil {
		if models, ok := c.store.GetCatalog(ctx, c.baseURL); ok && len(models) > 0 {
			c.populate(models)
			return models, nil
		}
	}

	models, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.populate(models)
	if c.store != nil {
		c.store.SetCatalog(ctx, c.baseURL, models)
	}
	return models, nil
}

// SupportsToolCalls reports the capability flag for one model. An
// unavailable catalog or unknown model means "capability unknown", which
// callers must treat as no tool support.
func (c *Catalog) SupportsToolCalls(ctx context.Context, model string) bool {
	info, ok := c.lookup(ctx, model)
	return ok && info.SupportsToolCalls()
}

// Lookup returns the catalog entry for a model key.
func (c *Catalog) Lookup(ctx context.Context, model string) (ModelInfo, bool) {
	return c.lookup(ctx, model)
}

func (c *Catalog) lookup(ctx context.Context, model string) (ModelInfo, bool) {
	if _, err := c.Models(ctx); err != nil {
		log.Printf("model catalog unavailable: %v", err)
		return ModelInfo{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.byID[model]
	return info, ok
}

func (c *Catalog) populate(models []ModelInfo) {
	byID := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}

	c.mu.Lock()
	c.models = models
	c.byID = byID
	c.fetchedAt = time.Now()
	c.mu.Unlock()
}

func (c *Catalog) fetch(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch failed (status %d): %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse catalog response: %w", err)
	}

	return payload.Data, nil
}
