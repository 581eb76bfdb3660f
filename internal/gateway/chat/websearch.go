package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

const defaultTavilyEndpoint = "https://api.tavily.com/search"
const defaultSearchResults = 5

// WebSearchTool surfaces supporting references for the factoid via the
// Tavily search API. When no API key is configured it returns a
// structured "unavailable" payload so the model can answer without it.
type WebSearchTool struct {
	factoid    *models.Factoid
	apiKey     string
	endpoint   string
	maxResults int
	httpClient *http.Client
}

// NewWebSearchTool creates the search tool for one conversation.
func NewWebSearchTool(factoid *models.Factoid, tavilyAPIKey string) *WebSearchTool {
	return &WebSearchTool{
		factoid:    factoid,
		apiKey:     tavilyAPIKey,
		endpoint:   defaultTavilyEndpoint,
		maxResults: defaultSearchResults,
		httpClient: &http.Client{Timeout: toolTimeout},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Use this tool to find recent sources, background material, or verification" +
		" for the factoid. Provide the core subject or user question in the query."
}

func (t *WebSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Override the default search query (defaults to the factoid subject/text)"},
			"max_results": {"type": "integer", "minimum": 1, "maximum": 10, "description": "Maximum search results to return"}
		}
	}`)
}

type searchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

func (t *WebSearchTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	if t.apiKey == "" {
		return marshalResult(map[string]interface{}{
			"error":   "search_unavailable",
			"detail":  "web search is not configured",
			"results": []searchResult{},
		})
	}

	var parsed searchArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("invalid web_search arguments: %w", err)
		}
	}

	query := strings.TrimSpace(parsed.Query)
	if query == "" {
		query = strings.TrimSpace(t.factoid.Subject)
	}
	if query == "" {
		query = strings.TrimSpace(t.factoid.Text)
	}
	if query == "" {
		return marshalResult(map[string]interface{}{
			"warning": "no query provided and factoid has no subject/text",
			"query":   "",
			"results": []searchResult{},
		})
	}

	requested := parsed.MaxResults
	if requested <= 0 || requested > t.maxResults {
		requested = t.maxResults
	}

	results, err := t.search(ctx, query, requested)
	if err != nil {
		return "", err
	}

	return marshalResult(map[string]interface{}{
		"query":   query,
		"results": results,
		"source":  "tavily",
	})
}

func (t *WebSearchTool) search(ctx context.Context, query string, maxResults int) ([]searchResult, error) {
	reqBody, _ := json.Marshal(map[string]interface{}{
		"api_key":     t.apiKey,
		"query":       query,
		"max_results": maxResults,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	var results []searchResult
	for _, item := range payload.Results {
		if item.Title == "" && item.URL == "" {
			continue
		}
		results = append(results, searchResult{
			Title:   item.Title,
			Snippet: item.Content,
			URL:     item.URL,
		})
		if len(results) >= maxResults {
			break
		}
	}

	return results, nil
}

func marshalResult(payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
