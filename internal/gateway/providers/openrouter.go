package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/trace"
)

// ErrEmptyResponse indicates the provider returned no choices.
var ErrEmptyResponse = errors.New("provider response carried no choices")

const invokeTimeout = 60 * time.Second

// GenerateRequest is one provider invocation.
type GenerateRequest struct {
	Model       string
	Messages    []openai.ChatCompletionMessage
	Temperature *float32
	Tools       []openai.Tool
}

// Client is a thin OpenRouter client. OpenRouter speaks the OpenAI chat
// wire format, so the go-openai client is pointed at its base URL.
type Client struct {
	api *openai.Client
}

// NewClient creates an OpenRouter client.
func NewClient(apiKey, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{api: openai.NewClientWithConfig(cfg)}
}

// Generate performs one chat completion and normalizes the result. The
// trace hooks are invoked around the call and never inspected.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, hooks []trace.Hook) (*ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	apiReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Tools:    req.Tools,
	}
	if req.Temperature != nil {
		apiReq.Temperature = *req.Temperature
	}

	for _, hook := range hooks {
		hook.BeforeInvoke(ctx, req.Model)
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)

	for _, hook := range hooks {
		hook.AfterInvoke(ctx, req.Model, err)
	}

	if err != nil {
		return nil, fmt.Errorf("OpenRouter API error: %w", err)
	}

	return fromCompletion(resp)
}
