package factoid

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode"

	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/costguard"
	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/gateway/ratelimit"
	"github.com/factoidhq/factoid-gateway/internal/gateway/trace"
	"github.com/factoidhq/factoid-gateway/internal/shared/config"
	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

const recentExampleFetch = 10
const recentExamplePromptCap = 5

// Store is the persistence collaborator: request lifecycle rows and
// durable factoid records. The gateway does not own schema or querying.
type Store interface {
	CreateGenerationRequest(ctx context.Context, clientHash string, source models.RequestSource, modelKey string, temperature *float32, expectedCost float64, retryOf *string) (*models.GenerationRequest, error)
	MarkRequestRunning(ctx context.Context, requestID string) error
	MarkRequestSucceeded(ctx context.Context, requestID string, actualCost float64, promptTokens, completionTokens int) error
	MarkRequestFailed(ctx context.Context, requestID string, detail string) error
	InsertFactoid(ctx context.Context, payload models.FactoidPayload, requestID string, modelKey string, cost float64) (*models.Factoid, error)
	RecentFactoids(ctx context.Context, limit int) ([]models.Factoid, error)
}

// ModelClient is the single provider operation the generator needs.
type ModelClient interface {
	Generate(ctx context.Context, req providers.GenerateRequest, hooks []trace.Hook) (*providers.ModelResponse, error)
}

// ModelCatalog exposes capability and pricing lookups.
type ModelCatalog interface {
	SupportsToolCalls(ctx context.Context, model string) bool
	Lookup(ctx context.Context, model string) (providers.ModelInfo, bool)
}

// ModelResolver picks a model key for a request.
type ModelResolver interface {
	Resolve(ctx context.Context, preferred string) string
}

// Generator orchestrates one factoid generation: rate check, budget
// check, model resolution, prompt build, invocation with one fallback
// retry on throttling, extraction, persistence, spend recording.
type Generator struct {
	limiter  ratelimit.Limiter
	guard    costguard.Guard
	resolver ModelResolver
	catalog  ModelCatalog
	client   ModelClient
	store    Store
	cfg      *config.Config
}

// NewGenerator wires the orchestrator from its collaborators.
func NewGenerator(limiter ratelimit.Limiter, guard costguard.Guard, resolver ModelResolver, catalog ModelCatalog, client ModelClient, store Store, cfg *config.Config) *Generator {
	return &Generator{
		limiter:  limiter,
		guard:    guard,
		resolver: resolver,
		catalog:  catalog,
		client:   client,
		store:    store,
		cfg:      cfg,
	}
}

// GenerateParams describes one generation attempt.
type GenerateParams struct {
	Topic       string
	ModelKey    string // optional explicit model; empty means resolve
	Temperature *float32
	ClientHash  string
	Profile     string
	Source      models.RequestSource
	Hooks       []trace.Hook
}

// Generate runs the full pipeline. Rate and budget rejections surface as
// *ratelimit.LimitExceededError and *costguard.BudgetExceededError
// without creating a request row; later failures are recorded on the row
// and surface as *GenerationError.
func (g *Generator) Generate(ctx context.Context, params GenerateParams) (*models.Factoid, error) {
	profile := params.Profile
	if profile == "" {
		profile = "anonymous"
	}
	source := params.Source
	if source == "" {
		source = models.SourceManual
	}

	limits := g.cfg.ProfileLimit(profile)
	bucket := fmt.Sprintf("generate:%s", params.ClientHash)
	if err := g.limiter.Check(ctx, bucket, ratelimit.Config{
		Window: time.Duration(limits.WindowSeconds) * time.Second,
		Limit:  limits.PerWindow,
	}); err != nil {
		return nil, err
	}

	decision := g.guard.Evaluate(ctx, profile, g.cfg.ExpectedCostUSD)
	if !decision.Allowed {
		return nil, &costguard.BudgetExceededError{Remaining: decision.Remaining}
	}

	resolved := g.resolver.Resolve(ctx, params.ModelKey)

	request, err := g.store.CreateGenerationRequest(ctx, params.ClientHash, source, resolved, params.Temperature, g.cfg.ExpectedCostUSD, nil)
	if err != nil {
		return nil, &GenerationError{Detail: "failed to record generation request", cause: err}
	}

	if g.cfg.OpenRouterAPIKey == "" {
		return g.stubFactoid(ctx, params.Topic, request)
	}

	if err := g.store.MarkRequestRunning(ctx, request.ID); err != nil {
		log.Printf("failed to mark request %s running: %v", request.ID, err)
	}

	recent, err := g.store.RecentFactoids(ctx, recentExampleFetch)
	if err != nil {
		log.Printf("failed to load recent factoids for prompt: %v", err)
		recent = nil
	}

	resp, err := g.invoke(ctx, params, resolved, recent)
	if err != nil {
		if !providers.IsRetryable(err) {
			g.fail(ctx, request.ID, err)
			return nil, &GenerationError{Detail: "factoid generation failed", cause: err}
		}

		// One retry against the fixed stable model; the retry gets its
		// own request row linked back to the throttled attempt.
		g.fail(ctx, request.ID, err)
		retry, createErr := g.store.CreateGenerationRequest(ctx, params.ClientHash, source, providers.StableFallbackModel, params.Temperature, g.cfg.ExpectedCostUSD, &request.ID)
		if createErr != nil {
			return nil, &GenerationError{Detail: "failed to record generation request", cause: createErr}
		}
		if err := g.store.MarkRequestRunning(ctx, retry.ID); err != nil {
			log.Printf("failed to mark request %s running: %v", retry.ID, err)
		}

		request = retry
		resolved = providers.StableFallbackModel
		resp, err = g.invoke(ctx, params, resolved, recent)
		if err != nil {
			g.fail(ctx, request.ID, err)
			return nil, &GenerationError{Detail: "factoid generation failed", cause: err}
		}
	}

	payload, err := Extract(resp)
	if err != nil {
		g.fail(ctx, request.ID, err)
		return nil, &GenerationError{Detail: "factoid generation failed", cause: err}
	}

	actualCost := g.cfg.ExpectedCostUSD
	if info, ok := g.catalog.Lookup(ctx, resolved); ok {
		if priced := info.CostUSD(resp.Usage.PromptTokens, resp.Usage.CompletionTokens); priced > 0 {
			actualCost = priced
		}
	}

	record, err := g.store.InsertFactoid(ctx, payload, request.ID, resolved, actualCost)
	if err != nil {
		g.fail(ctx, request.ID, err)
		return nil, &GenerationError{Detail: "failed to persist factoid", cause: err}
	}

	if err := g.store.MarkRequestSucceeded(ctx, request.ID, actualCost, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); err != nil {
		log.Printf("failed to mark request %s succeeded: %v", request.ID, err)
	}

	g.guard.Record(ctx, profile, actualCost)
	return record, nil
}

// invoke builds the prompt for the given model and performs one provider
// call. Tool-call phrasing and the make_factoid tool are included only
// when the model declares tool support.
func (g *Generator) invoke(ctx context.Context, params GenerateParams, model string, recent []models.Factoid) (*providers.ModelResponse, error) {
	useTool := g.catalog.SupportsToolCalls(ctx, model)
	prompt := BuildGenerationPrompt(params.Topic, recent, recentExamplePromptCap, useTool)

	req := providers.GenerateRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: params.Temperature,
	}
	if useTool {
		req.Tools = []openai.Tool{ToolDefinition()}
	}

	return g.client.Generate(ctx, req, params.Hooks)
}

// fail records a terminal failure on the request row. The stored detail
// is truncated so enormous provider errors never bloat the table.
func (g *Generator) fail(ctx context.Context, requestID string, cause error) {
	detail := cause.Error()
	if len(detail) > 1000 {
		detail = detail[:1000]
	}
	if err := g.store.MarkRequestFailed(ctx, requestID, detail); err != nil {
		log.Printf("failed to mark request %s failed: %v", requestID, err)
	}
}

// stubFactoid handles keyless local development: a canned factoid with a
// zero-cost succeeded request, so the full pipeline works offline.
func (g *Generator) stubFactoid(ctx context.Context, topic string, request *models.GenerationRequest) (*models.Factoid, error) {
	subject := "Curiosity"
	if topic != "" {
		runes := []rune(topic)
		runes[0] = unicode.ToUpper(runes[0])
		if len(runes) > maxSubjectLen {
			runes = runes[:maxSubjectLen]
		}
		subject = string(runes)
	}

	payload := models.FactoidPayload{
		Text:    fmt.Sprintf("Did you know that %s can be fascinating even without an API key?", orDefault(topic, "everything")),
		Subject: subject,
		Emoji:   "🤖",
	}

	record, err := g.store.InsertFactoid(ctx, payload, request.ID, "stub", 0)
	if err != nil {
		g.fail(ctx, request.ID, err)
		return nil, &GenerationError{Detail: "failed to persist factoid", cause: err}
	}
	if err := g.store.MarkRequestSucceeded(ctx, request.ID, 0, 0, 0); err != nil {
		log.Printf("failed to mark request %s succeeded: %v", request.ID, err)
	}
	return record, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
