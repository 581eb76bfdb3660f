package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/factoidhq/factoid-gateway/internal/gateway/costguard"
	"github.com/factoidhq/factoid-gateway/internal/gateway/factoid"
	"github.com/factoidhq/factoid-gateway/internal/gateway/ratelimit"
	"github.com/factoidhq/factoid-gateway/internal/shared/config"
	"github.com/factoidhq/factoid-gateway/internal/shared/database"
	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

type FactoidHandler struct {
	generator *factoid.Generator
	limiter   ratelimit.Limiter
	db        *database.DB
	cfg       *config.Config
}

func NewFactoidHandler(generator *factoid.Generator, limiter ratelimit.Limiter, db *database.DB, cfg *config.Config) *FactoidHandler {
	return &FactoidHandler{
		generator: generator,
		limiter:   limiter,
		db:        db,
		cfg:       cfg,
	}
}

type generateRequest struct {
	Topic       string   `json:"topic"`
	ModelKey    string   `json:"model_key"`
	Temperature *float32 `json:"temperature"`
}

// HandleGenerate handles POST /v1/factoids/generate
func (h *FactoidHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}

	clientHash := ClientHash(ctx)
	profile := Profile(ctx)

	result, err := h.generator.Generate(ctx, factoid.GenerateParams{
		Topic:       req.Topic,
		ModelKey:    req.ModelKey,
		Temperature: req.Temperature,
		ClientHash:  clientHash,
		Profile:     profile,
		Source:      models.SourceManual,
	})
	if err != nil {
		writeGenerationError(w, err)
		return
	}

	h.setRateLimitHeaders(r, w, clientHash, profile)
	writeJSON(w, http.StatusCreated, result)
}

// HandleListFactoids handles GET /v1/factoids
func (h *FactoidHandler) HandleListFactoids(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	factoids, err := h.db.RecentFactoids(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list factoids: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list factoids")
		return
	}
	if factoids == nil {
		factoids = []models.Factoid{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"factoids": factoids})
}

// HandleGetFactoid handles GET /v1/factoids/{id}
func (h *FactoidHandler) HandleGetFactoid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.db.GetFactoid(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "factoid not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *FactoidHandler) setRateLimitHeaders(r *http.Request, w http.ResponseWriter, clientHash, profile string) {
	limits := h.cfg.ProfileLimit(profile)
	used := h.limiter.Count(r.Context(), "generate:"+clientHash)
	remaining := limits.PerWindow - used
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limits.PerWindow))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
}

// writeGenerationError maps pipeline failures to HTTP statuses. Throttle
// and budget rejections carry their retry and remaining-budget data;
// model failures stay generic.
func writeGenerationError(w http.ResponseWriter, err error) {
	var limitErr *ratelimit.LimitExceededError
	if errors.As(err, &limitErr) {
		retryAfter := int(math.Ceil(limitErr.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":               "rate_limited",
			"detail":              "rate limit exceeded, try again later",
			"retry_after_seconds": retryAfter,
		})
		return
	}

	var budgetErr *costguard.BudgetExceededError
	if errors.As(err, &budgetErr) {
		payload := map[string]interface{}{
			"error":  "budget_exhausted",
			"detail": "generation budget exhausted for this period",
		}
		if budgetErr.Remaining != nil {
			payload["remaining_usd"] = *budgetErr.Remaining
		}
		writeJSON(w, http.StatusPaymentRequired, payload)
		return
	}

	var genErr *factoid.GenerationError
	if errors.As(err, &genErr) {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  "generation_failed",
			"detail": genErr.Detail,
		})
		return
	}

	log.Printf("Unexpected generation error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}
