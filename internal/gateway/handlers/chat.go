package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/chat"
	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/gateway/ratelimit"
	"github.com/factoidhq/factoid-gateway/internal/shared/config"
	"github.com/factoidhq/factoid-gateway/internal/shared/database"
)

type ChatHandler struct {
	client  *providers.Client
	limiter ratelimit.Limiter
	db      *database.DB
	cfg     *config.Config
}

func NewChatHandler(client *providers.Client, limiter ratelimit.Limiter, db *database.DB, cfg *config.Config) *ChatHandler {
	return &ChatHandler{
		client:  client,
		limiter: limiter,
		db:      db,
		cfg:     cfg,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	ModelKey string        `json:"model_key"`
}

// HandleChat handles POST /v1/factoids/{id}/chat. Each call runs one
// bounded agent turn over the supplied conversation history.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := h.db.GetFactoid(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "factoid not found")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "messages must not be empty")
		return
	}

	history := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
			history = append(history, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "message roles must be user or assistant")
			return
		}
	}

	clientHash := ClientHash(ctx)
	profile := Profile(ctx)
	limits := h.cfg.ProfileLimit(profile)
	if err := h.limiter.Check(ctx, "chat:"+clientHash, ratelimit.Config{
		Window: time.Duration(limits.WindowSeconds) * time.Second,
		Limit:  limits.PerWindow,
	}); err != nil {
		writeGenerationError(w, err)
		return
	}

	model := req.ModelKey
	if model == "" {
		model = providers.DefaultModel
	}

	registry := chat.NewRegistry(
		chat.NewWebSearchTool(record, h.cfg.TavilyAPIKey),
		chat.NewFactoidReportTool(record, h.client, model),
	)

	agent := chat.NewAgent(h.client, model, nil)
	transcript, err := agent.Run(ctx, history, chat.BuildSystemPrompt(record), registry, nil)
	truncated := false
	if err != nil {
		if !errors.Is(err, chat.ErrIterationCeiling) {
			log.Printf("Chat turn failed for factoid %s: %v", record.ID, err)
			writeError(w, http.StatusBadGateway, "chat_failed", "chat model invocation failed")
			return
		}
		truncated = true
	}

	reply := ""
	out := make([]chatMessage, 0, len(transcript))
	for _, m := range transcript {
		if m.Role == openai.ChatMessageRoleAssistant && m.Content != "" {
			reply = m.Content
		}
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"factoid_id": record.ID,
		"model_key":  model,
		"reply":      reply,
		"messages":   out,
		"truncated":  truncated,
	})
}
