// Package chat implements the bounded tool-using conversation loop that
// powers factoid chat sessions.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/gateway/trace"
	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

// maxIterations bounds the model-tool loop so a model that perpetually
// requests tools cannot run forever.
const maxIterations = 6

// ErrIterationCeiling is returned when the model is still requesting
// tools after maxIterations round trips. It is a terminal failure for
// the conversation turn, distinct from a normal answer.
var ErrIterationCeiling = errors.New("conversation exceeded the tool-use iteration ceiling")

// ChatModel is the single provider operation the agent needs.
type ChatModel interface {
	Generate(ctx context.Context, req providers.GenerateRequest, hooks []trace.Hook) (*providers.ModelResponse, error)
}

// Agent drives a multi-turn conversation: invoke the model, execute any
// requested tools, feed results back, and stop on a plain answer.
type Agent struct {
	client      ChatModel
	model       string
	temperature *float32
}

// NewAgent creates an agent bound to one model key.
func NewAgent(client ChatModel, model string, temperature *float32) *Agent {
	return &Agent{client: client, model: model, temperature: temperature}
}

// Run executes the loop and returns the extended history. Tool failures
// become error-marked tool-result turns; only provider failures and the
// iteration ceiling abort the turn.
func (a *Agent) Run(ctx context.Context, history []openai.ChatCompletionMessage, systemPrompt string, registry *Registry, hooks []trace.Hook) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, len(history))
	copy(out, history)

	system := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	}

	for i := 0; i < maxIterations; i++ {
		messages := make([]openai.ChatCompletionMessage, 0, len(out)+1)
		messages = append(messages, system)
		messages = append(messages, out...)

		resp, err := a.client.Generate(ctx, providers.GenerateRequest{
			Model:       a.model,
			Messages:    messages,
			Temperature: a.temperature,
			Tools:       registry.Definitions(),
		}, hooks)
		if err != nil {
			return out, fmt.Errorf("chat model invocation failed: %w", err)
		}

		out = append(out, resp.Message)

		if !resp.HasToolCalls() {
			return out, nil
		}

		for _, call := range resp.ToolCalls {
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    registry.Execute(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}

	return out, ErrIterationCeiling
}

// BuildSystemPrompt renders the companion-agent system prompt for a
// factoid conversation.
func BuildSystemPrompt(factoid *models.Factoid) string {
	subject := factoid.Subject
	if subject == "" {
		subject = "Unknown subject"
	}
	emoji := factoid.Emoji
	if emoji == "" {
		emoji = "✨"
	}

	return fmt.Sprintf(
		"You are the Daily Factoids companion agent. Provide helpful,"+
			" accurate, and curious insights about the featured factoid.\n\n"+
			"Factoid subject: %s\n"+
			"Factoid emoji: %s\n"+
			"Factoid text: %s\n\n"+
			"Available tools:\n"+
			"1. web_search(query, max_results)\n"+
			"   - Use when you need external references, verification, or current context about the factoid.\n"+
			"   - Always pass a clear query; default to the factoid subject/text if the user does not specify.\n"+
			"2. make_factoid_report(directive)\n"+
			"   - Call only when the user explicitly requests a detailed report, write-up, markdown export, or shareable summary.\n"+
			"   - Never use this tool when the user wants a brief answer, citation, or link. Respond directly, optionally after web_search.\n\n"+
			"Guidelines:\n"+
			"- Ground answers in the factoid and reputable sources.\n"+
			"- Use web_search to locate citations, links, or when you need to double-check facts.\n"+
			"- Only call make_factoid_report when the user clearly requests a report or detailed write-up.\n"+
			"- Include disclaimers when information is uncertain or speculative.\n"+
			"- Keep tone friendly, concise, and curious.",
		subject, emoji, factoid.Text,
	)
}
