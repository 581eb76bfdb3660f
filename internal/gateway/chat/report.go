package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

// FactoidReportTool expands the factoid into a short shareable markdown
// report via a secondary model call.
type FactoidReportTool struct {
	factoid     *models.Factoid
	client      ChatModel
	model       string
	temperature float32
}

// NewFactoidReportTool creates the report tool for one conversation.
func NewFactoidReportTool(factoid *models.Factoid, client ChatModel, model string) *FactoidReportTool {
	return &FactoidReportTool{
		factoid:     factoid,
		client:      client,
		model:       model,
		temperature: 0.6,
	}
}

func (t *FactoidReportTool) Name() string { return "make_factoid_report" }

func (t *FactoidReportTool) Description() string {
	return "Expand the core factoid into a concise markdown report with context," +
		" implications, and a short shareable summary. Use when the user asks" +
		" for more detail or something to share with others."
}

func (t *FactoidReportTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"directive": {"type": "string", "description": "Optional focus for the report"}
		}
	}`)
}

type reportArgs struct {
	Directive string `json:"directive"`
}

func (t *FactoidReportTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	if t.client == nil {
		return marshalResult(map[string]interface{}{
			"error":  "report_unavailable",
			"detail": "the language model is not configured",
		})
	}

	var parsed reportArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("invalid make_factoid_report arguments: %w", err)
		}
	}

	extra := parsed.Directive
	if extra == "" {
		extra = "Focus on why this factoid matters and who might find it useful."
	}

	subject := t.factoid.Subject
	if subject == "" {
		subject = "Unknown subject"
	}
	emoji := t.factoid.Emoji
	if emoji == "" {
		emoji = "✨"
	}

	temperature := t.temperature
	resp, err := t.client.Generate(ctx, providers.GenerateRequest{
		Model:       t.model,
		Temperature: &temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You write short markdown reports (2-3 paragraphs) that expand on a factoid." +
					" Provide background context, interesting implications, and include a bullet list" +
					" of shareable highlights at the end. Always stay grounded in well-known" +
					" information and mention if verification is required.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(
					"Factoid subject: %s\nFactoid emoji: %s\nFactoid text: %s\n\nWrite the expanded report. %s",
					subject, emoji, t.factoid.Text, extra),
			},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}

	return marshalResult(map[string]interface{}{
		"status":   "report_ready",
		"markdown": resp.Content(),
	})
}
