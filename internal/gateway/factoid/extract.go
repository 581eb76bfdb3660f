package factoid

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

const (
	maxSubjectLen = 255
	maxEmojiLen   = 16
)

// FactoidToolName is the structured-output tool the prompt asks models
// to call. createFactoidToolName is a legacy alias some models still emit.
const (
	FactoidToolName       = "make_factoid"
	createFactoidToolName = "create_factoid"
)

var fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// Extract normalizes a raw model response into a validated factoid
// payload. Tool invocations are preferred when present; a tool payload
// that fails validation falls through to the free-text path, where a
// decode or validation failure is terminal. Extract performs no I/O.
func Extract(resp *providers.ModelResponse) (models.FactoidPayload, error) {
	for _, call := range resp.ToolCalls {
		if call.Name != FactoidToolName && call.Name != createFactoidToolName {
			continue
		}

		var payload models.FactoidPayload
		if err := call.DecodeArguments(&payload); err != nil {
			continue
		}
		if err := validate(payload); err != nil {
			continue
		}
		return payload, nil
	}

	content := normalizeContent(resp.Content())

	var payload models.FactoidPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return models.FactoidPayload{}, fmt.Errorf("%w: not valid JSON: %v", ErrInvalidStructure, err)
	}
	if err := validate(payload); err != nil {
		return models.FactoidPayload{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	payload.Text = strings.TrimSpace(payload.Text)
	return payload, nil
}

// normalizeContent strips a fenced code block down to its inner text and
// trims surrounding whitespace.
func normalizeContent(content string) string {
	if match := fencedBlockRe.FindStringSubmatch(content); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(content)
}

func validate(payload models.FactoidPayload) error {
	if strings.TrimSpace(payload.Text) == "" {
		return fmt.Errorf("text must be non-empty")
	}
	if payload.Subject == "" {
		return fmt.Errorf("subject must be non-empty")
	}
	if utf8.RuneCountInString(payload.Subject) > maxSubjectLen {
		return fmt.Errorf("subject exceeds %d characters", maxSubjectLen)
	}
	if payload.Emoji == "" {
		return fmt.Errorf("emoji must be non-empty")
	}
	if utf8.RuneCountInString(payload.Emoji) > maxEmojiLen {
		return fmt.Errorf("emoji exceeds %d characters", maxEmojiLen)
	}
	return nil
}

// ToolDefinition is the make_factoid tool passed to tool-capable models.
func ToolDefinition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        FactoidToolName,
			Description: "Record the finished factoid. Call exactly once when the factoid is ready.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"text": {"type": "string", "description": "The factoid, one sentence"},
					"subject": {"type": "string", "description": "Category or topic of the factoid"},
					"emoji": {"type": "string", "description": "A single emoji representing the factoid"}
				},
				"required": ["text", "subject", "emoji"]
			}`),
		},
	}
}
