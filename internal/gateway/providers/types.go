package providers

import (
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ToolInvocation is one structured tool request carried by a model turn.
// Arguments may be a JSON object or a JSON string wrapping an object,
// depending on the upstream model; DecodeArguments handles both.
type ToolInvocation struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// DecodeArguments unmarshals the invocation arguments into dst, first
// unwrapping a string-encoded object if the provider double-encoded it.
func (t ToolInvocation) DecodeArguments(dst interface{}) error {
	raw := t.Arguments
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			raw = json.RawMessage(inner)
		}
	}
	return json.Unmarshal(raw, dst)
}

// ModelResponse is the normalized shape of one chat completion: either
// plain text (Parts) or one or more tool invocations, plus token usage.
type ModelResponse struct {
	Model     string
	Parts     []string
	ToolCalls []ToolInvocation
	Usage     openai.Usage

	// Message is the raw assistant turn, kept so the chat agent can
	// append it to conversation history verbatim.
	Message openai.ChatCompletionMessage
}

// Content joins the content parts into a single string.
func (r *ModelResponse) Content() string {
	return strings.Join(r.Parts, "")
}

// HasToolCalls reports whether the model requested tool execution.
func (r *ModelResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// fromCompletion adapts a chat completion into the normalized response.
func fromCompletion(resp openai.ChatCompletionResponse) (*ModelResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	message := resp.Choices[0].Message

	out := &ModelResponse{
		Model:   resp.Model,
		Usage:   resp.Usage,
		Message: message,
	}

	if message.Content != "" {
		out.Parts = append(out.Parts, message.Content)
	}
	for _, part := range message.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			out.Parts = append(out.Parts, part.Text)
		}
	}

	for _, call := range message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolInvocation{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	return out, nil
}
