package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
)

const toolTimeout = 30 * time.Second

// ToolExecutionError describes one failed tool invocation. It is
// recovered inside the agent loop and surfaced to the model as a
// tool-result turn, never propagated to the caller.
type ToolExecutionError struct {
	Tool   string
	Detail string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Detail)
}

// Tool is one callable the agent exposes to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema for the tool's arguments, advertised to the model.
	Parameters() json.RawMessage
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the tools available to one conversation.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if _, exists := r.tools[tool.Name()]; exists {
			continue
		}
		r.tools[tool.Name()] = tool
		r.order = append(r.order, tool.Name())
	}
	return r
}

// Definitions returns the tool list in provider wire shape.
func (r *Registry) Definitions() []openai.Tool {
	var defs []openai.Tool
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs one invocation and always returns tool-result content:
// unregistered tools and tool failures produce a structured error payload
// the model can react to instead of aborting the conversation.
func (r *Registry) Execute(ctx context.Context, call providers.ToolInvocation) string {
	tool, ok := r.tools[call.Name]
	if !ok {
		return errorPayload(call.Name, "unknown tool")
	}

	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	result, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		toolErr := &ToolExecutionError{Tool: call.Name, Detail: err.Error()}
		log.Printf("chat tool execution failed: %v", toolErr)
		return errorPayload(call.Name, toolErr.Detail)
	}
	return result
}

func errorPayload(tool, detail string) string {
	payload, _ := json.Marshal(map[string]string{
		"error":  "tool_failed",
		"tool":   tool,
		"detail": detail,
	})
	return string(payload)
}
