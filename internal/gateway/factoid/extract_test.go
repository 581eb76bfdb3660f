package factoid

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

func textResponse(parts ...string) *providers.ModelResponse {
	return &providers.ModelResponse{Parts: parts}
}

func toolResponse(name string, args string) *providers.ModelResponse {
	return &providers.ModelResponse{
		ToolCalls: []providers.ToolInvocation{
			{ID: "call_1", Name: name, Arguments: json.RawMessage(args)},
		},
	}
}

var wantPayload = models.FactoidPayload{
	Text:    "Bees can recognize human faces.",
	Subject: "Biology",
	Emoji:   "🐝",
}

func TestExtract_PlainJSON(t *testing.T) {
	resp := textResponse(`{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`)

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_FencedJSONBlock(t *testing.T) {
	resp := textResponse("```json\n{\"text\":\"Bees can recognize human faces.\",\"subject\":\"Biology\",\"emoji\":\"🐝\"}\n```")

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_FencedBlockWithoutAnnotation(t *testing.T) {
	resp := textResponse("Here you go:\n```\n{\"text\":\"Bees can recognize human faces.\",\"subject\":\"Biology\",\"emoji\":\"🐝\"}\n```\nEnjoy!")

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_MultiPartContentIsConcatenated(t *testing.T) {
	resp := textResponse(
		`{"text":"Bees can recognize`,
		` human faces.","subject":"Biology","emoji":"🐝"}`,
	)

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_ToolInvocation(t *testing.T) {
	resp := toolResponse(FactoidToolName, `{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`)

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_LegacyToolAlias(t *testing.T) {
	resp := toolResponse("create_factoid", `{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`)

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_StringEncodedToolArguments(t *testing.T) {
	// Some upstreams double-encode arguments as a JSON string.
	inner := `{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`
	quoted, _ := json.Marshal(inner)

	resp := toolResponse(FactoidToolName, string(quoted))

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_ThreeEncodingsAgree(t *testing.T) {
	responses := []*providers.ModelResponse{
		textResponse(`{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`),
		textResponse("```json\n{\"text\":\"Bees can recognize human faces.\",\"subject\":\"Biology\",\"emoji\":\"🐝\"}\n```"),
		toolResponse(FactoidToolName, `{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`),
	}

	for i, resp := range responses {
		got, err := Extract(resp)
		if err != nil {
			t.Fatalf("encoding %d: Extract returned error: %v", i, err)
		}
		if got != wantPayload {
			t.Fatalf("encoding %d: Extract = %+v, want %+v", i, got, wantPayload)
		}
	}
}

func TestExtract_NonJSONFreeTextFails(t *testing.T) {
	_, err := Extract(textResponse("Bees are great, trust me."))
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("expected ErrInvalidStructure, got %v", err)
	}
}

func TestExtract_MissingFieldsFail(t *testing.T) {
	cases := []string{
		`{"subject":"Biology","emoji":"🐝"}`,
		`{"text":"Fact","emoji":"🐝"}`,
		`{"text":"Fact","subject":"Biology"}`,
		`{"text":"   ","subject":"Biology","emoji":"🐝"}`,
	}

	for _, content := range cases {
		if _, err := Extract(textResponse(content)); !errors.Is(err, ErrInvalidStructure) {
			t.Errorf("content %s: expected ErrInvalidStructure, got %v", content, err)
		}
	}
}

func TestExtract_InvalidToolPayloadFallsThroughToContent(t *testing.T) {
	// Tool invocation missing the emoji, but the raw content is valid.
	resp := toolResponse(FactoidToolName, `{"text":"Fact","subject":"Science"}`)
	resp.Parts = []string{`{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`}

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract should fall through to the content path, got %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_InvalidToolPayloadAndInvalidContentFails(t *testing.T) {
	resp := toolResponse(FactoidToolName, `{"text":"Fact","subject":"Science"}`)
	resp.Parts = []string{"not json either"}

	if _, err := Extract(resp); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("expected ErrInvalidStructure, got %v", err)
	}
}

func TestExtract_UnknownToolNameIsIgnored(t *testing.T) {
	resp := toolResponse("web_search", `{"query":"bees"}`)
	resp.Parts = []string{`{"text":"Bees can recognize human faces.","subject":"Biology","emoji":"🐝"}`}

	got, err := Extract(resp)
	if err != nil {
		t.Fatalf("Extract should ignore unrelated tools, got %v", err)
	}
	if got != wantPayload {
		t.Fatalf("Extract = %+v, want %+v", got, wantPayload)
	}
}

func TestExtract_OversizedFieldsFail(t *testing.T) {
	longSubject := make([]byte, 300)
	for i := range longSubject {
		longSubject[i] = 'a'
	}

	content, _ := json.Marshal(models.FactoidPayload{
		Text:    "Fact",
		Subject: string(longSubject),
		Emoji:   "🐝",
	})

	if _, err := Extract(textResponse(string(content))); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("expected ErrInvalidStructure for oversized subject, got %v", err)
	}
}
