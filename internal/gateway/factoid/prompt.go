package factoid

import (
	"fmt"
	"strings"

	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

// BuildGenerationPrompt assembles the generation prompt: a bounded,
// most-recent-first sample of prior factoids to steer away from
// duplicates, the core instruction, guidelines, and either tool-call or
// plain-JSON output phrasing depending on the resolved model's
// capabilities.
func BuildGenerationPrompt(topic string, recent []models.Factoid, numExamples int, useFactoidTool bool) string {
	var parts []string

	if len(recent) > 0 {
		parts = append(parts,
			"Here are some recent examples of interesting factoids "+
				"(note the votes up and down counts which comes from user feedback):",
			"",
			"## Examples:",
		)
		for i, f := range recent {
			if i >= numExamples {
				break
			}
			parts = append(parts, fmt.Sprintf("- **%s**: %s (votes up: %d, votes down: %d)",
				f.Subject, f.Text, f.VotesUp, f.VotesDown))
		}
		parts = append(parts, "")
	}

	if topic != "" {
		parts = append(parts, fmt.Sprintf(
			"Please provide a new, concise, interesting fact about %s "+
				"in one sentence, along with its subject and an emoji that represents the fact.", topic))
	} else {
		parts = append(parts,
			"Please provide a new, concise, interesting fact in one sentence, "+
				"along with its subject and an emoji that represents the fact.")
	}
	parts = append(parts, "")

	parts = append(parts,
		"- Do not repeat any of the provided examples.",
		"- Avoid boilerplate phrases like 'Did you know'.",
		"- Keep it to one sentence with minimal commentary.",
		"- Avoid discussing what a fact 'showcases' or 'highlights'.",
		"- Avoid overused topics like jellyfish, octopus, or whales unless specifically requested.",
		"- Think about novel and intriguing facts that people might not know.",
		"- Make it genuinely surprising or mind-blowing.",
		"",
	)

	if useFactoidTool {
		parts = append(parts,
			"When you are satisfied, call the `make_factoid` tool once with arguments:",
			`{"text": "your factoid text", "subject": "category/topic", "emoji": "<some suitable emoji>"}`,
			"Do not include additional assistant text once you call the tool.",
		)
	} else {
		parts = append(parts,
			"Respond as JSON with exactly these keys:",
			`{"text": "your factoid text", "subject": "category/topic", "emoji": "<some suitable emoji>"}`,
		)
	}

	return strings.Join(parts, "\n")
}
