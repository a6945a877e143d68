package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// memoryEntry is one fact the model asked to remember, parsed from the
// trailing JSON block of a response.
type memoryEntry struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Context string `json:"context"`
}

// extractMemories splits a model response into the visible reply and
// any memory entries encoded in a trailing ```json block. Responses
// without a well-formed block pass through untouched.
func extractMemories(content string) (clean string, memories []memoryEntry) {
	clean = content
	if !strings.Contains(content, "```json") || !strings.Contains(content, `"memories"`) {
		return clean, nil
	}

	start := strings.LastIndex(content, "```json")
	end := strings.Index(content[start+7:], "```")
	if end == -1 {
		return clean, nil
	}
	blob := strings.TrimSpace(content[start+7 : start+7+end])

	var parsed struct {
		Memories []memoryEntry `json:"memories"`
	}
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		return clean, nil
	}

	clean = strings.TrimSpace(content[:start])
	return clean, parsed.Memories
}

// ackForMemories synthesizes a reply when the model sent only a memory
// block with no visible text, so the chat never goes silent.
func ackForMemories(memories []memoryEntry) string {
	var keys []string
	for _, m := range memories {
		if m.Key != "" {
			keys = append(keys, m.Key)
		}
		if len(keys) == 5 {
			break
		}
	}
	if len(keys) == 0 {
		return "Got it, I'll remember that."
	}
	return fmt.Sprintf("Got it, I'll remember that (%s).", strings.Join(keys, ", "))
}
