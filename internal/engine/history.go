package engine

import (
	"strings"

	"github.com/brrr-bot/brrr/pkg/models"
)

// historyCap limits context to the last two exchanges. Older messages
// pollute new conversations more than they help.
const historyCap = 4

// filterHistory sanitizes stored history before it reaches the model:
// empty messages, prior failure notices, and slash-command chatter are
// dropped, consecutive same-role messages collapse to the latest one,
// and the result is capped to the most recent exchanges.
func filterHistory(stored []*models.StoredMessage) []models.ChatMessage {
	var history []models.ChatMessage
	for _, msg := range stored {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if msg.Role == models.RoleAssistant && strings.Contains(content, "didn't quite get that") {
			continue
		}
		if strings.HasPrefix(content, "/") {
			continue
		}

		if len(history) > 0 && history[len(history)-1].Role == msg.Role {
			history[len(history)-1] = models.ChatMessage{Role: msg.Role, Content: content}
			continue
		}
		history = append(history, models.ChatMessage{Role: msg.Role, Content: content})
	}

	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	return history
}
