package engine

import (
	"strings"

	"github.com/brrr-bot/brrr/pkg/models"
)

// Trigger decides whether an inbound message is addressed to the bot.
type Trigger struct {
	selfID     string
	wakePhrase string
}

// NewTrigger builds a trigger filter. selfID is the bot's own user ID;
// wakePhrase is matched case-insensitively anywhere in the content and
// may be empty to disable wake-phrase activation.
func NewTrigger(selfID, wakePhrase string) *Trigger {
	return &Trigger{
		selfID:     selfID,
		wakePhrase: strings.ToLower(wakePhrase),
	}
}

// ShouldRespond reports whether the bot should handle msg. The bot's
// own messages never trigger, regardless of mentions or wake phrases.
// Other bots may trigger; their messages are tagged before reaching
// the model.
func (t *Trigger) ShouldRespond(msg *models.InboundMessage) bool {
	if msg.AuthorID == t.selfID {
		return false
	}
	if msg.MentionsSelf || msg.IsReplyToSelf {
		return true
	}
	if t.wakePhrase != "" && strings.Contains(strings.ToLower(msg.Content), t.wakePhrase) {
		return true
	}
	return false
}
