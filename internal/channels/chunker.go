package channels

import (
	"strings"
	"unicode"
)

// DiscordMessageLimit is Discord's maximum message length.
const DiscordMessageLimit = 2000

// ChunkMessage splits text into pieces no longer than limit, breaking
// at natural boundaries where possible: paragraph breaks first, then
// single newlines, then sentence endings, then word boundaries, with a
// hard break as the last resort.
func ChunkMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = DiscordMessageLimit
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > limit {
		idx := breakPoint(remaining, limit)
		chunk := strings.TrimRightFunc(remaining[:idx], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeftFunc(remaining[idx:], unicode.IsSpace)
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func breakPoint(text string, limit int) int {
	window := text[:limit]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}
	for _, ending := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(window, ending); idx > 0 {
			return idx + 1
		}
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}
	return limit
}
