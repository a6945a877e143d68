package channels

import (
	"strings"
	"testing"
)

func TestChunkMessage_ShortTextUnsplit(t *testing.T) {
	chunks := ChunkMessage("hello", 2000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestChunkMessage_EmptyText(t *testing.T) {
	if chunks := ChunkMessage("   ", 2000); chunks != nil {
		t.Errorf("chunks = %v, want nil", chunks)
	}
}

func TestChunkMessage_BreaksAtParagraph(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)
	chunks := ChunkMessage(text, 60)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "a") || !strings.HasPrefix(chunks[1], "b") {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestChunkMessage_RespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	for _, chunk := range ChunkMessage(text, 100) {
		if len(chunk) > 100 {
			t.Errorf("chunk length %d exceeds limit", len(chunk))
		}
	}
}

func TestChunkMessage_HardBreakWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := ChunkMessage(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != 250 {
		t.Errorf("content lost: total = %d", total)
	}
}
