package service

import (
	"strings"
	"testing"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w"
	}
	return strings.Join(parts, " ")
}

func TestChunkText_SingleChunkWhenSmall(t *testing.T) {
	chunks := chunkText(words(100), 500, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if countWords(chunks[0]) != 100 {
		t.Fatalf("expected 100 words, got %d", countWords(chunks[0]))
	}
}

func TestChunkText_OverlappingWindows(t *testing.T) {
	// 1000 words, size 500, overlap 50 → windows start at 0, 450, 900
	chunks := chunkText(words(1000), 500, 50)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if countWords(chunks[0]) != 500 || countWords(chunks[1]) != 500 {
		t.Fatalf("expected full 500-word windows, got %d and %d", countWords(chunks[0]), countWords(chunks[1]))
	}
	if countWords(chunks[2]) != 100 {
		t.Fatalf("expected 100-word tail, got %d", countWords(chunks[2]))
	}
}

func TestChunkText_Empty(t *testing.T) {
	if chunks := chunkText("   \n\t ", 500, 50); chunks != nil {
		t.Fatalf("expected nil for blank input, got %v", chunks)
	}
}

func TestChunkText_BadOverlapFallsBack(t *testing.T) {
	// overlap >= size must not loop forever
	chunks := chunkText(words(300), 100, 100)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for _, c := range chunks {
		if countWords(c) > 100 {
			t.Fatalf("chunk exceeds window: %d words", countWords(c))
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"What is the capital of France and where is it located?", "en"},
		{"¿Cuál es la capital de Francia?", "es"},
		{"El contrato establece que los pagos se realizan por adelantado.", "es"},
		{"The quarterly report shows that revenue is up.", "en"},
		{"", "en"},
		{"12345 67890", "en"},
	}
	for _, tc := range cases {
		if got := detectLanguage(tc.text); got != tc.want {
			t.Errorf("detectLanguage(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
