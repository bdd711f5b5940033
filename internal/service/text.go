package service

import "strings"

// chunkText splits document text into overlapping word-window chunks.
// Token counts are approximated by word counts, which is close enough for
// sizing context windows.
func chunkText(content string, size, overlap int) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}

	if len(words) <= size {
		return []string{strings.Join(words, " ")}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// countWords approximates the token count of a chunk.
func countWords(s string) int {
	return len(strings.Fields(s))
}

var spanishMarkers = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "de": {}, "que": {}, "y": {},
	"en": {}, "un": {}, "una": {}, "es": {}, "por": {}, "con": {}, "para": {},
	"no": {}, "se": {}, "del": {}, "como": {}, "pero": {}, "su": {}, "al": {},
	"más": {}, "qué": {}, "cómo": {}, "cuál": {}, "dónde": {},
}

var englishMarkers = map[string]struct{}{
	"the": {}, "of": {}, "and": {}, "to": {}, "in": {}, "is": {}, "that": {},
	"for": {}, "it": {}, "with": {}, "as": {}, "was": {}, "on": {}, "are": {},
	"this": {}, "be": {}, "at": {}, "by": {}, "not": {}, "but": {}, "what": {},
	"how": {}, "which": {}, "where": {},
}

// detectLanguage classifies text as "en" or "es" by stopword frequency.
// Defaults to English when the signal is ambiguous or the text is empty.
func detectLanguage(text string) string {
	if strings.ContainsAny(text, "¿¡") {
		return "es"
	}

	var es, en int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if _, ok := spanishMarkers[w]; ok {
			es++
		}
		if _, ok := englishMarkers[w]; ok {
			en++
		}
	}

	if es > en {
		return "es"
	}
	return "en"
}
