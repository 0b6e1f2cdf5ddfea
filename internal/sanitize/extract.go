package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractAnswer returns the text following the last occurrence of separator,
// trimmed. If separator is empty or absent the whole of raw is returned, trimmed.
func ExtractAnswer(raw, separator string) string {
	if separator == "" {
		return trimSpace(raw)
	}
	idx := strings.LastIndex(raw, separator)
	if idx < 0 {
		return trimSpace(raw)
	}
	return trimSpace(raw[idx+len(separator):])
}

// SplitSentences cuts text after every '.', '!' or '?' that is followed by
// whitespace. The whitespace run is dropped. Whitespace is Unicode white space
// plus the ASCII separators U+001C to U+001F.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !isTerminal(r) {
			continue
		}

		j := i
		for j < len(text) {
			ws, n := utf8.DecodeRuneInString(text[j:])
			if !isSpace(ws) {
				break
			}
			j += n
		}
		if j == i {
			continue
		}

		sentences = append(sentences, text[start:i])
		start, i = j, j
	}
	return append(sentences, text[start:])
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}
