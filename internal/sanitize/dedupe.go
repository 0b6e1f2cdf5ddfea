package sanitize

import (
	"strings"
)

// DeduplicateSentences collapses runs of identical adjacent sentences into one.
// Repeats that are not adjacent are kept. Sentences are rejoined with a single
// space.
//
// Abbreviations such as "Dr. Smith" are split like any other sentence end, and
// text without terminal punctuation is a single sentence.
func DeduplicateSentences(text string) string {
	text = trimSpace(text)
	if text == "" {
		return ""
	}
	return trimSpace(strings.Join(collapse(SplitSentences(text)), " "))
}

func collapse(sentences []string) []string {
	out := make([]string, 0, len(sentences))
	for i, s := range sentences {
		if i > 0 && s == sentences[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}
