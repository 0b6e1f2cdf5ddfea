package sanitize

import (
	"strings"

	"github.com/modfin/henry/slicez"
)

// Detector decides whether a cleaned answer has drifted off topic.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Name identifies the detector in logs.
	Name() string

	// Detect returns the evidence it found and whether the text should be replaced.
	Detect(text string) (matches []string, flagged bool)
}

// KeywordDetector flags text containing more than Threshold distinct keywords.
type KeywordDetector struct {
	Keywords  []string
	Threshold int
}

func (d KeywordDetector) Name() string {
	return "keyword_detector"
}

func (d KeywordDetector) Detect(text string) ([]string, bool) {
	matches := MatchKeywords(text, d.Keywords)
	return matches, len(matches) > d.Threshold
}

// MatchKeywords returns the distinct lower-cased keywords that occur as
// substrings of text, ignoring case. Empty keywords never match.
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)

	keys := slicez.Uniq(slicez.Map(keywords, strings.ToLower))
	return slicez.Filter(keys, func(k string) bool {
		return k != "" && strings.Contains(lower, k)
	})
}

// IsHallucinated reports whether more than threshold distinct keywords occur in text.
func IsHallucinated(text string, keywords []string, threshold int) bool {
	_, flagged := KeywordDetector{Keywords: keywords, Threshold: threshold}.Detect(text)
	return flagged
}
