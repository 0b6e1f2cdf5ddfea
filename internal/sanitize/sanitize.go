// Package sanitize turns raw model output into an answer that is safe to show:
// the prompt echo is cut at the separator token, repeated sentences are
// collapsed, and answers that drift off topic are replaced by a fallback.
//
// Everything in the package is pure. A Sanitizer holds no mutable state and can
// be shared between goroutines.
package sanitize

import "github.com/disintegrator/inv"

// Result is the outcome of one pass through the pipeline, with the
// intermediate stages kept for logging.
type Result struct {
	Answer       string   `json:"answer"`
	Extracted    string   `json:"extracted"`
	Deduplicated string   `json:"deduplicated"`
	Flagged      bool     `json:"flagged"`
	Matches      []string `json:"matches"`
	Detector     string   `json:"detector"`
}

type Sanitizer struct {
	separator string
	fallback  string
	detector  Detector
}

type Option func(*Sanitizer)

// WithDetector replaces the keyword heuristic with another Detector.
func WithDetector(d Detector) Option {
	return func(s *Sanitizer) {
		s.detector = d
	}
}

func New(policy Policy, opts ...Option) *Sanitizer {
	s := &Sanitizer{
		separator: policy.Separator,
		fallback:  policy.Fallback,
		detector: KeywordDetector{
			Keywords:  append([]string{}, policy.Keywords...),
			Threshold: policy.Threshold,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sanitizer) Apply(raw string) Result {
	res := Result{
		Extracted: ExtractAnswer(raw, s.separator),
		Detector:  s.detector.Name(),
	}
	res.Deduplicated = DeduplicateSentences(res.Extracted)
	res.Matches, res.Flagged = s.detector.Detect(res.Deduplicated)

	res.Answer = res.Deduplicated
	if res.Flagged {
		res.Answer = s.fallback
	}

	inv.Debug("sanitize", s.invariants(res)...)
	return res
}

// Check reports every pipeline invariant that res breaks.
func (s *Sanitizer) Check(res Result) error {
	return inv.Check("sanitize", s.invariants(res)...)
}

func (s *Sanitizer) invariants(res Result) []any {
	return []any{
		"no adjacent duplicate sentences", noAdjacentDuplicates(res.Deduplicated),
		"flagged answer is the fallback", !res.Flagged || res.Answer == s.fallback,
		"unflagged answer is the deduplicated text", res.Flagged || res.Answer == res.Deduplicated,
	}
}

func noAdjacentDuplicates(text string) bool {
	sentences := SplitSentences(text)
	for i := 1; i < len(sentences); i++ {
		if sentences[i] == sentences[i-1] {
			return false
		}
	}
	return true
}

func (s *Sanitizer) Sanitize(raw string) string {
	return s.Apply(raw).Answer
}

// Sanitize runs ExtractAnswer, DeduplicateSentences and IsHallucinated in
// order and returns fallback verbatim when the answer is flagged.
func Sanitize(raw, separator string, keywords []string, threshold int, fallback string) string {
	return New(Policy{
		Separator: separator,
		Keywords:  keywords,
		Threshold: threshold,
		Fallback:  fallback,
	}).Sanitize(raw)
}
