package sanitize

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultSeparator = "<|sep|>"

const DefaultThreshold = 4

const DefaultFallback = "I'm not confident about that answer. " +
	"Please consult a medical professional or verified health source."

// DefaultKeywords are terms from biomedical research domains a small
// health model tends to drift into when asked simple questions.
var DefaultKeywords = []string{
	"mutation", "binding", "gene", "protein", "tissue",
	"alpha/beta", "cortisol", "adrenal", "[", "]",
}

var ErrNegativeThreshold = errors.New("threshold must not be negative")

// Policy is the tunable configuration of a Sanitizer.
type Policy struct {
	Separator string   `yaml:"separator"`
	Keywords  []string `yaml:"keywords"`
	Threshold int      `yaml:"threshold"`
	Fallback  string   `yaml:"fallback"`
}

func DefaultPolicy() Policy {
	return Policy{
		Separator: DefaultSeparator,
		Keywords:  append([]string{}, DefaultKeywords...),
		Threshold: DefaultThreshold,
		Fallback:  DefaultFallback,
	}
}

func (p Policy) Validate() error {
	if p.Threshold < 0 {
		return fmt.Errorf("got %d: %w", p.Threshold, ErrNegativeThreshold)
	}
	return nil
}

// LoadPolicy reads a YAML policy file. Fields missing from the file keep
// their defaults, and a missing file yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}
		return Policy{}, fmt.Errorf("failed to read policy: %w", err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return policy, nil
}
