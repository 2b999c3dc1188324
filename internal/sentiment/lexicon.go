package sentiment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the phrase lists used for scoring. Phrases are matched
// case-insensitively as substrings of the description.
type Lexicon struct {
	Positive   []string `yaml:"positive"`
	Negative   []string `yaml:"negative"`
	Engagement []string `yaml:"engagement"`
}

// DefaultLexicon returns the built-in phrase lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"innovative", "exciting", "cutting-edge", "leading", "excellent", "dynamic",
			"collaborative", "flexible", "growth", "opportunity", "benefits", "competitive",
			"rewarding", "supportive", "progressive", "modern", "world-class", "prestigious",
			"ambitious", "thriving", "successful", "award-winning", "industry-leading",
			"state-of-the-art", "fast-growing", "vibrant", "passionate", "creative",
			"empowering", "inclusive", "diverse", "agile", "forward-thinking",
		},
		Negative: []string{
			"demanding", "pressure", "tight deadlines", "stressful", "challenging",
			"difficult", "complex", "intensive", "fast-paced", "high-pressure",
			"strict", "rigid", "demanding schedule", "overtime", "weekend work",
		},
		Engagement: []string{
			"team", "collaboration", "partnership", "community", "culture",
			"environment", "work-life balance", "remote", "hybrid", "training",
			"development", "career", "mentorship", "learning", "education",
		},
	}
}

// LoadLexicon reads a YAML lexicon. Lists missing from the file keep their
// built-in values; an empty path returns the defaults.
func LoadLexicon(path string) (Lexicon, error) {
	lex := DefaultLexicon()
	if path == "" {
		return lex, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return lex, fmt.Errorf("read lexicon: %w", err)
	}

	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return lex, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	if len(override.Positive) > 0 {
		lex.Positive = override.Positive
	}
	if len(override.Negative) > 0 {
		lex.Negative = override.Negative
	}
	if len(override.Engagement) > 0 {
		lex.Engagement = override.Engagement
	}
	return lex.normalized(), nil
}

func (l Lexicon) normalized() Lexicon {
	return Lexicon{
		Positive:   lowerAll(l.Positive),
		Negative:   lowerAll(l.Negative),
		Engagement: lowerAll(l.Engagement),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
