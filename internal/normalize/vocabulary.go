package normalize

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Term is one canonical tag and the phrases that map to it.
type Term struct {
	Tag      string   `yaml:"tag"`
	Synonyms []string `yaml:"synonyms"`
}

// Vocabulary holds the controlled vocabularies of the CRM.
type Vocabulary struct {
	LeadTypes       []Term `yaml:"lead_types"`
	FundingProducts []Term `yaml:"funding_products"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic("normalize: embedded vocabulary: " + err.Error())
	}
	return v
}

// LoadVocabulary reads a vocabulary file. An empty path returns the
// embedded default.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read vocabulary %s", path)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes vocabulary YAML. Every term needs a tag.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrap(err, "normalize: parse vocabulary")
	}
	for _, terms := range [][]Term{v.LeadTypes, v.FundingProducts} {
		for i, t := range terms {
			if strings.TrimSpace(t.Tag) == "" {
				return nil, eris.Errorf("normalize: vocabulary term %d has no tag", i)
			}
		}
	}
	return &v, nil
}

// Map returns the canonical tags matched by names, in first-seen order
// without duplicates. A name matches a term when it contains the tag or
// any synonym, ignoring case. Names that match nothing produce no tag.
func Map(terms []Term, names []string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, t := range terms {
			if seen[t.Tag] || !termMatches(t, lower) {
				continue
			}
			seen[t.Tag] = true
			tags = append(tags, t.Tag)
		}
	}
	return tags
}

func termMatches(t Term, lowerName string) bool {
	if strings.Contains(lowerName, strings.ToLower(t.Tag)) {
		return true
	}
	for _, s := range t.Synonyms {
		if s != "" && strings.Contains(lowerName, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
