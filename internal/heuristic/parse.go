// Package heuristic extracts a best-effort vendor profile from page text
// with pattern probes. It never fails; fields it cannot find stay absent.
package heuristic

import (
	"unicode/utf8"

	"github.com/sells-group/funding-intake/internal/model"
)

// DefaultNotesChars bounds the raw text kept in the profile notes.
const DefaultNotesChars = 2000

// Parser runs a probe list over page text.
type Parser struct {
	probes     []Probe
	notesChars int
}

// Option configures a Parser.
type Option func(*Parser)

// WithNotesChars sets how much raw text is kept in Notes. Values <= 0 are
// ignored.
func WithNotesChars(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.notesChars = n
		}
	}
}

// WithProbes replaces the probe list.
func WithProbes(probes []Probe) Option {
	return func(p *Parser) {
		p.probes = probes
	}
}

// New creates a Parser using DefaultProbes.
func New(opts ...Option) *Parser {
	p := &Parser{probes: DefaultProbes, notesChars: DefaultNotesChars}
	for _, o := range opts {
		o(p)
	}
	return p
}

var defaultParser = New()

// Parse runs DefaultProbes over text.
func Parse(text string) model.VendorProfile {
	return defaultParser.Parse(text)
}

// Parse extracts a vendor profile from text. Notes always holds the input,
// truncated.
func (p *Parser) Parse(text string) model.VendorProfile {
	var profile model.VendorProfile
	for _, probe := range p.probes {
		probe.Apply(text, &profile)
	}
	profile.Notes = truncate(text, p.notesChars)
	return profile
}

// Fields reports every vendor field key with its value, empty when the
// field is absent.
func Fields(v model.VendorProfile) map[string]any {
	products := v.LeadProducts
	if products == nil {
		products = []model.LeadProduct{}
	}
	return map[string]any{
		"company_name":           v.CompanyName,
		"phone":                  v.Phone,
		"email":                  v.Email,
		"contact_name":           v.ContactName,
		"lead_products":          products,
		"industries":             orEmpty(v.Industries),
		"lead_generation_method": v.LeadGenerationMethod,
		"exclusivity_policy":     v.ExclusivityPolicy,
		"return_policy":          v.ReturnPolicy,
		"minimum_order":          v.MinimumOrder,
		"volume_available":       v.VolumeAvailable,
		"additional_services":    orEmpty(v.AdditionalServices),
		"notes":                  v.Notes,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
