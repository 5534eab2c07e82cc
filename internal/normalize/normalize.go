// Package normalize cleans candidate records, maps free text onto the
// CRM's controlled vocabularies and renders the reviewer notes.
package normalize

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/funding-intake/internal/model"
)

const (
	// MaxListEntry is the longest list entry kept.
	MaxListEntry = 100
	// DefaultRawChars bounds the raw extraction text appended to notes.
	DefaultRawChars = 2000
)

// Candidate is an extracted record awaiting normalization. Exactly one of
// Vendor, Lender and Recommendation is set.
type Candidate struct {
	Kind      model.Kind
	SourceURL string
	Source    string
	Method    string
	Model     string
	Subject   string

	Vendor         *model.VendorProfile
	Lender         *model.LenderProfile
	Recommendation *model.Recommendation

	// RawText is the text the record was extracted from, or the raw
	// model reply.
	RawText string
	// Dropped lists fields already discarded upstream.
	Dropped []string
}

// Normalizer turns candidates into reviewed-ready results.
type Normalizer struct {
	vocab    *Vocabulary
	now      func() time.Time
	rawChars int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used for the notes timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithRawChars bounds the raw text kept in notes. Values <= 0 are ignored.
func WithRawChars(c int) Option {
	return func(n *Normalizer) {
		if c > 0 {
			n.rawChars = c
		}
	}
}

// New creates a Normalizer. A nil vocabulary uses the embedded default.
func New(vocab *Vocabulary, opts ...Option) *Normalizer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	n := &Normalizer{
		vocab:    vocab,
		now:      time.Now,
		rawChars: DefaultRawChars,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize cleans c and renders its notes. It never fails: corrupted
// values are discarded and listed in Dropped.
func (n *Normalizer) Normalize(c Candidate) model.NormalizedResult {
	s := &sanitizer{dropped: append([]string(nil), c.Dropped...)}
	res := model.NormalizedResult{
		Kind:        c.Kind,
		SourceURL:   c.SourceURL,
		Source:      c.Source,
		Method:      c.Method,
		Model:       c.Model,
		Subject:     c.Subject,
		ExtractedAt: n.now().UTC(),
	}

	switch {
	case c.Vendor != nil:
		v := n.vendor(s, *c.Vendor)
		res.Vendor = &v
		for _, p := range v.LeadProducts {
			res.RawProducts = append(res.RawProducts, p.ProductName)
		}
		res.Tags = Map(n.vocab.LeadTypes, res.RawProducts)
	case c.Lender != nil:
		l := n.lender(s, *c.Lender)
		res.Lender = &l
		res.RawProducts = l.ProductsOffered
		res.Tags = Map(n.vocab.FundingProducts, l.ProductsOffered)
	case c.Recommendation != nil:
		r := n.recommendation(s, *c.Recommendation)
		res.Recommendation = &r
		res.RawProducts = r.RecommendedProducts
		res.Tags = Map(n.vocab.FundingProducts, r.RecommendedProducts)
	}

	res.Dropped = s.dropped
	res.Notes = n.notes(&res, strings.TrimSpace(c.RawText))
	return res
}

func (n *Normalizer) vendor(s *sanitizer, v model.VendorProfile) model.VendorProfile {
	out := model.VendorProfile{
		CompanyName:          s.str("company_name", v.CompanyName),
		Phone:                s.str("phone", v.Phone),
		Email:                s.str("email", v.Email),
		ContactName:          s.str("contact_name", v.ContactName),
		Industries:           n.titled(s.list("industries", v.Industries)),
		LeadGenerationMethod: s.str("lead_generation_method", v.LeadGenerationMethod),
		ExclusivityPolicy:    s.str("exclusivity_policy", v.ExclusivityPolicy),
		ReturnPolicy:         s.str("return_policy", v.ReturnPolicy),
		MinimumOrder:         s.str("minimum_order", v.MinimumOrder),
		VolumeAvailable:      s.str("volume_available", v.VolumeAvailable),
		AdditionalServices:   s.list("additional_services", v.AdditionalServices),
		Notes:                s.str("notes", v.Notes),
	}
	for i, p := range v.LeadProducts {
		name := s.entry(fmt.Sprintf("lead_products[%d].product_name", i), p.ProductName)
		if name == "" {
			continue
		}
		out.LeadProducts = append(out.LeadProducts, model.LeadProduct{
			ProductName: name,
			Price:       s.entry(fmt.Sprintf("lead_products[%d].price", i), p.Price),
		})
	}
	return out
}

func (n *Normalizer) lender(s *sanitizer, l model.LenderProfile) model.LenderProfile {
	out := l
	out.LenderName = s.str("lender_name", l.LenderName)
	out.Website = s.str("website", l.Website)
	out.ContactName = s.str("contact_name", l.ContactName)
	out.ContactEmail = s.str("contact_email", l.ContactEmail)
	out.ContactPhone = s.str("contact_phone", l.ContactPhone)
	out.ProductsOffered = s.list("products_offered", l.ProductsOffered)
	out.FundingSpeed = s.str("funding_speed", l.FundingSpeed)
	out.IndustriesServed = n.titled(s.list("industries_served", l.IndustriesServed))
	out.RestrictedIndustries = n.titled(s.list("restricted_industries", l.RestrictedIndustries))
	out.StatesExcluded = upper(s.list("states_excluded", l.StatesExcluded))
	out.SubmissionRequirements = s.list("submission_requirements", l.SubmissionRequirements)
	out.Description = s.str("description", l.Description)
	return out
}

func (n *Normalizer) recommendation(s *sanitizer, r model.Recommendation) model.Recommendation {
	out := model.Recommendation{
		Summary:               s.str("summary", r.Summary),
		Priority:              strings.ToLower(s.str("priority", r.Priority)),
		RecommendedProducts:   s.list("recommended_products", r.RecommendedProducts),
		RecommendedLenders:    s.list("recommended_lenders", r.RecommendedLenders),
		EstimatedFundingRange: s.str("estimated_funding_range", r.EstimatedFundingRange),
		TalkingPoints:         s.list("talking_points", r.TalkingPoints),
		NextSteps:             s.list("next_steps", r.NextSteps),
		RiskFactors:           s.list("risk_factors", r.RiskFactors),
	}
	switch out.Priority {
	case "", "high", "medium", "low":
	default:
		s.drop("priority", "not high, medium or low")
		out.Priority = ""
	}
	return out
}

// titled title-cases entries, keeping acronyms. A Caser is stateful, so
// each call gets its own.
func (n *Normalizer) titled(in []string) []string {
	caser := cases.Title(language.English, cases.NoLower)
	for i, v := range in {
		in[i] = caser.String(v)
	}
	return in
}

func upper(in []string) []string {
	for i, v := range in {
		in[i] = strings.ToUpper(v)
	}
	return in
}

// sanitizer applies the string and list guards and collects what it
// discards.
type sanitizer struct {
	dropped []string
}

func (s *sanitizer) drop(field, reason string) {
	s.dropped = append(s.dropped, field+" ("+reason+")")
}

// LooksLikeJSON reports whether s carries serialization residue.
func LooksLikeJSON(v string) bool {
	return strings.Contains(v, `":`) || strings.Contains(v, `{"`) || strings.Contains(v, `["`)
}

func (s *sanitizer) str(field, v string) string {
	v = strings.TrimSpace(v)
	if LooksLikeJSON(v) {
		s.drop(field, "embedded JSON")
		return ""
	}
	return v
}

// entry cleans one short value: control characters are removed, and
// values that are too long or carry braces or colons are rejected.
func (s *sanitizer) entry(field, v string) string {
	v = CleanEntry(v)
	if v == "" {
		return ""
	}
	if !ValidEntry(v) {
		s.drop(field, "not a plain short string")
		return ""
	}
	return v
}

func (s *sanitizer) list(field string, in []string) []string {
	var out []string
	rejected := 0
	for _, v := range in {
		v = CleanEntry(v)
		if v == "" {
			continue
		}
		if !ValidEntry(v) {
			rejected++
			continue
		}
		out = append(out, v)
	}
	if rejected > 0 {
		s.drop(field, fmt.Sprintf("%d entries rejected", rejected))
	}
	return out
}

// CleanEntry strips control characters and collapses whitespace.
func CleanEntry(v string) string {
	v = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, v)
	return strings.Join(strings.Fields(v), " ")
}

// ValidEntry reports whether a cleaned list entry is a plain short string.
func ValidEntry(v string) bool {
	return utf8.RuneCountInString(v) <= MaxListEntry && !strings.ContainsAny(v, "{}:")
}
