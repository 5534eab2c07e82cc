package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies which record an extraction produces.
type Kind string

const (
	KindLender         Kind = "lender"
	KindVendor         Kind = "vendor"
	KindRecommendation Kind = "recommendation"
)

// Table returns the persistent table a reviewed record of this kind is
// written to.
func (k Kind) Table() string {
	switch k {
	case KindLender:
		return "lenders"
	case KindVendor:
		return "lead_vendors"
	case KindRecommendation:
		return "customer_recommendations"
	}
	return ""
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLender, KindVendor, KindRecommendation:
		return k, nil
	}
	return "", eris.Errorf("model: unknown kind %q", s)
}

// Tier selects the fast or quality model variant of a provider.
type Tier string

const (
	TierFast    Tier = "fast"
	TierQuality Tier = "quality"
)

// ParseTier validates a tier name. Empty means fast.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TierFast, nil
	case TierFast, TierQuality:
		return t, nil
	}
	return "", eris.Errorf("model: unknown model tier %q (want fast or quality)", s)
}

// ExtractionRequest is one user-triggered extraction.
type ExtractionRequest struct {
	URL         string    `json:"url,omitempty"`
	Kind        Kind      `json:"kind"`
	Tier        Tier      `json:"model,omitempty"`
	UseAI       bool      `json:"use_ai,omitempty"`
	Customer    *Customer `json:"customer,omitempty"`
	WithLenders bool      `json:"with_lenders,omitempty"`
}

// RawContent is page text retrieved for one URL.
type RawContent struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
	Source    string `json:"source"`
	Title     string `json:"title,omitempty"`
	Pages     int    `json:"pages"`
	Truncated bool   `json:"truncated"`
}
