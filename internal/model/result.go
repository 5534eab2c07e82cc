package model

import (
	"net/url"
	"strings"
	"time"
)

// Extraction methods recorded on a result.
const (
	MethodHeuristic = "heuristic"
	MethodAI        = "ai"
	MethodAgent     = "agent"
)

// NormalizedResult is a cleaned candidate record plus the reviewer notes.
// Exactly one of Vendor, Lender and Recommendation is set.
type NormalizedResult struct {
	Kind        Kind      `json:"kind"`
	SourceURL   string    `json:"source_url,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Source      string    `json:"source,omitempty"`
	Method      string    `json:"method"`
	Model       string    `json:"model,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`

	Vendor         *VendorProfile  `json:"vendor,omitempty"`
	Lender         *LenderProfile  `json:"lender,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`

	Tags        []string `json:"tags,omitempty"`
	RawProducts []string `json:"raw_products,omitempty"`
	Notes       string   `json:"notes"`
	Dropped     []string `json:"dropped,omitempty"`
}

// Name returns the display name of the record.
func (r *NormalizedResult) Name() string {
	switch {
	case r.Vendor != nil && r.Vendor.CompanyName != "":
		return r.Vendor.CompanyName
	case r.Lender != nil && r.Lender.LenderName != "":
		return r.Lender.LenderName
	case r.Subject != "":
		return r.Subject
	}
	return HostOf(r.SourceURL)
}

// Key returns the upsert key of the record: the site host for vendors and
// lenders, the lowercased subject for recommendations.
func (r *NormalizedResult) Key() string {
	if r.Kind == KindRecommendation {
		return strings.ToLower(strings.TrimSpace(r.Subject))
	}
	site := r.SourceURL
	if r.Lender != nil && r.Lender.Website != "" {
		site = r.Lender.Website
	}
	if h := HostOf(site); h != "" {
		return h
	}
	return strings.ToLower(r.Name())
}

// TitleKey is the record key holding the display name.
func (r *NormalizedResult) TitleKey() string {
	switch r.Kind {
	case KindVendor:
		return "company_name"
	case KindLender:
		return "lender_name"
	}
	return "business_name"
}

// Record flattens the result into the plain key/value record written to
// its table. Values are string, float64, bool or []string; absent fields
// are omitted.
func (r *NormalizedResult) Record() map[string]any {
	rec := recordBuilder{}
	rec.str("source_url", r.SourceURL)
	rec.str("notes", r.Notes)
	rec.str("extraction_method", r.Method)

	switch {
	case r.Vendor != nil:
		v := r.Vendor
		rec.str("company_name", v.CompanyName)
		if rec["company_name"] == nil {
			rec.str("company_name", HostOf(r.SourceURL))
		}
		rec.str("website", r.SourceURL)
		rec.str("phone", v.Phone)
		rec.str("email", v.Email)
		rec.str("contact_name", v.ContactName)
		rec.list("lead_types", r.Tags)
		rec.list("lead_products", r.RawProducts)
		rec.list("industries", v.Industries)
		rec.str("lead_generation_method", v.LeadGenerationMethod)
		rec.str("exclusivity_policy", v.ExclusivityPolicy)
		rec.str("return_policy", v.ReturnPolicy)
		rec.str("minimum_order", v.MinimumOrder)
		rec.str("volume_available", v.VolumeAvailable)
		rec.list("additional_services", v.AdditionalServices)

	case r.Lender != nil:
		l := r.Lender
		rec.str("lender_name", l.LenderName)
		if rec["lender_name"] == nil {
			rec.str("lender_name", HostOf(r.SourceURL))
		}
		website := l.Website
		if website == "" {
			website = r.SourceURL
		}
		rec.str("website", website)
		rec.str("contact_name", l.ContactName)
		rec.str("contact_email", l.ContactEmail)
		rec.str("contact_phone", l.ContactPhone)
		rec.list("funding_products", r.Tags)
		rec.list("products_offered", l.ProductsOffered)
		rec.float("min_funding_amount", l.MinFundingAmount)
		rec.float("max_funding_amount", l.MaxFundingAmount)
		rec.int("min_credit_score", l.MinCreditScore)
		rec.int("min_time_in_business_months", l.MinTimeInBusinessMonths)
		rec.float("min_monthly_revenue", l.MinMonthlyRevenue)
		rec.float("factor_rate_min", l.FactorRateMin)
		rec.float("factor_rate_max", l.FactorRateMax)
		rec.int("min_term_months", l.MinTermMonths)
		rec.int("max_term_months", l.MaxTermMonths)
		rec.str("funding_speed", l.FundingSpeed)
		rec.list("industries_served", l.IndustriesServed)
		rec.list("restricted_industries", l.RestrictedIndustries)
		rec.list("states_excluded", l.StatesExcluded)
		rec.bool("requires_collateral", l.RequiresCollateral)
		rec.bool("accepts_stacking", l.AcceptsStacking)
		rec.list("submission_requirements", l.SubmissionRequirements)
		rec.str("description", l.Description)

	case r.Recommendation != nil:
		c := r.Recommendation
		rec.str("business_name", r.Subject)
		rec.str("summary", c.Summary)
		rec.str("priority", c.Priority)
		rec.list("recommended_products", c.RecommendedProducts)
		rec.list("product_tags", r.Tags)
		rec.list("recommended_lenders", c.RecommendedLenders)
		rec.str("estimated_funding_range", c.EstimatedFundingRange)
		rec.list("talking_points", c.TalkingPoints)
		rec.list("next_steps", c.NextSteps)
		rec.list("risk_factors", c.RiskFactors)
	}
	return rec
}

type recordBuilder map[string]any

func (b recordBuilder) str(k, v string) {
	if v != "" {
		b[k] = v
	}
}

func (b recordBuilder) list(k string, v []string) {
	if len(v) > 0 {
		b[k] = v
	}
}

func (b recordBuilder) float(k string, v *float64) {
	if v != nil {
		b[k] = *v
	}
}

func (b recordBuilder) int(k string, v *int) {
	if v != nil {
		b[k] = float64(*v)
	}
}

func (b recordBuilder) bool(k string, v *bool) {
	if v != nil {
		b[k] = *v
	}
}

// HostOf returns the lowercased host of a URL without a leading "www.".
// A bare domain is accepted.
func HostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
