// Package schema describes the candidate record of each extraction kind
// and lifts untyped model output into typed records field by field.
package schema

import "github.com/sells-group/funding-intake/internal/model"

// Field is one key of a candidate record.
type Field struct {
	Name        string
	Type        string // string, number, integer, boolean, list, products
	Description string
}

// JSON returns the JSON Schema fragment for the field's value.
func (f Field) JSON() map[string]any {
	var s map[string]any
	switch f.Type {
	case "list":
		s = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case "products":
		s = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"product_name": map[string]any{"type": "string"},
					"price":        map[string]any{"type": []any{"string", "null"}},
				},
				"required": []any{"product_name"},
			},
		}
	default:
		s = map[string]any{"type": f.Type}
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}

// TypeLabel is the type name shown to the model in prompts.
func (f Field) TypeLabel() string {
	switch f.Type {
	case "list":
		return "array of strings"
	case "products":
		return `array of {"product_name": string, "price": string}`
	}
	return f.Type
}

var vendorFields = []Field{
	{"company_name", "string", "Legal or trading name of the lead vendor"},
	{"phone", "string", "Main sales phone number"},
	{"email", "string", "Sales or contact email address"},
	{"contact_name", "string", "Named sales contact, if any"},
	{"lead_products", "products", "Lead types sold, each with its advertised price"},
	{"industries", "list", "Industries or verticals the leads come from"},
	{"lead_generation_method", "string", "How leads are generated (e.g. TV, web forms, call center)"},
	{"exclusivity_policy", "string", "Whether leads are exclusive or shared"},
	{"return_policy", "string", "Conditions for returning or replacing bad leads"},
	{"minimum_order", "string", "Minimum purchase size or budget"},
	{"volume_available", "string", "Lead volume available per day, week or month"},
	{"additional_services", "list", "Other services offered (CRM, dialer, training)"},
	{"notes", "string", "Anything else a funding broker should know"},
}

var lenderFields = []Field{
	{"lender_name", "string", "Name of the funder or lender"},
	{"website", "string", "Main website URL"},
	{"contact_name", "string", "ISO or partner relations contact"},
	{"contact_email", "string", "Partner or submissions email"},
	{"contact_phone", "string", "Partner or submissions phone"},
	{"products_offered", "list", "Funding products (MCA, term loan, line of credit, SBA, equipment)"},
	{"min_funding_amount", "number", "Smallest funding amount in USD"},
	{"max_funding_amount", "number", "Largest funding amount in USD"},
	{"min_credit_score", "integer", "Minimum FICO score"},
	{"min_time_in_business_months", "integer", "Minimum time in business in months"},
	{"min_monthly_revenue", "number", "Minimum monthly revenue in USD"},
	{"factor_rate_min", "number", "Lowest factor rate (e.g. 1.15)"},
	{"factor_rate_max", "number", "Highest factor rate (e.g. 1.49)"},
	{"min_term_months", "integer", "Shortest term in months"},
	{"max_term_months", "integer", "Longest term in months"},
	{"funding_speed", "string", "Typical time to fund"},
	{"industries_served", "list", "Industries the lender funds"},
	{"restricted_industries", "list", "Industries the lender will not fund"},
	{"states_excluded", "list", "US states the lender does not fund (two-letter codes)"},
	{"requires_collateral", "boolean", "Whether collateral is required"},
	{"accepts_stacking", "boolean", "Whether the lender funds behind existing positions"},
	{"submission_requirements", "list", "Documents needed to submit a deal"},
	{"description", "string", "One-paragraph description of the lender"},
}

var recommendationFields = []Field{
	{"summary", "string", "Two or three sentence assessment of the customer"},
	{"priority", "string", "Follow-up priority: high, medium or low"},
	{"recommended_products", "list", "Funding products that fit the customer"},
	{"recommended_lenders", "list", "Known lenders whose criteria the customer meets"},
	{"estimated_funding_range", "string", "Realistic funding range, e.g. $25,000 - $50,000"},
	{"talking_points", "list", "Points the broker should raise on the next call"},
	{"next_steps", "list", "Concrete next actions"},
	{"risk_factors", "list", "Underwriting concerns"},
}

// Fields returns the candidate record fields of kind in prompt order.
func Fields(kind model.Kind) []Field {
	switch kind {
	case model.KindVendor:
		return vendorFields
	case model.KindLender:
		return lenderFields
	case model.KindRecommendation:
		return recommendationFields
	}
	return nil
}

// Document returns the JSON Schema object describing a record of kind.
func Document(kind model.Kind) map[string]any {
	props := make(map[string]any)
	for _, f := range Fields(kind) {
		props[f.Name] = f.JSON()
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}
