package model

// LenderProfile is the candidate record for a funding partner. Numeric and
// boolean criteria are pointers so that "not stated" differs from zero.
type LenderProfile struct {
	LenderName   string `json:"lender_name,omitempty"`
	Website      string `json:"website,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`

	ProductsOffered []string `json:"products_offered,omitempty"`

	MinFundingAmount *float64 `json:"min_funding_amount,omitempty"`
	MaxFundingAmount *float64 `json:"max_funding_amount,omitempty"`

	MinCreditScore          *int     `json:"min_credit_score,omitempty"`
	MinTimeInBusinessMonths *int     `json:"min_time_in_business_months,omitempty"`
	MinMonthlyRevenue       *float64 `json:"min_monthly_revenue,omitempty"`

	FactorRateMin *float64 `json:"factor_rate_min,omitempty"`
	FactorRateMax *float64 `json:"factor_rate_max,omitempty"`
	MinTermMonths *int     `json:"min_term_months,omitempty"`
	MaxTermMonths *int     `json:"max_term_months,omitempty"`
	FundingSpeed  string   `json:"funding_speed,omitempty"`

	IndustriesServed     []string `json:"industries_served,omitempty"`
	RestrictedIndustries []string `json:"restricted_industries,omitempty"`
	StatesExcluded       []string `json:"states_excluded,omitempty"`

	RequiresCollateral     *bool    `json:"requires_collateral,omitempty"`
	AcceptsStacking        *bool    `json:"accepts_stacking,omitempty"`
	SubmissionRequirements []string `json:"submission_requirements,omitempty"`
	Description            string   `json:"description,omitempty"`
}
