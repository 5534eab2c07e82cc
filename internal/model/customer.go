package model

// Customer is a loan applicant as held in the CRM.
type Customer struct {
	BusinessName         string   `json:"business_name"`
	OwnerName            string   `json:"owner_name,omitempty"`
	Email                string   `json:"email,omitempty"`
	Phone                string   `json:"phone,omitempty"`
	Industry             string   `json:"industry,omitempty"`
	State                string   `json:"state,omitempty"`
	TimeInBusinessMonths *int     `json:"time_in_business_months,omitempty"`
	MonthlyRevenue       *float64 `json:"monthly_revenue,omitempty"`
	CreditScore          *int     `json:"credit_score,omitempty"`
	RequestedAmount      *float64 `json:"requested_amount,omitempty"`
	UseOfFunds           string   `json:"use_of_funds,omitempty"`
	ExistingPositions    *int     `json:"existing_positions,omitempty"`
	Notes                string   `json:"notes,omitempty"`
}

// Recommendation is the AI sales recommendation for a customer.
type Recommendation struct {
	Summary               string   `json:"summary,omitempty"`
	Priority              string   `json:"priority,omitempty"`
	RecommendedProducts   []string `json:"recommended_products,omitempty"`
	RecommendedLenders    []string `json:"recommended_lenders,omitempty"`
	EstimatedFundingRange string   `json:"estimated_funding_range,omitempty"`
	TalkingPoints         []string `json:"talking_points,omitempty"`
	NextSteps             []string `json:"next_steps,omitempty"`
	RiskFactors           []string `json:"risk_factors,omitempty"`
}
