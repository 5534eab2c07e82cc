package model

// LeadProduct is a lead type a vendor sells and its advertised price.
type LeadProduct struct {
	ProductName string `json:"product_name"`
	Price       string `json:"price,omitempty"`
}

// VendorProfile is the candidate record for a lead vendor. Every field is
// optional; empty strings and nil slices mean absent.
type VendorProfile struct {
	CompanyName          string        `json:"company_name,omitempty"`
	Phone                string        `json:"phone,omitempty"`
	Email                string        `json:"email,omitempty"`
	ContactName          string        `json:"contact_name,omitempty"`
	LeadProducts         []LeadProduct `json:"lead_products,omitempty"`
	Industries           []string      `json:"industries,omitempty"`
	LeadGenerationMethod string        `json:"lead_generation_method,omitempty"`
	ExclusivityPolicy    string        `json:"exclusivity_policy,omitempty"`
	ReturnPolicy         string        `json:"return_policy,omitempty"`
	MinimumOrder         string        `json:"minimum_order,omitempty"`
	VolumeAvailable      string        `json:"volume_available,omitempty"`
	AdditionalServices   []string      `json:"additional_services,omitempty"`
	Notes                string        `json:"notes,omitempty"`
}
