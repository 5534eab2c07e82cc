package salesforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var lenderFields = FieldMap{
	"lender_name":        "Name",
	"website":            "Website__c",
	"min_funding_amount": "Min_Funding__c",
	"products_offered":   "Products__c",
	"accepts_stacking":   "Accepts_Stacking__c",
	"contact_email":      "Contact_Email__c",
}

func TestMapFields(t *testing.T) {
	record := map[string]any{
		"lender_name":        "Acme Capital",
		"website":            "https://acme.example",
		"min_funding_amount": 5000.0,
		"products_offered":   []string{"MCA", "Term Loan"},
		"accepts_stacking":   false,
		"contact_email":      "",
		"notes":              "not mapped",
	}

	got := MapFields(record, lenderFields)
	assert.Equal(t, map[string]any{
		"Name":                "Acme Capital",
		"Website__c":          "https://acme.example",
		"Min_Funding__c":      5000.0,
		"Products__c":         "MCA;Term Loan",
		"Accepts_Stacking__c": false,
	}, got)
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, "plain", escapeSoql("plain"))
}
