package sink

import (
	"context"

	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/store"
	"github.com/sells-group/funding-intake/pkg/salesforce"
)

// DefaultFieldMaps maps record keys to custom sObject fields per table.
var DefaultFieldMaps = map[string]salesforce.FieldMap{
	"lenders": {
		"lender_name":                 "Name",
		"website":                     "Website__c",
		"contact_name":                "Contact_Name__c",
		"contact_email":               "Contact_Email__c",
		"contact_phone":               "Contact_Phone__c",
		"funding_products":            "Funding_Products__c",
		"min_funding_amount":          "Min_Funding_Amount__c",
		"max_funding_amount":          "Max_Funding_Amount__c",
		"min_credit_score":            "Min_Credit_Score__c",
		"min_time_in_business_months": "Min_Time_In_Business__c",
		"min_monthly_revenue":         "Min_Monthly_Revenue__c",
		"accepts_stacking":            "Accepts_Stacking__c",
		"requires_collateral":         "Requires_Collateral__c",
		"states_excluded":             "States_Excluded__c",
		"funding_speed":               "Funding_Speed__c",
		"notes":                       "Intake_Notes__c",
	},
	"lead_vendors": {
		"company_name":           "Name",
		"website":                "Website__c",
		"contact_name":           "Contact_Name__c",
		"email":                  "Email__c",
		"phone":                  "Phone__c",
		"lead_types":             "Lead_Types__c",
		"industries":             "Industries__c",
		"exclusivity_policy":     "Exclusivity_Policy__c",
		"return_policy":          "Return_Policy__c",
		"minimum_order":          "Minimum_Order__c",
		"lead_generation_method": "Lead_Generation_Method__c",
		"notes":                  "Intake_Notes__c",
	},
	"customer_recommendations": {
		"business_name":           "Name",
		"summary":                 "Summary__c",
		"priority":                "Priority__c",
		"product_tags":            "Recommended_Products__c",
		"estimated_funding_range": "Estimated_Funding_Range__c",
		"notes":                   "Intake_Notes__c",
	},
}

// SalesforceSink writes records as sObjects of the type mapped to each
// table.
type SalesforceSink struct {
	client  salesforce.Client
	objects map[string]string
	fields  map[string]salesforce.FieldMap
}

// NewSalesforceSink creates a sink. objects maps table names to sObject
// names; nil fields uses DefaultFieldMaps.
func NewSalesforceSink(client salesforce.Client, objects map[string]string, fields map[string]salesforce.FieldMap) *SalesforceSink {
	if fields == nil {
		fields = DefaultFieldMaps
	}
	return &SalesforceSink{client: client, objects: objects, fields: fields}
}

// Name implements Sink.
func (s *SalesforceSink) Name() string { return "salesforce" }

// Write implements Sink. Without a previous ID, a record whose website
// already exists is updated rather than duplicated.
func (s *SalesforceSink) Write(ctx context.Context, rec store.Record, existingID string) (string, error) {
	object := s.objects[rec.Table]
	if object == "" {
		return "", resilience.Configf("salesforce sink", "salesforce.objects.%s is not set", rec.Table)
	}
	fm, ok := s.fields[rec.Table]
	if !ok {
		return "", resilience.Configf("salesforce sink", "no field map for table %s", rec.Table)
	}

	return s.client.UpsertRecord(ctx, salesforce.Record{
		SObject:    object,
		ExistingID: existingID,
		MatchKey:   "website",
		Data:       rec.Data,
		Fields:     fm,
	})
}
