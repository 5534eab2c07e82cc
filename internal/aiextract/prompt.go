package aiextract

import (
	"fmt"
	"strings"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/schema"
)

const (
	lenderTask = `You are a research analyst for a small-business funding brokerage (an ISO). ` +
		`The text below was scraped from the website of a lender or funder. ` +
		`Extract the lender's underwriting criteria and partner program details.`

	vendorTask = `You are a research analyst for a small-business funding brokerage. ` +
		`The text below was scraped from the website of a company that sells merchant cash advance and business loan leads. ` +
		`Extract the vendor's contact details, lead products with prices, and policies.`

	recommendTask = `You are a senior funding advisor at a small-business funding brokerage. ` +
		`Review the customer below and recommend how the broker should fund them.`

	lenderRule = ` Only name lenders from the provided list, and only when the customer meets their stated criteria.`
)

const replyRules = `Respond with ONLY a JSON object containing exactly these keys. ` +
	`Use null for anything the text does not state. Do not guess. ` +
	`Numbers must be plain numbers without currency symbols or commas. ` +
	`Do not wrap the JSON in prose.`

// fieldList renders one line per schema field.
func fieldList(kind model.Kind) string {
	var b strings.Builder
	for _, f := range schema.Fields(kind) {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Name, f.TypeLabel(), f.Description)
	}
	return b.String()
}

func buildPrompt(task string, kind model.Kind, label, body string) string {
	var b strings.Builder
	b.WriteString(task)
	b.WriteString("\n\nFields:\n")
	b.WriteString(fieldList(kind))
	b.WriteString("\n")
	b.WriteString(replyRules)
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(":\n")
	b.WriteString(body)
	return b.String()
}

// LenderPrompt builds the lender extraction prompt for page content.
func LenderPrompt(content *model.RawContent) string {
	return buildPrompt(lenderTask, model.KindLender, "Website content ("+content.SourceURL+")", content.Text)
}

// VendorPrompt builds the lead vendor extraction prompt for page content.
func VendorPrompt(content *model.RawContent) string {
	return buildPrompt(vendorTask, model.KindVendor, "Website content ("+content.SourceURL+")", content.Text)
}

// AgentPrompt is the instruction sent with the vendor schema to the crawl
// agent.
func AgentPrompt() string {
	return vendorTask + " " + replyRules
}

// RecommendPrompt restates the customer record, and the known lender
// criteria when given, instead of page text.
func RecommendPrompt(c *model.Customer, lenders []model.LenderProfile) string {
	task := recommendTask
	var b strings.Builder
	b.WriteString(customerBlock(c))
	if len(lenders) > 0 {
		task += lenderRule
		b.WriteString("\nKnown lenders:\n")
		for _, l := range lenders {
			b.WriteString(lenderLine(l))
		}
	}
	return buildPrompt(task, model.KindRecommendation, "Customer", b.String())
}

func customerBlock(c *model.Customer) string {
	var b strings.Builder
	line := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}
	line("Business name", c.BusinessName)
	line("Owner", c.OwnerName)
	line("Industry", c.Industry)
	line("State", c.State)
	line("Time in business", intUnit(c.TimeInBusinessMonths, "months"))
	line("Monthly revenue", money(c.MonthlyRevenue))
	line("Credit score", intUnit(c.CreditScore, ""))
	line("Requested amount", money(c.RequestedAmount))
	line("Use of funds", c.UseOfFunds)
	line("Existing positions", intUnit(c.ExistingPositions, ""))
	line("Notes", c.Notes)
	return b.String()
}

func lenderLine(l model.LenderProfile) string {
	parts := []string{l.LenderName}
	if len(l.ProductsOffered) > 0 {
		parts = append(parts, "products "+strings.Join(l.ProductsOffered, "/"))
	}
	if l.MinFundingAmount != nil || l.MaxFundingAmount != nil {
		parts = append(parts, "amount "+money(l.MinFundingAmount)+" to "+money(l.MaxFundingAmount))
	}
	if s := intUnit(l.MinCreditScore, ""); s != "" {
		parts = append(parts, "min FICO "+s)
	}
	if s := intUnit(l.MinTimeInBusinessMonths, "months"); s != "" {
		parts = append(parts, "min TIB "+s)
	}
	if s := money(l.MinMonthlyRevenue); s != "" {
		parts = append(parts, "min revenue "+s+"/mo")
	}
	if len(l.RestrictedIndustries) > 0 {
		parts = append(parts, "restricted "+strings.Join(l.RestrictedIndustries, "/"))
	}
	if len(l.StatesExcluded) > 0 {
		parts = append(parts, "excludes "+strings.Join(l.StatesExcluded, "/"))
	}
	if l.AcceptsStacking != nil {
		parts = append(parts, fmt.Sprintf("stacking %t", *l.AcceptsStacking))
	}
	return "- " + strings.Join(parts, "; ") + "\n"
}

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("$%.0f", *v)
}

func intUnit(v *int, unit string) string {
	if v == nil {
		return ""
	}
	if unit == "" {
		return fmt.Sprintf("%d", *v)
	}
	return fmt.Sprintf("%d %s", *v, unit)
}
