package normalize

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/funding-intake/internal/model"
)

// notes renders the reviewer notes: header, structured summary, free-text
// details, dropped fields and the raw extraction text.
func (n *Normalizer) notes(r *model.NormalizedResult, raw string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AI Scan Results - %s\n", r.ExtractedAt.Format(time.RFC1123))
	if r.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", r.SourceURL)
	}
	if r.Method != "" {
		method := r.Method
		if r.Model != "" {
			method += " (" + r.Model + ")"
		}
		fmt.Fprintf(&b, "Method: %s\n", method)
	}

	var summary, details []string
	switch {
	case r.Vendor != nil:
		summary, details = vendorSections(r)
	case r.Lender != nil:
		summary, details = lenderSections(r)
	case r.Recommendation != nil:
		summary, details = recommendationSections(r)
	}

	section(&b, "Summary", summary)
	section(&b, "Details", details)
	if len(r.Dropped) > 0 {
		section(&b, "Discarded fields", bullets(r.Dropped))
	}
	if raw != "" {
		b.WriteString("\nRaw extraction:\n")
		b.WriteString(clip(raw, n.rawChars))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
}

func bullets(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = "- " + it
	}
	return out
}

type lines []string

func (l *lines) add(label, v string) {
	if v != "" {
		*l = append(*l, "- "+label+": "+v)
	}
}

func (l *lines) list(label string, v []string) {
	if len(v) > 0 {
		*l = append(*l, "- "+label+": "+strings.Join(v, ", "))
	}
}

func (l *lines) money(label string, v *float64) {
	if v != nil {
		l.add(label, fmt.Sprintf("$%s", commas(*v)))
	}
}

func (l *lines) num(label string, v *float64) {
	if v != nil {
		l.add(label, fmt.Sprintf("%g", *v))
	}
}

func (l *lines) integer(label string, v *int, unit string) {
	if v != nil {
		l.add(label, strings.TrimSpace(fmt.Sprintf("%d %s", *v, unit)))
	}
}

func (l *lines) flag(label string, v *bool) {
	if v != nil {
		if *v {
			l.add(label, "yes")
		} else {
			l.add(label, "no")
		}
	}
}

func vendorSections(r *model.NormalizedResult) (summary, details []string) {
	v := r.Vendor
	var s, d lines
	s.add("Company", v.CompanyName)
	s.add("Phone", v.Phone)
	s.add("Email", v.Email)
	s.add("Contact", v.ContactName)
	var products []string
	for _, p := range v.LeadProducts {
		if p.Price != "" {
			products = append(products, p.ProductName+" ("+p.Price+")")
		} else {
			products = append(products, p.ProductName)
		}
	}
	s.list("Lead products", products)
	s.list("Lead types", r.Tags)
	s.list("Industries", v.Industries)
	s.list("Additional services", v.AdditionalServices)

	d.add("Lead generation", v.LeadGenerationMethod)
	d.add("Exclusivity", v.ExclusivityPolicy)
	d.add("Return policy", v.ReturnPolicy)
	d.add("Minimum order", v.MinimumOrder)
	d.add("Volume available", v.VolumeAvailable)
	return s, d
}

func lenderSections(r *model.NormalizedResult) (summary, details []string) {
	l := r.Lender
	var s, d lines
	s.add("Lender", l.LenderName)
	s.add("Website", l.Website)
	s.add("Contact", joinNonEmpty(", ", l.ContactName, l.ContactEmail, l.ContactPhone))
	s.list("Products", l.ProductsOffered)
	s.list("Funding products", r.Tags)
	s.money("Min funding", l.MinFundingAmount)
	s.money("Max funding", l.MaxFundingAmount)
	s.integer("Min credit score", l.MinCreditScore, "")
	s.integer("Min time in business", l.MinTimeInBusinessMonths, "months")
	s.money("Min monthly revenue", l.MinMonthlyRevenue)
	s.num("Factor rate min", l.FactorRateMin)
	s.num("Factor rate max", l.FactorRateMax)
	s.integer("Min term", l.MinTermMonths, "months")
	s.integer("Max term", l.MaxTermMonths, "months")
	s.list("Industries served", l.IndustriesServed)
	s.list("Restricted industries", l.RestrictedIndustries)
	s.list("States excluded", l.StatesExcluded)
	s.flag("Requires collateral", l.RequiresCollateral)
	s.flag("Accepts stacking", l.AcceptsStacking)

	d.add("Funding speed", l.FundingSpeed)
	d.list("Submission requirements", l.SubmissionRequirements)
	d.add("Description", l.Description)
	return s, d
}

func recommendationSections(r *model.NormalizedResult) (summary, details []string) {
	c := r.Recommendation
	var s, d lines
	s.add("Customer", r.Subject)
	s.add("Priority", c.Priority)
	s.list("Recommended products", c.RecommendedProducts)
	s.list("Recommended lenders", c.RecommendedLenders)
	s.add("Estimated funding", c.EstimatedFundingRange)

	d.add("Summary", c.Summary)
	d.list("Talking points", c.TalkingPoints)
	d.list("Next steps", c.NextSteps)
	d.list("Risk factors", c.RiskFactors)
	return s, d
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// commas formats a whole-dollar amount with thousands separators.
func commas(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "\n[truncated]"
}
