package heuristic

import (
	"regexp"
	"strings"

	"github.com/sells-group/funding-intake/internal/model"
)

// Probe fills one field of a vendor profile from page text. A probe that
// finds nothing leaves the field untouched.
type Probe struct {
	Field string
	Apply func(text string, p *model.VendorProfile)
}

// DefaultProbes is the ordered probe list used by Parse. The generic price
// probe runs after the named-product probe and skips products it found.
var DefaultProbes = []Probe{
	{"company_name", probeCompanyName},
	{"phone", probePhone},
	{"email", probeEmail},
	{"contact_name", probeContactName},
	{"lead_products", probeNamedProducts},
	{"lead_products", probeGenericPrices},
	{"industries", probeIndustries},
	{"lead_generation_method", sentenceProbe(leadGenRe, func(p *model.VendorProfile, s string) { p.LeadGenerationMethod = s })},
	{"exclusivity_policy", sentenceProbe(exclusivityRe, func(p *model.VendorProfile, s string) { p.ExclusivityPolicy = s })},
	{"return_policy", sentenceProbe(returnRe, func(p *model.VendorProfile, s string) { p.ReturnPolicy = s })},
	{"minimum_order", sentenceProbe(minimumRe, func(p *model.VendorProfile, s string) { p.MinimumOrder = s })},
	{"volume_available", sentenceProbe(volumeRe, func(p *model.VendorProfile, s string) { p.VolumeAvailable = s })},
	{"additional_services", probeServices},
}

var (
	copyrightRe = regexp.MustCompile(`(?:©|\(c\)|(?i:copyright))\s*(?:\d{4}\s*(?:[-–]\s*\d{4}\s*)?)?([A-Z][\w&.,' -]{1,60}?)\s*(?:\.\s|\||(?i:all rights)|\n|$)`)
	welcomeRe   = regexp.MustCompile(`(?i:welcome to)\s+([A-Z][\w&.' -]{1,50}?)(?:[.!,\n]|$)`)
	headingRe   = regexp.MustCompile(`(?m)^#\s+(.{2,60})$`)

	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	contactRe = regexp.MustCompile(`(?i:contact|ask for|speak (?:with|to)|account (?:manager|executive)|sales (?:manager|director|representative|rep))[\s:,-]+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2})`)

	leadGenRe     = regexp.MustCompile(`(?i)\b(?:leads? (?:are|is) (?:generated|sourced)|we generate|generated (?:through|via|from|by)|sourced (?:through|via|from)|(?:tv|radio|online|digital) (?:advertising|campaigns?)|web forms?|call cent(?:er|re))`)
	exclusivityRe = regexp.MustCompile(`(?i)\b(?:non-exclusive|exclusive|shared leads?|sold (?:only )?(?:once|to one)|never (?:re)?sold)\b`)
	returnRe      = regexp.MustCompile(`(?i)\b(?:return policy|returns? (?:are )?(?:accepted|allowed|within)|replacement (?:policy|guarantee)|bad leads? (?:are |will be )?(?:replaced|credited|refunded)|refund)`)
	minimumRe     = regexp.MustCompile(`(?i)\b(?:minimum (?:order|purchase|buy)|min\.? order|minimum of \$?\d)`)
	volumeRe      = regexp.MustCompile(`(?i)\b\d[\d,]*\+?\s*(?:leads?|transfers?|calls?)\s*(?:per|a|each|/)\s*(?:day|week|month)\b|\b(?:daily|weekly|monthly) volume\b`)
)

var contactStopWords = map[string]bool{
	"Us": true, "Today": true, "Now": true, "Form": true, "Sales": true,
	"Support": true, "Information": true, "Info": true, "Our": true, "Page": true,
}

func probeCompanyName(text string, p *model.VendorProfile) {
	for _, re := range []*regexp.Regexp{copyrightRe, welcomeRe, headingRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			name := strings.Trim(strings.TrimSpace(m[1]), ".,|-– ")
			if name != "" {
				p.CompanyName = name
				return
			}
		}
	}
}

func probePhone(text string, p *model.VendorProfile) {
	if m := phoneRe.FindString(text); m != "" {
		p.Phone = strings.TrimSpace(m)
	}
}

func probeEmail(text string, p *model.VendorProfile) {
	for _, m := range emailRe.FindAllString(text, -1) {
		lower := strings.ToLower(m)
		if hasAnySuffix(lower, ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp") {
			continue
		}
		p.Email = m
		return
	}
}

func probeContactName(text string, p *model.VendorProfile) {
	for _, m := range contactRe.FindAllStringSubmatch(text, -1) {
		ok := true
		for _, w := range strings.Fields(m[1]) {
			if contactStopWords[w] {
				ok = false
				break
			}
		}
		if ok {
			p.ContactName = m[1]
			return
		}
	}
}

// namedProduct is a lead type recognized by name.
type namedProduct struct {
	name string
	re   *regexp.Regexp
}

const priceExpr = `\$\s?\d[\d,]*(?:\.\d{1,2})?`

func productPattern(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + expr + `\b(?:[^$\n]{0,40}?(` + priceExpr + `))?`)
}

var namedProducts = []namedProduct{
	{"Live Transfer", productPattern(`live[\s-]+(?:call\s+)?transfers?`)},
	{"Aged Lead", productPattern(`aged\s+leads?`)},
	{"Real-Time Lead", productPattern(`real[\s-]?time\s+leads?`)},
	{"UCC Lead", productPattern(`ucc\s+(?:filing\s+)?leads?`)},
	{"Trigger Lead", productPattern(`trigger\s+leads?`)},
	{"Declined Submission", productPattern(`declined\s+(?:submissions?|deals?)`)},
	{"Appointment", productPattern(`(?:booked\s+|set\s+)?appointments?`)},
}

// probeNamedProducts lists each named product once, priced from the first
// mention that carries a price.
func probeNamedProducts(text string, p *model.VendorProfile) {
	for _, np := range namedProducts {
		matches := np.re.FindAllStringSubmatch(text, -1)
		if matches == nil {
			continue
		}
		lp := model.LeadProduct{ProductName: np.name}
		for _, m := range matches {
			if m[1] != "" {
				lp.Price = normalizePrice(m[1])
				break
			}
		}
		p.LeadProducts = append(p.LeadProducts, lp)
	}
}

var genericPriceRe = regexp.MustCompile(`\b((?:[A-Z][A-Za-z-]*\s+){0,3}(?i:leads?|transfers?|calls?|appointments?|records?|files?|data|submissions?))\s*(?:[-:–]\s*|at\s+|for\s+)?(` + priceExpr + `)`)

func probeGenericPrices(text string, p *model.VendorProfile) {
	seen := make(map[string]bool, len(p.LeadProducts))
	for _, lp := range p.LeadProducts {
		seen[productKey(lp.ProductName)] = true
	}
	for _, m := range genericPriceRe.FindAllStringSubmatch(text, -1) {
		name := singular(strings.Join(strings.Fields(m[1]), " "))
		if len(strings.Fields(name)) < 2 {
			continue
		}
		key := productKey(name)
		if coveredBy(key, seen) {
			continue
		}
		seen[key] = true
		p.LeadProducts = append(p.LeadProducts, model.LeadProduct{
			ProductName: name,
			Price:       normalizePrice(m[2]),
		})
	}
}

// coveredBy reports whether key names a product already found, allowing
// leading words such as "Buy" or "Premium" before the known name.
func coveredBy(key string, seen map[string]bool) bool {
	for k := range seen {
		if key == k || strings.HasSuffix(key, " "+k) {
			return true
		}
	}
	return false
}

func productKey(name string) string {
	return strings.ToLower(singular(name))
}

// singular drops a plural "s" from the last word of a product name.
func singular(name string) string {
	if strings.HasSuffix(name, "ss") || !hasAnySuffix(name, "s", "S") {
		return name
	}
	return name[:len(name)-1]
}

func normalizePrice(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

type keyword struct {
	name string
	re   *regexp.Regexp
}

var industryKeywords = []keyword{
	{"Restaurants", regexp.MustCompile(`(?i)\brestaurants?\b`)},
	{"Trucking", regexp.MustCompile(`(?i)\b(?:trucking|freight|transportation)\b`)},
	{"Construction", regexp.MustCompile(`(?i)\b(?:construction|contractors?)\b`)},
	{"Retail", regexp.MustCompile(`(?i)\bretail`)},
	{"Healthcare", regexp.MustCompile(`(?i)\b(?:healthcare|medical|health care)\b`)},
	{"Dental", regexp.MustCompile(`(?i)\bdental\b`)},
	{"Automotive", regexp.MustCompile(`(?i)\b(?:automotive|auto repair|car dealers?)\b`)},
	{"Beauty And Salons", regexp.MustCompile(`(?i)\b(?:salons?|spas?|beauty)\b`)},
	{"Real Estate", regexp.MustCompile(`(?i)\breal estate\b`)},
	{"Manufacturing", regexp.MustCompile(`(?i)\bmanufactur`)},
	{"Ecommerce", regexp.MustCompile(`(?i)\be-?commerce\b`)},
	{"Hospitality", regexp.MustCompile(`(?i)\b(?:hospitality|hotels?)\b`)},
	{"Landscaping", regexp.MustCompile(`(?i)\blandscap`)},
}

var serviceKeywords = []keyword{
	{"CRM", regexp.MustCompile(`\bCRM\b`)},
	{"Dialer", regexp.MustCompile(`(?i)\b(?:auto|predictive|power)?\s?dialers?\b`)},
	{"SMS Marketing", regexp.MustCompile(`(?i)\b(?:sms|text messag(?:e|ing))\b`)},
	{"Email Marketing", regexp.MustCompile(`(?i)\bemail (?:marketing|campaigns?)\b`)},
	{"Training", regexp.MustCompile(`(?i)\b(?:sales )?training\b`)},
	{"Consulting", regexp.MustCompile(`(?i)\bconsulting\b`)},
	{"Web Design", regexp.MustCompile(`(?i)\bweb(?:site)? design\b`)},
	{"Lead Management", regexp.MustCompile(`(?i)\blead management\b`)},
	{"Appointment Setting", regexp.MustCompile(`(?i)\bappointment setting\b`)},
}

func matchKeywords(text string, kws []keyword) []string {
	var out []string
	for _, kw := range kws {
		if kw.re.MatchString(text) {
			out = append(out, kw.name)
		}
	}
	return out
}

func probeIndustries(text string, p *model.VendorProfile) {
	if found := matchKeywords(text, industryKeywords); len(found) > 0 {
		p.Industries = found
	}
}

func probeServices(text string, p *model.VendorProfile) {
	if found := matchKeywords(text, serviceKeywords); len(found) > 0 {
		p.AdditionalServices = found
	}
}

const maxSentence = 300

// sentenceProbe returns a probe that stores the sentence around the first
// match of re.
func sentenceProbe(re *regexp.Regexp, set func(*model.VendorProfile, string)) func(string, *model.VendorProfile) {
	return func(text string, p *model.VendorProfile) {
		loc := re.FindStringIndex(text)
		if loc == nil {
			return
		}
		if s := sentenceAround(text, loc[0], loc[1]); s != "" {
			set(p, s)
		}
	}
}

func sentenceAround(text string, start, end int) string {
	from := strings.LastIndexAny(text[:start], ".!?\n")
	from++
	to := strings.IndexAny(text[end:], ".!?\n")
	if to < 0 {
		to = len(text)
	} else {
		to += end + 1
	}
	s := strings.TrimSpace(text[from:to])
	s = strings.Join(strings.Fields(s), " ")
	return truncate(s, maxSentence)
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
