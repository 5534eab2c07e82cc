// Package importer reads batch extraction input from CSV and XLSX sheets.
// The first row is a header; columns are matched by name.
package importer

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/model"
)

// Row is one data row of a sheet. Err is set when the row could not be
// turned into a request; such rows are reported, not processed.
type Row struct {
	Line    int
	Request model.ExtractionRequest
	Err     error
}

// Options controls how rows become requests.
type Options struct {
	// Kind applies to rows without a kind column value.
	Kind model.Kind
	// Tier applies to rows without a model column value.
	Tier model.Tier
	// UseAI applies to vendor rows without a use_ai column value.
	UseAI bool
	// Sheet selects an XLSX sheet by name. Empty means the first sheet.
	Sheet string
}

// Load reads path, choosing the reader by file extension.
func Load(path string, opts Options) ([]Row, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		records, err = readCSVFile(path)
	case ".xlsx":
		records, err = readXLSX(path, opts.Sheet)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return Parse(records, opts)
}

// columns maps header aliases to canonical column names.
var columns = map[string]string{
	"url":                     "url",
	"website":                 "url",
	"domain":                  "url",
	"site":                    "url",
	"kind":                    "kind",
	"type":                    "kind",
	"model":                   "model",
	"tier":                    "model",
	"use_ai":                  "use_ai",
	"ai":                      "use_ai",
	"business_name":           "business_name",
	"business":                "business_name",
	"company":                 "business_name",
	"company_name":            "business_name",
	"owner_name":              "owner_name",
	"owner":                   "owner_name",
	"email":                   "email",
	"phone":                   "phone",
	"industry":                "industry",
	"state":                   "state",
	"time_in_business_months": "time_in_business_months",
	"time_in_business":        "time_in_business_months",
	"monthly_revenue":         "monthly_revenue",
	"credit_score":            "credit_score",
	"fico":                    "credit_score",
	"requested_amount":        "requested_amount",
	"amount":                  "requested_amount",
	"use_of_funds":            "use_of_funds",
	"existing_positions":      "existing_positions",
	"positions":               "existing_positions",
	"notes":                   "notes",
	"with_lenders":            "with_lenders",
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return columns[h]
}

// Parse turns header-first records into rows. Blank rows are skipped.
func Parse(records [][]string, opts Options) ([]Row, error) {
	if len(records) == 0 {
		return nil, eris.New("importer: sheet is empty")
	}

	index := make(map[string]int)
	for i, h := range records[0] {
		if key := headerKey(h); key != "" {
			if _, dup := index[key]; !dup {
				index[key] = i
			}
		}
	}
	_, hasURL := index["url"]
	_, hasBusiness := index["business_name"]
	if !hasURL && !hasBusiness {
		return nil, eris.New("importer: header needs a url or business_name column")
	}

	var rows []Row
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		get := func(key string) string {
			if j, ok := index[key]; ok && j < len(rec) {
				return strings.TrimSpace(rec[j])
			}
			return ""
		}
		req, err := buildRequest(get, opts)
		rows = append(rows, Row{Line: i + 2, Request: req, Err: err})
	}
	return rows, nil
}

func buildRequest(get func(string) string, opts Options) (model.ExtractionRequest, error) {
	req := model.ExtractionRequest{
		URL:   get("url"),
		Kind:  opts.Kind,
		Tier:  opts.Tier,
		UseAI: opts.UseAI,
	}

	if v := get("kind"); v != "" {
		k, err := model.ParseKind(v)
		if err != nil {
			return req, err
		}
		req.Kind = k
	}
	if req.Kind == "" {
		return req, eris.New("importer: no kind given for row")
	}
	if v := get("model"); v != "" {
		t, err := model.ParseTier(v)
		if err != nil {
			return req, err
		}
		req.Tier = t
	}
	if v := get("use_ai"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return req, eris.Wrap(err, "importer: use_ai")
		}
		req.UseAI = b
	}

	if req.Kind != model.KindRecommendation {
		if req.URL == "" {
			return req, eris.New("importer: url is empty")
		}
		return req, nil
	}

	c, err := buildCustomer(get)
	if err != nil {
		return req, err
	}
	req.Customer = c
	req.URL = ""
	if v := get("with_lenders"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return req, eris.Wrap(err, "importer: with_lenders")
		}
		req.WithLenders = b
	}
	return req, nil
}

func buildCustomer(get func(string) string) (*model.Customer, error) {
	c := &model.Customer{
		BusinessName: get("business_name"),
		OwnerName:    get("owner_name"),
		Email:        get("email"),
		Phone:        get("phone"),
		Industry:     get("industry"),
		State:        get("state"),
		UseOfFunds:   get("use_of_funds"),
		Notes:        get("notes"),
	}
	if c.BusinessName == "" {
		return nil, eris.New("importer: business_name is empty")
	}

	var err error
	if c.TimeInBusinessMonths, err = optInt(get("time_in_business_months")); err != nil {
		return nil, eris.Wrap(err, "importer: time_in_business_months")
	}
	if c.CreditScore, err = optInt(get("credit_score")); err != nil {
		return nil, eris.Wrap(err, "importer: credit_score")
	}
	if c.ExistingPositions, err = optInt(get("existing_positions")); err != nil {
		return nil, eris.Wrap(err, "importer: existing_positions")
	}
	if c.MonthlyRevenue, err = optMoney(get("monthly_revenue")); err != nil {
		return nil, eris.Wrap(err, "importer: monthly_revenue")
	}
	if c.RequestedAmount, err = optMoney(get("requested_amount")); err != nil {
		return nil, eris.Wrap(err, "importer: requested_amount")
	}
	return c, nil
}

func optInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// optMoney accepts "$12,500" and "12500.50".
func optMoney(v string) (*float64, error) {
	v = strings.NewReplacer("$", "", ",", "").Replace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
