package salesforce

import "strings"

// FieldMap maps flat record keys to Salesforce API field names. Keys that
// are not mapped are not sent.
type FieldMap map[string]string

// MapFields converts a flat record to an SObject field map. String lists
// become semicolon-separated multi-picklist values; nil and empty values
// are skipped.
func MapFields(record map[string]any, fm FieldMap) map[string]any {
	out := make(map[string]any, len(fm))
	for key, field := range fm {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case string:
			if tv == "" {
				continue
			}
			out[field] = tv
		case []string:
			if len(tv) == 0 {
				continue
			}
			out[field] = strings.Join(tv, ";")
		default:
			out[field] = tv
		}
	}
	return out
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
