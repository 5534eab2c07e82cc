package notion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jomei/notionapi"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Notion rejects rich text content longer than this.
const maxRichText = 2000

// PropertyName turns a record key such as "min_funding_amount" into a
// column name such as "Min Funding Amount".
func PropertyName(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

// BuildProperties converts a flat record into page properties. titleKey
// selects the value used for the title column; other values are typed by
// their Go type. Nil and empty values are skipped.
func BuildProperties(record map[string]any, titleKey string) notionapi.Properties {
	props := make(notionapi.Properties, len(record))

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := PropertyName(k)
		if k == titleKey {
			props[name] = notionapi.TitleProperty{
				Type:  notionapi.PropertyTypeTitle,
				Title: richText(fmt.Sprint(record[k])),
			}
			continue
		}

		switch v := record[k].(type) {
		case nil:
		case string:
			if v == "" {
				continue
			}
			if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
				props[name] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: v}
				continue
			}
			props[name] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(v)}
		case float64:
			props[name] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: v}
		case int:
			props[name] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(v)}
		case bool:
			props[name] = notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: v}
		case []string:
			if len(v) == 0 {
				continue
			}
			opts := make([]notionapi.Option, 0, len(v))
			for _, s := range v {
				// Commas are not allowed in select option names.
				opts = append(opts, notionapi.Option{Name: strings.ReplaceAll(s, ",", " ")})
			}
			props[name] = notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: opts}
		default:
			props[name] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(fmt.Sprint(v))}
		}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	if r := []rune(s); len(r) > maxRichText {
		s = string(r[:maxRichText])
	}
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}
