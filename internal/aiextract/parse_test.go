package aiextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-intake/internal/resilience"
)

func TestParseJSONObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			name: "fenced json with prose",
			text: "Here is the data you asked for:\n```json\n{\"lender_name\": \"FundCo\"}\n```\nLet me know if you need more.",
			want: map[string]any{"lender_name": "FundCo"},
		},
		{
			name: "bare fence",
			text: "```\n{\"priority\": \"high\"}\n```",
			want: map[string]any{"priority": "high"},
		},
		{
			name: "plain object",
			text: "  {\"min_credit_score\": 550}\n",
			want: map[string]any{"min_credit_score": float64(550)},
		},
		{
			name: "object inside prose",
			text: "Sure! {\"phone\": \"555-1234\", \"email\": null} Hope this helps.",
			want: map[string]any{"phone": "555-1234", "email": nil},
		},
		{
			name: "fence ignores braces in surrounding prose",
			text: "Ignore {this}.\n```json\n{\"a\": 1}\n```",
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "json fence after a shell fence",
			text: "Fetched with:\n```bash\ncurl https://fundco.example\n```\nResult:\n```json\n{\"lender_name\": \"FundCo\"}\n```",
			want: map[string]any{"lender_name": "FundCo"},
		},
		{
			name: "json tag preferred over earlier untagged object",
			text: "```\n{\"draft\": true}\n```\n```JSON\n{\"final\": true}\n```",
			want: map[string]any{"final": true},
		},
		{
			name: "second untagged fence holds the object",
			text: "```\nnot json\n```\n```\n{\"priority\": \"low\"}\n```",
			want: map[string]any{"priority": "low"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONObject(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONObject_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty", "   ", "empty response"},
		{"empty fence", "```json\n```", "empty response"},
		{"prose only", "I could not find any lender details.", "no JSON object found"},
		{"broken json", "```json\n{\"a\": 1,,}\n```", "invalid JSON"},
		{"array", "[1, 2, 3]", "response is not a JSON object"},
		{"no fence holds an object", "```json\n{\"a\": 1,,}\n```\n```text\nsorry\n```", "invalid JSON"},
		{"string", `"just text"`, "response is not a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONObject(tt.text)
			require.Error(t, err)
			assert.Nil(t, got)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.Equal(t, resilience.KindParse, resilience.KindOf(err))
		})
	}
}

func TestSnippet(t *testing.T) {
	short := "abc"
	assert.Equal(t, short, snippet(short))

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := snippet(string(long))
	assert.Len(t, []rune(got), snippetChars+3)
}
